package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/psantana5/sitesync/pkg/logging"
)

// State is the phase of the most recent command
type State int

const (
	StateIdle State = iota
	StateMutating
	StateRefreshing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMutating:
		return "mutating"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// step is one backend call of a multi-step command
type step struct {
	name string
	run  func(ctx context.Context) error
}

// saga is a command made of sequential, non-atomic steps followed by a
// refresh of the collections it touched. The first failing step aborts the
// rest; steps that already ran are not undone.
type saga struct {
	command string
	steps   []step
	refresh func(ctx context.Context) error
}

// SagaError reports the step that aborted a command and the steps that had
// already been applied on the backend.
type SagaError struct {
	Command   string
	Step      string
	Completed []string
	Err       error
}

func (e *SagaError) Error() string {
	msg := fmt.Sprintf("%s failed at %s", e.Command, e.Step)
	if len(e.Completed) > 0 {
		msg += fmt.Sprintf(" (after %s)", strings.Join(e.Completed, ", "))
	}
	return msg + ": " + e.Err.Error()
}

func (e *SagaError) Unwrap() error {
	return e.Err
}

// Partial reports whether some writes were applied before the failure
func (e *SagaError) Partial() bool {
	return len(e.Completed) > 0
}

const refreshStep = "refresh"

// run executes the saga, refreshes and notifies subscribers
func (o *Orchestrator) run(ctx context.Context, s saga) (err error) {
	log := o.logger.WithField("command", s.command)
	defer func() { o.metrics.RecordCommand(s.command, err) }()

	o.setState(StateMutating)
	completed := make([]string, 0, len(s.steps))
	for _, st := range s.steps {
		if err := ctx.Err(); err != nil {
			return o.abort(log, s.command, st.name, completed, err)
		}
		if err := st.run(ctx); err != nil {
			return o.abort(log, s.command, st.name, completed, err)
		}
		completed = append(completed, st.name)
		log.Debug("Step completed", map[string]interface{}{"step": st.name})
	}

	if s.refresh != nil {
		o.setState(StateRefreshing)
		if err := s.refresh(ctx); err != nil {
			return o.abort(log, s.command, refreshStep, completed, err)
		}
	}

	o.setState(StateIdle)
	log.Info("Command completed", map[string]interface{}{"steps": len(completed)})
	o.notify()
	return nil
}

func (o *Orchestrator) abort(log *logging.Logger, command, stepName string, completed []string, cause error) error {
	o.setState(StateFailed)
	o.metrics.RecordSagaFailure(command, stepName)
	log.Warn("Command aborted", map[string]interface{}{
		"step":      stepName,
		"completed": strings.Join(completed, ","),
		"error":     cause.Error(),
	})
	done := make([]string, len(completed))
	copy(done, completed)
	return &SagaError{Command: command, Step: stepName, Completed: done, Err: cause}
}
