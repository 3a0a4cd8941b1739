package models

import "fmt"

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskCommand is a user action that moves a task between states
type TaskCommand string

const (
	TaskCommandStart    TaskCommand = "start"
	TaskCommandComplete TaskCommand = "complete"
	TaskCommandReopen   TaskCommand = "reopen"
)

// validTransitions maps from-state to allowed to-states.
// completed -> in_progress is a reopen; there is no terminal state.
var validTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusPending: {
		TaskStatusInProgress: true,
	},
	TaskStatusInProgress: {
		TaskStatusCompleted: true,
	},
	TaskStatusCompleted: {
		TaskStatusInProgress: true,
	},
}

// commandRules pins every command to the single state it may be issued from
var commandRules = map[TaskCommand]struct {
	From TaskStatus
	To   TaskStatus
}{
	TaskCommandStart:    {From: TaskStatusPending, To: TaskStatusInProgress},
	TaskCommandComplete: {From: TaskStatusInProgress, To: TaskStatusCompleted},
	TaskCommandReopen:   {From: TaskStatusCompleted, To: TaskStatusInProgress},
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to TaskStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return NewValidationError("task transition", fmt.Sprintf("unknown source state: %s", from))
	}
	if !allowed[to] {
		return NewValidationError("task transition", fmt.Sprintf("invalid transition from %s to %s", from, to))
	}
	return nil
}

// NextStatus resolves the state a command leads to from the given state
func NextStatus(from TaskStatus, cmd TaskCommand) (TaskStatus, error) {
	rule, ok := commandRules[cmd]
	if !ok {
		return "", NewValidationError("task command", fmt.Sprintf("unknown command: %s", cmd))
	}
	if rule.From != from {
		return "", NewValidationError("task command",
			fmt.Sprintf("cannot %s a task that is %s", cmd, from))
	}
	if err := ValidateTransition(from, rule.To); err != nil {
		return "", err
	}
	return rule.To, nil
}

// ParseTaskCommand validates a command name
func ParseTaskCommand(s string) (TaskCommand, error) {
	cmd := TaskCommand(s)
	if _, ok := commandRules[cmd]; !ok {
		return "", NewValidationError("task command", fmt.Sprintf("unknown command: %s", s))
	}
	return cmd, nil
}

// IsOpenTask reports whether the task still needs work
func IsOpenTask(status TaskStatus) bool {
	return status == TaskStatusPending || status == TaskStatusInProgress
}
