package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/psantana5/sitesync/pkg/backend"
	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/resolver"
)

// CreateWorker adds an inactive worker owned by the session user
func (o *Orchestrator) CreateWorker(ctx context.Context, name, role, phone string) (models.Worker, error) {
	const op = "create worker"
	uid, err := o.requireSession(op)
	if err != nil {
		return models.Worker{}, err
	}
	in := workerInput{Name: strings.TrimSpace(name), Role: strings.TrimSpace(role), Phone: strings.TrimSpace(phone)}
	if err := o.check(op, in); err != nil {
		return models.Worker{}, err
	}

	var created models.Worker
	err = o.run(ctx, saga{
		command: "create_worker",
		steps: []step{
			{name: "create worker", run: func(ctx context.Context) error {
				var err error
				created, err = o.client.Workers.Create(ctx, models.Worker{
					UserID: uid,
					Name:   in.Name,
					Role:   in.Role,
					Phone:  in.Phone,
				})
				return err
			}},
		},
		refresh: o.refreshWorkers,
	})
	return created, err
}

// UpdateWorkerProfile replaces name, role and phone of an existing worker
func (o *Orchestrator) UpdateWorkerProfile(ctx context.Context, id, name, role, phone string) (models.Worker, error) {
	const op = "update worker"
	id, err := o.requireID(op, "worker id", id)
	if err != nil {
		return models.Worker{}, err
	}
	in := workerInput{Name: strings.TrimSpace(name), Role: strings.TrimSpace(role), Phone: strings.TrimSpace(phone)}
	if err := o.check(op, in); err != nil {
		return models.Worker{}, err
	}
	if _, err := o.requireSession(op); err != nil {
		return models.Worker{}, err
	}

	var updated models.Worker
	err = o.run(ctx, saga{
		command: "update_worker",
		steps: []step{
			{name: "update worker", run: func(ctx context.Context) error {
				w, err := o.findWorker(ctx, op, id)
				if err != nil {
					return err
				}
				w.Name, w.Role, w.Phone = in.Name, in.Role, in.Phone
				updated, err = o.client.Workers.Update(ctx, w)
				return err
			}},
		},
		refresh: o.refreshWorkers,
	})
	return updated, err
}

// CheckInWorker opens an attendance session and marks the worker active
func (o *Orchestrator) CheckInWorker(ctx context.Context, workerID string) (models.Attendance, error) {
	const op = "check in worker"
	workerID, err := o.requireID(op, "worker id", workerID)
	if err != nil {
		return models.Attendance{}, err
	}
	if _, err := o.requireSession(op); err != nil {
		return models.Attendance{}, err
	}

	var (
		worker  models.Worker
		session models.Attendance
	)
	err = o.run(ctx, saga{
		command: "check_in_worker",
		steps: []step{
			{name: "create attendance", run: func(ctx context.Context) error {
				var err error
				worker, err = o.findWorker(ctx, op, workerID)
				if err != nil {
					return err
				}
				if worker.IsActive {
					return models.NewValidationError(op, fmt.Sprintf("worker %s is already checked in", worker.Name))
				}
				history, err := o.client.Attendance.QueryBy(ctx, backend.ByWorker(workerID))
				if err != nil {
					return err
				}
				if open, ok := resolver.CurrentOpenAttendance(workerID, history); ok {
					return models.NewValidationError(op, fmt.Sprintf("attendance %s is still open", open.ID))
				}
				session, err = o.client.Attendance.Create(ctx, models.Attendance{
					WorkerID: workerID,
					CheckIn:  models.NewTimestamp(o.timestamp()),
				})
				return err
			}},
			{name: "activate worker", run: func(ctx context.Context) error {
				worker.IsActive = true
				_, err := o.client.Workers.Update(ctx, worker)
				return err
			}},
		},
		refresh: o.refreshWorkers,
	})
	return session, err
}

// CheckOutWorker closes the open attendance session and marks the worker
// inactive
func (o *Orchestrator) CheckOutWorker(ctx context.Context, workerID string) (models.Attendance, error) {
	const op = "check out worker"
	workerID, err := o.requireID(op, "worker id", workerID)
	if err != nil {
		return models.Attendance{}, err
	}
	if _, err := o.requireSession(op); err != nil {
		return models.Attendance{}, err
	}

	var session models.Attendance
	err = o.run(ctx, saga{
		command: "check_out_worker",
		steps: []step{
			{name: "close attendance", run: func(ctx context.Context) error {
				history, err := o.client.Attendance.QueryBy(ctx, backend.ByWorker(workerID))
				if err != nil {
					return err
				}
				open, ok := resolver.CurrentOpenAttendance(workerID, history)
				if !ok {
					return models.NewNotFoundError(op, "no open attendance for worker "+workerID)
				}
				open.CheckOut = models.TimestampPtr(o.timestamp())
				session, err = o.client.Attendance.Update(ctx, open)
				return err
			}},
			{name: "deactivate worker", run: func(ctx context.Context) error {
				w, err := o.findWorker(ctx, op, workerID)
				if err != nil {
					return err
				}
				w.IsActive = false
				_, err = o.client.Workers.Update(ctx, w)
				return err
			}},
		},
		refresh: o.refreshWorkers,
	})
	return session, err
}

// AttendanceHistory returns the sessions of a worker, newest check-in first
func (o *Orchestrator) AttendanceHistory(ctx context.Context, workerID string) ([]models.Attendance, error) {
	workerID, err := o.requireID("attendance history", "worker id", workerID)
	if err != nil {
		return nil, err
	}
	history, err := query(ctx, o, o.client.Attendance, backend.ByWorker(workerID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CheckIn.After(history[j].CheckIn.Time)
	})
	return history, nil
}

func (o *Orchestrator) findWorker(ctx context.Context, op, id string) (models.Worker, error) {
	uid, err := o.requireSession(op)
	if err != nil {
		return models.Worker{}, err
	}
	workers, err := o.client.Workers.QueryBy(ctx, backend.ByUser(uid))
	if err != nil {
		return models.Worker{}, err
	}
	w, ok := findByID(workers, id)
	if !ok {
		return models.Worker{}, models.NewNotFoundError(op, "worker "+id+" not found")
	}
	return w, nil
}

func findByID[T models.Record](records []T, id string) (T, bool) {
	for _, r := range records {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}
