package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/psantana5/sitesync/pkg/backend"
	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/resolver"
)

// CreateTask adds a pending task created by the session user
func (o *Orchestrator) CreateTask(ctx context.Context, title, description string, priority models.Priority, due time.Time) (models.Task, error) {
	const op = "create task"
	uid, err := o.requireSession(op)
	if err != nil {
		return models.Task{}, err
	}
	in := taskInput{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Priority:    strings.ToLower(strings.TrimSpace(string(priority))),
	}
	if err := o.check(op, in); err != nil {
		return models.Task{}, err
	}
	if due.IsZero() {
		return models.Task{}, models.NewValidationError(op, "due_date is required")
	}

	var created models.Task
	err = o.run(ctx, saga{
		command: "create_task",
		steps: []step{
			{name: "create task", run: func(ctx context.Context) error {
				var err error
				created, err = o.client.Tasks.Create(ctx, models.Task{
					Title:       in.Title,
					Description: in.Description,
					Priority:    models.Priority(in.Priority),
					Status:      models.TaskStatusPending,
					DueDate:     models.NewTimestamp(due),
					CreatedBy:   uid,
				})
				return err
			}},
		},
		refresh: o.refreshTasks,
	})
	return created, err
}

// ApplyTaskCommand moves a task through start, complete or reopen. The
// transition is checked against the cached status before any I/O and again
// against the backend's copy before the update is sent.
func (o *Orchestrator) ApplyTaskCommand(ctx context.Context, taskID string, cmd models.TaskCommand) (models.Task, error) {
	op := string(cmd) + " task"
	taskID, err := o.requireID(op, "task id", taskID)
	if err != nil {
		return models.Task{}, err
	}
	if _, err := models.ParseTaskCommand(string(cmd)); err != nil {
		return models.Task{}, err
	}
	if cached, err := o.store.Tasks.Get(taskID); err == nil {
		if _, err := models.NextStatus(cached.Status, cmd); err != nil {
			return models.Task{}, err
		}
	}
	if _, err := o.requireSession(op); err != nil {
		return models.Task{}, err
	}

	var updated models.Task
	err = o.run(ctx, saga{
		command: string(cmd) + "_task",
		steps: []step{
			{name: "update task", run: func(ctx context.Context) error {
				task, err := o.findTask(ctx, op, taskID)
				if err != nil {
					return err
				}
				next, err := models.NextStatus(task.Status, cmd)
				if err != nil {
					return err
				}
				task.Status = next
				updated, err = o.client.Tasks.Update(ctx, task)
				return err
			}},
		},
		refresh: o.refreshTasks,
	})
	return updated, err
}

// AssignWorkerToTask links a worker to a task. Assigning the same pair twice
// returns the existing record without writing.
func (o *Orchestrator) AssignWorkerToTask(ctx context.Context, taskID, workerID string) (models.TaskAssignment, error) {
	const op = "assign worker"
	taskID, err := o.requireID(op, "task id", taskID)
	if err != nil {
		return models.TaskAssignment{}, err
	}
	workerID, err = o.requireID(op, "worker id", workerID)
	if err != nil {
		return models.TaskAssignment{}, err
	}
	if _, err := o.requireSession(op); err != nil {
		return models.TaskAssignment{}, err
	}

	var assignment models.TaskAssignment
	err = o.run(ctx, saga{
		command: "assign_worker",
		steps: []step{
			{name: "create task assignment", run: func(ctx context.Context) error {
				if _, err := o.findTask(ctx, op, taskID); err != nil {
					return err
				}
				if _, err := o.findWorker(ctx, op, workerID); err != nil {
					return err
				}
				existing, err := o.client.TaskAssignments.QueryBy(ctx, backend.ByTask(taskID), backend.ByWorker(workerID))
				if err != nil {
					return err
				}
				if a, ok := resolver.FindTaskAssignment(taskID, workerID, existing); ok {
					assignment = a
					return nil
				}
				assignment, err = o.client.TaskAssignments.Create(ctx, models.TaskAssignment{TaskID: taskID, WorkerID: workerID})
				return err
			}},
		},
		refresh: o.refreshTasks,
	})
	return assignment, err
}

func (o *Orchestrator) findTask(ctx context.Context, op, id string) (models.Task, error) {
	uid, err := o.requireSession(op)
	if err != nil {
		return models.Task{}, err
	}
	tasks, err := o.client.Tasks.QueryBy(ctx, backend.ByCreator(uid))
	if err != nil {
		return models.Task{}, err
	}
	t, ok := findByID(tasks, id)
	if !ok {
		return models.Task{}, models.NewNotFoundError(op, "task "+id+" not found")
	}
	return t, nil
}
