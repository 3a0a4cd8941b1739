package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/resolver"
)

var (
	taskStatus      string
	taskTitle       string
	taskDescription string
	taskPriority    string
	taskDue         string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage site tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks with their assigned workers",
	RunE:  runTasksList,
}

var tasksAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a pending task",
	RunE:  runTasksAdd,
}

var tasksAssignCmd = &cobra.Command{
	Use:   "assign <task-id> <worker-id>",
	Short: "Assign a worker to a task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksAssign,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksAssignCmd)

	for _, c := range []models.TaskCommand{models.TaskCommandStart, models.TaskCommandComplete, models.TaskCommandReopen} {
		tasksCmd.AddCommand(newTaskTransitionCmd(c))
	}

	tasksListCmd.Flags().StringVar(&taskStatus, "status", "", "only show tasks in this status: pending, in_progress, completed")

	tasksAddCmd.Flags().StringVar(&taskTitle, "title", "", "task title")
	tasksAddCmd.Flags().StringVar(&taskDescription, "description", "", "task description")
	tasksAddCmd.Flags().StringVar(&taskPriority, "priority", "medium", "priority: low, medium, high")
	tasksAddCmd.Flags().StringVar(&taskDue, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	_ = tasksAddCmd.MarkFlagRequired("title")
	_ = tasksAddCmd.MarkFlagRequired("due")
}

func newTaskTransitionCmd(command models.TaskCommand) *cobra.Command {
	return &cobra.Command{
		Use:   string(command) + " <task-id>",
		Short: strings.ToUpper(string(command[:1])) + string(command[1:]) + " a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				// load the cache so invalid transitions fail without a write
				if err := s.orch.RefreshTasks(ctx); err != nil {
					return err
				}
				t, err := s.orch.ApplyTaskCommand(ctx, args[0], command)
				if err != nil {
					return err
				}
				if IsJSONOutput() {
					return printJSON(t)
				}
				fmt.Fprintf(stdout, "Task %s is now %s\n", t.ID, t.Status)
				return nil
			})
		},
	}
}

func runTasksList(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if err := s.orch.RefreshTasks(ctx); err != nil {
			return err
		}
		if err := s.orch.RefreshWorkers(ctx); err != nil {
			return err
		}
		snap := s.orch.Snapshot()
		tasks := resolver.FilterTasksByStatus(snap.Tasks, models.TaskStatus(taskStatus))
		if IsJSONOutput() {
			return printJSON(tasks)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(stdout, "No tasks found")
			return nil
		}

		table := newTable("ID", "Title", "Priority", "Status", "Due", "Assigned")
		for _, t := range tasks {
			var names []string
			for _, w := range resolver.AssignedWorkersForTask(t.ID, snap.TaskAssignments, snap.Workers) {
				names = append(names, w.Name)
			}
			assigned := "-"
			if len(names) > 0 {
				assigned = strings.Join(names, ", ")
			}
			table.Append(t.ID, t.Title, string(t.Priority), string(t.Status), formatTime(t.DueDate), assigned)
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nTotal tasks: %d\n", len(tasks))
		return nil
	})
}

func runTasksAdd(cmd *cobra.Command, args []string) error {
	due, err := parseDue(taskDue)
	if err != nil {
		return err
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		t, err := s.orch.CreateTask(ctx, taskTitle, taskDescription, models.Priority(taskPriority), due)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(t)
		}
		fmt.Fprintf(stdout, "Task %q created (%s)\n", t.Title, t.ID)
		return nil
	})
}

func runTasksAssign(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		a, err := s.orch.AssignWorkerToTask(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(a)
		}
		fmt.Fprintf(stdout, "Worker %s assigned to task %s\n", a.WorkerID, a.TaskID)
		return nil
	})
}

// parseDue accepts a calendar date or a full timestamp
func parseDue(s string) (time.Time, error) {
	if d, err := models.ParseDate(s); err == nil {
		return d.Time, nil
	}
	ts, err := models.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, models.NewValidationError("create task", fmt.Sprintf("invalid due date %q", s))
	}
	return ts.Time, nil
}
