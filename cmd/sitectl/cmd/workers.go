package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/resolver"
)

var (
	workerName  string
	workerRole  string
	workerPhone string
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Manage site workers and attendance",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers and who is on site",
	RunE:  runWorkersList,
}

var workersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a worker",
	RunE:  runWorkersAdd,
}

var workersEditCmd = &cobra.Command{
	Use:   "edit <worker-id>",
	Short: "Edit a worker profile",
	Long:  `Replace name, role and phone of a worker. Flags left unset keep the current value.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkersEdit,
}

var workersCheckInCmd = &cobra.Command{
	Use:   "check-in <worker-id>",
	Short: "Open an attendance session",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkersCheckIn,
}

var workersCheckOutCmd = &cobra.Command{
	Use:   "check-out <worker-id>",
	Short: "Close the open attendance session",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkersCheckOut,
}

var workersHistoryCmd = &cobra.Command{
	Use:   "history <worker-id>",
	Short: "Show attendance sessions, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkersHistory,
}

func init() {
	rootCmd.AddCommand(workersCmd)
	workersCmd.AddCommand(workersListCmd, workersAddCmd, workersEditCmd,
		workersCheckInCmd, workersCheckOutCmd, workersHistoryCmd)

	for _, c := range []*cobra.Command{workersAddCmd, workersEditCmd} {
		c.Flags().StringVar(&workerName, "name", "", "worker name")
		c.Flags().StringVar(&workerRole, "role", "", "trade or role")
		c.Flags().StringVar(&workerPhone, "phone", "", "contact phone")
	}
	_ = workersAddCmd.MarkFlagRequired("name")
	_ = workersAddCmd.MarkFlagRequired("role")
}

func runWorkersList(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if err := s.orch.RefreshWorkers(ctx); err != nil {
			return err
		}
		snap := s.orch.Snapshot()
		if IsJSONOutput() {
			return printJSON(snap.Workers)
		}
		if len(snap.Workers) == 0 {
			fmt.Fprintln(stdout, "No workers registered")
			return nil
		}

		table := newTable("ID", "Name", "Role", "Phone", "On Site", "Since")
		for _, w := range snap.Workers {
			since := "-"
			if open, ok := resolver.CurrentOpenAttendance(w.ID, snap.Attendance); ok {
				since = formatTime(open.CheckIn)
			}
			table.Append(w.ID, w.Name, w.Role, w.Phone, yesNo(w.IsActive), since)
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nOn site: %d of %d\n", len(resolver.ActiveWorkers(snap.Workers)), len(snap.Workers))
		return nil
	})
}

func runWorkersAdd(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		w, err := s.orch.CreateWorker(ctx, workerName, workerRole, workerPhone)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(w)
		}
		fmt.Fprintf(stdout, "Worker %s added (%s)\n", w.Name, w.ID)
		return nil
	})
}

func runWorkersEdit(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if err := s.orch.RefreshWorkers(ctx); err != nil {
			return err
		}
		current, ok := findWorker(s.orch.Snapshot().Workers, args[0])
		if !ok {
			return models.NewNotFoundError("edit worker", "worker "+args[0]+" not found")
		}
		name, role, phone := current.Name, current.Role, current.Phone
		if cmd.Flags().Changed("name") {
			name = workerName
		}
		if cmd.Flags().Changed("role") {
			role = workerRole
		}
		if cmd.Flags().Changed("phone") {
			phone = workerPhone
		}

		w, err := s.orch.UpdateWorkerProfile(ctx, args[0], name, role, phone)
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(w)
		}
		fmt.Fprintf(stdout, "Worker %s updated\n", w.ID)
		return nil
	})
}

func runWorkersCheckIn(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		a, err := s.orch.CheckInWorker(ctx, args[0])
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(a)
		}
		fmt.Fprintf(stdout, "Worker %s checked in at %s\n", args[0], formatTime(a.CheckIn))
		return nil
	})
}

func runWorkersCheckOut(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		a, err := s.orch.CheckOutWorker(ctx, args[0])
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(a)
		}
		fmt.Fprintf(stdout, "Worker %s checked out at %s\n", args[0], formatOptionalTime(a.CheckOut))
		return nil
	})
}

func runWorkersHistory(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		history, err := s.orch.AttendanceHistory(ctx, args[0])
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(history)
		}
		if len(history) == 0 {
			fmt.Fprintln(stdout, "No attendance recorded")
			return nil
		}

		table := newTable("Session", "Check In", "Check Out", "Duration")
		for _, a := range history {
			duration := formatDuration(time.Since(a.CheckIn.Time)) + " (open)"
			if !a.IsOpen() {
				duration = formatDuration(a.CheckOut.Sub(a.CheckIn.Time))
			}
			table.Append(a.ID, formatTime(a.CheckIn), formatOptionalTime(a.CheckOut), duration)
		}
		return table.Render()
	})
}

func findWorker(workers []models.Worker, id string) (models.Worker, bool) {
	for _, w := range workers {
		if w.ID == id {
			return w, true
		}
	}
	return models.Worker{}, false
}
