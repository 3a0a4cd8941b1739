package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/resolver"
)

var (
	equipmentStatus    string
	equipmentName      string
	equipmentType      string
	equipmentCondition string
)

var equipmentCmd = &cobra.Command{
	Use:   "equipment",
	Short: "Track tools and machines",
}

var equipmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List equipment and who holds it",
	RunE:  runEquipmentList,
}

var equipmentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register equipment",
	RunE:  runEquipmentAdd,
}

var equipmentCheckoutCmd = &cobra.Command{
	Use:   "checkout <equipment-id> <worker-id>",
	Short: "Hand equipment to a worker who is on site",
	Args:  cobra.ExactArgs(2),
	RunE:  runEquipmentCheckout,
}

var equipmentCheckinCmd = &cobra.Command{
	Use:   "checkin <equipment-id>",
	Short: "Return equipment and record its condition",
	Args:  cobra.ExactArgs(1),
	RunE:  runEquipmentCheckin,
}

var equipmentStatusCmd = &cobra.Command{
	Use:   "status <equipment-id> <available|maintenance>",
	Short: "Change equipment availability",
	Long: `Set equipment to maintenance (stamps the maintenance date and returns it
from whoever holds it) or back to available.`,
	Args: cobra.ExactArgs(2),
	RunE: runEquipmentStatus,
}

func init() {
	rootCmd.AddCommand(equipmentCmd)
	equipmentCmd.AddCommand(equipmentListCmd, equipmentAddCmd, equipmentCheckoutCmd,
		equipmentCheckinCmd, equipmentStatusCmd)

	equipmentListCmd.Flags().StringVar(&equipmentStatus, "status", "", "only show equipment in this status: available, in_use, maintenance")

	equipmentAddCmd.Flags().StringVar(&equipmentName, "name", "", "equipment name")
	equipmentAddCmd.Flags().StringVar(&equipmentType, "type", "", "equipment type")
	equipmentAddCmd.Flags().StringVar(&equipmentCondition, "condition", "good", "condition: excellent, good, fair, poor")
	_ = equipmentAddCmd.MarkFlagRequired("name")
	_ = equipmentAddCmd.MarkFlagRequired("type")

	equipmentCheckinCmd.Flags().StringVar(&equipmentCondition, "condition", "good", "condition on return: excellent, good, fair, poor")
}

func runEquipmentList(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if err := s.orch.RefreshEquipment(ctx); err != nil {
			return err
		}
		// holder names need the session user's workers
		if s.orch.UserID() != "" {
			if err := s.orch.RefreshWorkers(ctx); err != nil {
				return err
			}
		}
		snap := s.orch.Snapshot()
		equipment := resolver.FilterEquipmentByStatus(snap.Equipment, models.EquipmentStatus(equipmentStatus))
		if IsJSONOutput() {
			return printJSON(equipment)
		}
		if len(equipment) == 0 {
			fmt.Fprintln(stdout, "No equipment found")
			return nil
		}

		table := newTable("ID", "Name", "Type", "Status", "Condition", "Last Maintenance", "Held By")
		for _, e := range equipment {
			holder := "-"
			if a, ok := resolver.CurrentEquipmentHolder(e.ID, snap.EquipmentAssignments); ok {
				holder = a.WorkerID
				if w, ok := findWorker(snap.Workers, a.WorkerID); ok {
					holder = w.Name
				}
			}
			table.Append(e.ID, e.Name, e.Type, string(e.Status), string(e.Condition), formatTime(e.LastMaintenance), holder)
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nTotal equipment: %d\n", len(equipment))
		return nil
	})
}

func runEquipmentAdd(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		e, err := s.orch.CreateEquipment(ctx, equipmentName, equipmentType, models.Condition(equipmentCondition))
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(e)
		}
		fmt.Fprintf(stdout, "Equipment %s registered (%s)\n", e.Name, e.ID)
		return nil
	})
}

func runEquipmentCheckout(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		a, err := s.orch.CheckOutEquipment(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(a)
		}
		fmt.Fprintf(stdout, "Equipment %s checked out to %s\n", a.EquipmentID, a.WorkerID)
		return nil
	})
}

func runEquipmentCheckin(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		e, err := s.orch.CheckInEquipment(ctx, args[0], models.Condition(equipmentCondition))
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(e)
		}
		fmt.Fprintf(stdout, "Equipment %s returned in %s condition\n", e.Name, e.Condition)
		return nil
	})
}

func runEquipmentStatus(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		e, err := s.orch.SetEquipmentStatus(ctx, args[0], models.EquipmentStatus(args[1]))
		if err != nil {
			return err
		}
		if IsJSONOutput() {
			return printJSON(e)
		}
		fmt.Fprintf(stdout, "Equipment %s is now %s\n", e.Name, e.Status)
		return nil
	})
}
