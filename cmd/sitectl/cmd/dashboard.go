package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show site summary counts",
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if err := s.orch.RefreshAll(ctx); err != nil {
			return err
		}
		d := s.orch.Dashboard()
		if IsJSONOutput() {
			return printJSON(d)
		}

		latest := "-"
		if d.LatestReportDate != "" {
			latest = fmt.Sprintf("%.0f%% (%s)", d.LatestProgress, d.LatestReportDate)
		}
		return printProperties([][2]string{
			{"Workers on site", fmt.Sprintf("%d / %d", d.ActiveWorkers, d.TotalWorkers)},
			{"Open tasks", fmt.Sprintf("%d / %d", d.OpenTasks, d.TotalTasks)},
			{"Completed tasks", fmt.Sprintf("%d", d.CompletedTasks)},
			{"Equipment in use", fmt.Sprintf("%d / %d", d.EquipmentInUse, d.TotalEquipment)},
			{"Equipment in maintenance", fmt.Sprintf("%d", d.EquipmentInMaint)},
			{"Latest progress", latest},
		})
	})
}
