package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Refresh everything and print client metrics",
	Long: `Run a full refresh and print the resulting request, command and store
metrics in Prometheus text format.`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if s.metrics == nil {
			return errors.New("metrics are disabled (metrics.enabled: false)")
		}
		refresh := s.orch.RefreshAll
		if s.orch.UserID() == "" {
			refresh = s.orch.RefreshEquipment
		}
		if err := refresh(ctx); err != nil {
			s.logger.Warn("Refresh failed, printing partial metrics", map[string]interface{}{"error": err.Error()})
		}
		return s.metrics.WriteText(stdout)
	})
}
