package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psantana5/sitesync/pkg/orchestrator"
	"github.com/psantana5/sitesync/pkg/resolver"
)

var (
	reportDescription string
	reportPercent     float64
	reportPhotos      []string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Submit and review progress reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List progress reports",
	RunE:  runReportsList,
}

var reportsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a progress report dated today",
	Long: `Submit a progress report. Each --photo is uploaded and linked to the report;
use path:caption to attach a caption. A photo that fails is reported but does
not fail the submission.`,
	RunE: runReportsSubmit,
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd, reportsSubmitCmd)

	reportsSubmitCmd.Flags().StringVar(&reportDescription, "description", "", "work done")
	reportsSubmitCmd.Flags().Float64Var(&reportPercent, "percent", 0, "overall completion percentage (clamped to 0-100)")
	reportsSubmitCmd.Flags().StringArrayVar(&reportPhotos, "photo", nil, "photo to attach, as path or path:caption (repeatable)")
	_ = reportsSubmitCmd.MarkFlagRequired("description")
}

func runReportsList(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if err := s.orch.RefreshReports(ctx); err != nil {
			return err
		}
		snap := s.orch.Snapshot()
		if IsJSONOutput() {
			return printJSON(map[string]interface{}{
				"reports": snap.ProgressReports,
				"photos":  snap.ReportPhotos,
			})
		}
		if len(snap.ProgressReports) == 0 {
			fmt.Fprintln(stdout, "No progress reports")
			return nil
		}

		table := newTable("ID", "Date", "Complete", "Description", "Photos")
		for _, r := range snap.ProgressReports {
			photos := resolver.PhotosForReport(r.ID, snap.ReportPhotos)
			table.Append(r.ID, r.Date.String(), fmt.Sprintf("%.0f%%", r.PercentageComplete), r.Description, fmt.Sprintf("%d", len(photos)))
		}
		return table.Render()
	})
}

func runReportsSubmit(cmd *cobra.Command, args []string) error {
	uploads := make([]orchestrator.PhotoUpload, 0, len(reportPhotos))
	for _, value := range reportPhotos {
		path, caption := splitPhotoFlag(value)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open photo: %w", err)
		}
		defer f.Close()
		uploads = append(uploads, orchestrator.PhotoUpload{Name: path, Caption: caption, Content: f})
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		result, err := s.orch.SubmitProgressReport(ctx, reportDescription, reportPercent, uploads)
		if err != nil {
			return err
		}
		for _, f := range result.Failures {
			fmt.Fprintf(os.Stderr, "Warning: photo %s not attached: %v\n", f.Name, f.Err)
		}
		if IsJSONOutput() {
			return printJSON(map[string]interface{}{
				"report": result.Report,
				"photos": result.Photos,
			})
		}
		fmt.Fprintf(stdout, "Report %s submitted at %.0f%% with %d photo(s)\n",
			result.Report.ID, result.Report.PercentageComplete, len(result.Photos))
		return nil
	})
}

// splitPhotoFlag separates path:caption. A colon inside a Windows drive
// prefix or without a caption after it is kept in the path.
func splitPhotoFlag(value string) (path, caption string) {
	i := strings.LastIndex(value, ":")
	if i <= 1 || i == len(value)-1 {
		return value, ""
	}
	return value[:i], value[i+1:]
}
