package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/psantana5/sitesync/pkg/models"
)

var stdout io.Writer = os.Stdout

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

func printJSON(v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(stdout, string(output))
	return nil
}

func newTable(headers ...any) *tablewriter.Table {
	table := tablewriter.NewWriter(stdout)
	table.Header(headers...)
	return table
}

// printProperties renders a two column property table
func printProperties(rows [][2]string) error {
	table := newTable("Property", "Value")
	for _, r := range rows {
		table.Append(r[0], r[1])
	}
	return table.Render()
}

func formatTime(ts models.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func formatOptionalTime(ts *models.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return formatTime(*ts)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
