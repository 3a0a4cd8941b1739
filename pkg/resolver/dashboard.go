package resolver

import (
	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/store"
)

// Dashboard is the site summary shown on the home screen
type Dashboard struct {
	ActiveWorkers    int     `json:"active_workers"`
	TotalWorkers     int     `json:"total_workers"`
	TotalTasks       int     `json:"total_tasks"`
	OpenTasks        int     `json:"open_tasks"`
	CompletedTasks   int     `json:"completed_tasks"`
	TotalEquipment   int     `json:"total_equipment"`
	EquipmentInUse   int     `json:"equipment_in_use"`
	EquipmentInMaint int     `json:"equipment_in_maintenance"`
	LatestProgress   float64 `json:"latest_progress"`
	LatestReportDate string  `json:"latest_report_date,omitempty"`
}

// Summarize computes the dashboard from a snapshot
func Summarize(snap store.Snapshot) Dashboard {
	d := Dashboard{
		ActiveWorkers:  len(ActiveWorkers(snap.Workers)),
		TotalWorkers:   len(snap.Workers),
		TotalTasks:     len(snap.Tasks),
		TotalEquipment: len(snap.Equipment),
	}

	for _, t := range snap.Tasks {
		if models.IsOpenTask(t.Status) {
			d.OpenTasks++
		} else if t.Status == models.TaskStatusCompleted {
			d.CompletedTasks++
		}
	}

	for _, e := range snap.Equipment {
		switch e.Status {
		case models.EquipmentStatusInUse:
			d.EquipmentInUse++
		case models.EquipmentStatusMaintenance:
			d.EquipmentInMaint++
		}
	}

	if r, ok := LatestReport(snap.ProgressReports); ok {
		d.LatestProgress = models.ClampPercentage(r.PercentageComplete)
		d.LatestReportDate = r.Date.String()
	}
	return d
}
