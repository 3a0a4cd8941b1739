// Package resolver derives "current" relationships from the append-only
// assignment and attendance lists held by the store. Every function is a
// linear scan over its inputs and nothing is cached.
package resolver

import (
	"github.com/psantana5/sitesync/pkg/models"
)

// CurrentEquipmentHolder returns the open assignment for equipmentID. If the
// list holds more than one open record the first in list order wins.
func CurrentEquipmentHolder(equipmentID string, assignments []models.EquipmentAssignment) (models.EquipmentAssignment, bool) {
	for _, a := range assignments {
		if a.EquipmentID == equipmentID && a.IsOpen() {
			return a, true
		}
	}
	return models.EquipmentAssignment{}, false
}

// OpenEquipmentAssignments returns every open assignment for equipmentID.
// More than one result means a double checkout happened.
func OpenEquipmentAssignments(equipmentID string, assignments []models.EquipmentAssignment) []models.EquipmentAssignment {
	var open []models.EquipmentAssignment
	for _, a := range assignments {
		if a.EquipmentID == equipmentID && a.IsOpen() {
			open = append(open, a)
		}
	}
	return open
}

// HeldEquipment returns the open assignments held by workerID
func HeldEquipment(workerID string, assignments []models.EquipmentAssignment) []models.EquipmentAssignment {
	var held []models.EquipmentAssignment
	for _, a := range assignments {
		if a.WorkerID == workerID && a.IsOpen() {
			held = append(held, a)
		}
	}
	return held
}

// CurrentOpenAttendance returns the session of workerID that has no check-out
func CurrentOpenAttendance(workerID string, records []models.Attendance) (models.Attendance, bool) {
	for _, r := range records {
		if r.WorkerID == workerID && r.IsOpen() {
			return r, true
		}
	}
	return models.Attendance{}, false
}

// AttendanceFor returns every session of workerID in list order
func AttendanceFor(workerID string, records []models.Attendance) []models.Attendance {
	var out []models.Attendance
	for _, r := range records {
		if r.WorkerID == workerID {
			out = append(out, r)
		}
	}
	return out
}

// AssignedWorkersForTask returns the workers referenced by any assignment of
// taskID, once each, in worker list order. Assignments naming unknown
// workers are ignored.
func AssignedWorkersForTask(taskID string, assignments []models.TaskAssignment, workers []models.Worker) []models.Worker {
	assigned := make(map[string]bool)
	for _, a := range assignments {
		if a.TaskID == taskID {
			assigned[a.WorkerID] = true
		}
	}
	if len(assigned) == 0 {
		return nil
	}

	var out []models.Worker
	seen := make(map[string]bool, len(assigned))
	for _, w := range workers {
		if assigned[w.ID] && !seen[w.ID] {
			seen[w.ID] = true
			out = append(out, w)
		}
	}
	return out
}

// FindTaskAssignment returns the first assignment linking taskID and workerID
func FindTaskAssignment(taskID, workerID string, assignments []models.TaskAssignment) (models.TaskAssignment, bool) {
	for _, a := range assignments {
		if a.TaskID == taskID && a.WorkerID == workerID {
			return a, true
		}
	}
	return models.TaskAssignment{}, false
}

// TasksForWorker returns the tasks workerID is assigned to, in task list order
func TasksForWorker(workerID string, assignments []models.TaskAssignment, tasks []models.Task) []models.Task {
	ids := make(map[string]bool)
	for _, a := range assignments {
		if a.WorkerID == workerID {
			ids[a.TaskID] = true
		}
	}
	var out []models.Task
	for _, t := range tasks {
		if ids[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// ActiveWorkers returns the workers currently checked in
func ActiveWorkers(workers []models.Worker) []models.Worker {
	var out []models.Worker
	for _, w := range workers {
		if w.IsActive {
			out = append(out, w)
		}
	}
	return out
}

// FilterTasksByStatus keeps tasks in status. An empty status keeps everything.
func FilterTasksByStatus(tasks []models.Task, status models.TaskStatus) []models.Task {
	if status == "" {
		return tasks
	}
	var out []models.Task
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// FilterEquipmentByStatus keeps equipment in status. An empty status keeps everything.
func FilterEquipmentByStatus(equipment []models.Equipment, status models.EquipmentStatus) []models.Equipment {
	if status == "" {
		return equipment
	}
	var out []models.Equipment
	for _, e := range equipment {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// LatestReport returns the report with the greatest date. On equal dates the
// earlier entry in the list wins.
func LatestReport(reports []models.ProgressReport) (models.ProgressReport, bool) {
	var (
		latest models.ProgressReport
		found  bool
	)
	for _, r := range reports {
		if !found || r.Date.After(latest.Date.Time) {
			latest = r
			found = true
		}
	}
	return latest, found
}

// PhotosForReport returns the photos attached to reportID
func PhotosForReport(reportID string, photos []models.ReportPhoto) []models.ReportPhoto {
	var out []models.ReportPhoto
	for _, p := range photos {
		if p.ReportID == reportID {
			out = append(out, p)
		}
	}
	return out
}
