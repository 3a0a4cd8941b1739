package store

import (
	"fmt"

	"github.com/psantana5/sitesync/pkg/models"
)

// Store is the read-through cache of everything the backend holds for one
// session. Collections are only ever replaced wholesale.
type Store struct {
	Workers              *Collection[models.Worker]
	Attendance           *Collection[models.Attendance]
	Tasks                *Collection[models.Task]
	TaskAssignments      *Collection[models.TaskAssignment]
	Equipment            *Collection[models.Equipment]
	EquipmentAssignments *Collection[models.EquipmentAssignment]
	ProgressReports      *Collection[models.ProgressReport]
	ReportPhotos         *Collection[models.ReportPhoto]
}

// Snapshot is a point-in-time copy of every collection
type Snapshot struct {
	Workers              []models.Worker              `json:"workers"`
	Attendance           []models.Attendance          `json:"attendance"`
	Tasks                []models.Task                `json:"tasks"`
	TaskAssignments      []models.TaskAssignment      `json:"task_assignments"`
	Equipment            []models.Equipment           `json:"equipment"`
	EquipmentAssignments []models.EquipmentAssignment `json:"equipment_assignments"`
	ProgressReports      []models.ProgressReport      `json:"progress_reports"`
	ReportPhotos         []models.ReportPhoto         `json:"report_photos"`
}

// New creates an empty store
func New() *Store {
	return &Store{
		Workers:              NewCollection[models.Worker](),
		Attendance:           NewCollection[models.Attendance](),
		Tasks:                NewCollection[models.Task](),
		TaskAssignments:      NewCollection[models.TaskAssignment](),
		Equipment:            NewCollection[models.Equipment](),
		EquipmentAssignments: NewCollection[models.EquipmentAssignment](),
		ProgressReports:      NewCollection[models.ProgressReport](),
		ReportPhotos:         NewCollection[models.ReportPhoto](),
	}
}

// Reset drops every record, e.g. when the session user changes
func (s *Store) Reset() {
	s.Workers.ReplaceAll(nil)
	s.Attendance.ReplaceAll(nil)
	s.Tasks.ReplaceAll(nil)
	s.TaskAssignments.ReplaceAll(nil)
	s.Equipment.ReplaceAll(nil)
	s.EquipmentAssignments.ReplaceAll(nil)
	s.ProgressReports.ReplaceAll(nil)
	s.ReportPhotos.ReplaceAll(nil)
}

// UpsertAll replaces the collection for kind with records, which must be a
// slice of the kind's entity type.
func (s *Store) UpsertAll(kind models.Kind, records any) error {
	switch kind {
	case models.KindWorker:
		return replace(s.Workers, kind, records)
	case models.KindAttendance:
		return replace(s.Attendance, kind, records)
	case models.KindTask:
		return replace(s.Tasks, kind, records)
	case models.KindTaskAssignment:
		return replace(s.TaskAssignments, kind, records)
	case models.KindEquipment:
		return replace(s.Equipment, kind, records)
	case models.KindEquipmentAssignment:
		return replace(s.EquipmentAssignments, kind, records)
	case models.KindProgressReport:
		return replace(s.ProgressReports, kind, records)
	case models.KindReportPhoto:
		return replace(s.ReportPhotos, kind, records)
	default:
		return fmt.Errorf("store does not hold kind %q", kind)
	}
}

func replace[T models.Record](c *Collection[T], kind models.Kind, records any) error {
	if records == nil {
		c.ReplaceAll(nil)
		return nil
	}
	list, ok := records.([]T)
	if !ok {
		return fmt.Errorf("records for %s must be %T, got %T", kind, list, records)
	}
	c.ReplaceAll(list)
	return nil
}

// Get returns the record of kind with id, or ErrNotFound
func (s *Store) Get(kind models.Kind, id string) (models.Record, error) {
	var (
		rec models.Record
		err error
	)
	switch kind {
	case models.KindWorker:
		rec, err = s.Workers.Get(id)
	case models.KindAttendance:
		rec, err = s.Attendance.Get(id)
	case models.KindTask:
		rec, err = s.Tasks.Get(id)
	case models.KindTaskAssignment:
		rec, err = s.TaskAssignments.Get(id)
	case models.KindEquipment:
		rec, err = s.Equipment.Get(id)
	case models.KindEquipmentAssignment:
		rec, err = s.EquipmentAssignments.Get(id)
	case models.KindProgressReport:
		rec, err = s.ProgressReports.Get(id)
	case models.KindReportPhoto:
		rec, err = s.ReportPhotos.Get(id)
	default:
		return nil, fmt.Errorf("store does not hold kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Len returns the record count for kind
func (s *Store) Len(kind models.Kind) int {
	switch kind {
	case models.KindWorker:
		return s.Workers.Len()
	case models.KindAttendance:
		return s.Attendance.Len()
	case models.KindTask:
		return s.Tasks.Len()
	case models.KindTaskAssignment:
		return s.TaskAssignments.Len()
	case models.KindEquipment:
		return s.Equipment.Len()
	case models.KindEquipmentAssignment:
		return s.EquipmentAssignments.Len()
	case models.KindProgressReport:
		return s.ProgressReports.Len()
	case models.KindReportPhoto:
		return s.ReportPhotos.Len()
	default:
		return 0
	}
}

// Snapshot copies every collection. Each slice is independent of the store.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Workers:              s.Workers.List(),
		Attendance:           s.Attendance.List(),
		Tasks:                s.Tasks.List(),
		TaskAssignments:      s.TaskAssignments.List(),
		Equipment:            s.Equipment.List(),
		EquipmentAssignments: s.EquipmentAssignments.List(),
		ProgressReports:      s.ProgressReports.List(),
		ReportPhotos:         s.ReportPhotos.List(),
	}
}
