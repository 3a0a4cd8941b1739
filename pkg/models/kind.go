package models

import "fmt"

// Kind identifies an entity collection. Each kind maps to exactly one
// backend table.
type Kind string

const (
	KindUser                Kind = "user"
	KindWorker              Kind = "worker"
	KindAttendance          Kind = "attendance"
	KindTask                Kind = "task"
	KindTaskAssignment      Kind = "task_assignment"
	KindEquipment           Kind = "equipment"
	KindEquipmentAssignment Kind = "equipment_assignment"
	KindProgressReport      Kind = "progress_report"
	KindReportPhoto         Kind = "report_photo"
)

var tableNames = map[Kind]string{
	KindUser:                "users",
	KindWorker:              "workers",
	KindAttendance:          "attendance",
	KindTask:                "tasks",
	KindTaskAssignment:      "task_assignments",
	KindEquipment:           "equipment",
	KindEquipmentAssignment: "equipment_assignments",
	KindProgressReport:      "progress_reports",
	KindReportPhoto:         "report_photos",
}

// Table returns the backend table name for the kind
func (k Kind) Table() string {
	return tableNames[k]
}

// Valid reports whether the kind is known
func (k Kind) Valid() bool {
	_, ok := tableNames[k]
	return ok
}

// ParseKind resolves a kind from either its name or its table name
func ParseKind(s string) (Kind, error) {
	if k := Kind(s); k.Valid() {
		return k, nil
	}
	for k, table := range tableNames {
		if table == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind: %s", s)
}

// SyncedKinds lists the kinds held by the entity store, in refresh order.
// Users are exchanged only during login and are never cached.
func SyncedKinds() []Kind {
	return []Kind{
		KindWorker,
		KindAttendance,
		KindTask,
		KindTaskAssignment,
		KindEquipment,
		KindEquipmentAssignment,
		KindProgressReport,
		KindReportPhoto,
	}
}

// Record is implemented by every entity stored in a backend table
type Record interface {
	RecordID() string
	Kind() Kind
}
