package models

import "math"

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// EquipmentStatus is the availability of a piece of equipment
type EquipmentStatus string

const (
	EquipmentStatusAvailable   EquipmentStatus = "available"
	EquipmentStatusInUse       EquipmentStatus = "in_use"
	EquipmentStatusMaintenance EquipmentStatus = "maintenance"
)

// Condition is the physical state recorded for equipment
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
)

// User is the account returned by the credential exchange
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email,omitempty"`
	Provider         string    `json:"provider"`
	ProviderUsername string    `json:"provider_username,omitempty"`
	CreatedAt        Timestamp `json:"created_at"`
}

func (u User) RecordID() string { return u.ID }
func (User) Kind() Kind         { return KindUser }

// Worker is a site worker owned by a manager account.
// IsActive is true iff the worker is currently checked in.
type Worker struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	IsActive bool   `json:"is_active"`
}

func (w Worker) RecordID() string { return w.ID }
func (Worker) Kind() Kind         { return KindWorker }

// Attendance is one check-in session. CheckOut is nil while the session is open.
type Attendance struct {
	ID       string     `json:"id"`
	WorkerID string     `json:"worker_id"`
	CheckIn  Timestamp  `json:"check_in"`
	CheckOut *Timestamp `json:"check_out"`
}

func (a Attendance) RecordID() string { return a.ID }
func (Attendance) Kind() Kind         { return KindAttendance }

// IsOpen reports whether the session has not been closed. A check-out
// stored as "" decodes to a zero timestamp and counts as open.
func (a Attendance) IsOpen() bool { return a.CheckOut == nil || a.CheckOut.IsZero() }

// Task is a unit of site work
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     Timestamp  `json:"due_date"`
	CreatedBy   string     `json:"created_by"`
}

func (t Task) RecordID() string { return t.ID }
func (Task) Kind() Kind         { return KindTask }

// TaskAssignment links a worker to a task. Records are never removed.
type TaskAssignment struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	WorkerID string `json:"worker_id"`
}

func (a TaskAssignment) RecordID() string { return a.ID }
func (TaskAssignment) Kind() Kind         { return KindTaskAssignment }

// Equipment is a tracked tool or machine
type Equipment struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Status          EquipmentStatus `json:"status"`
	Condition       Condition       `json:"condition"`
	LastMaintenance Timestamp       `json:"last_maintenance"`
}

func (e Equipment) RecordID() string { return e.ID }
func (Equipment) Kind() Kind         { return KindEquipment }

// EquipmentAssignment records equipment handed to a worker. CheckedIn is nil
// while the worker still holds it.
type EquipmentAssignment struct {
	ID          string     `json:"id"`
	EquipmentID string     `json:"equipment_id"`
	WorkerID    string     `json:"worker_id"`
	CheckedOut  Timestamp  `json:"checked_out"`
	CheckedIn   *Timestamp `json:"checked_in"`
}

func (a EquipmentAssignment) RecordID() string { return a.ID }
func (EquipmentAssignment) Kind() Kind         { return KindEquipmentAssignment }

// IsOpen reports whether the equipment has not been returned
func (a EquipmentAssignment) IsOpen() bool { return a.CheckedIn == nil || a.CheckedIn.IsZero() }

// ProgressReport is a dated site progress note
type ProgressReport struct {
	ID                 string  `json:"id"`
	Date               Date    `json:"date"`
	Description        string  `json:"description"`
	PercentageComplete float64 `json:"percentage_complete"`
	SubmittedBy        string  `json:"submitted_by"`
}

func (r ProgressReport) RecordID() string { return r.ID }
func (ProgressReport) Kind() Kind         { return KindProgressReport }

// ReportPhoto attaches an uploaded photo to a report
type ReportPhoto struct {
	ID       string `json:"id"`
	ReportID string `json:"report_id"`
	PhotoURL string `json:"photo_url"`
	Caption  string `json:"caption"`
}

func (p ReportPhoto) RecordID() string { return p.ID }
func (ReportPhoto) Kind() Kind         { return KindReportPhoto }

// ClampPercentage bounds v to [0, 100]. NaN maps to 0.
func ClampPercentage(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
