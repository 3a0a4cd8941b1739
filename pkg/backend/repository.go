package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/psantana5/sitesync/pkg/models"
)

// Filter narrows a query to records whose Field equals Value
type Filter struct {
	Field string
	Value string
}

func ByWorker(id string) Filter    { return Filter{Field: "worker_id", Value: id} }
func ByTask(id string) Filter      { return Filter{Field: "task_id", Value: id} }
func ByEquipment(id string) Filter { return Filter{Field: "equipment_id", Value: id} }
func ByUser(id string) Filter      { return Filter{Field: "user_id", Value: id} }
func ByCreator(id string) Filter   { return Filter{Field: "created_by", Value: id} }
func BySubmitter(id string) Filter { return Filter{Field: "submitted_by", Value: id} }
func ByReport(id string) Filter    { return Filter{Field: "report_id", Value: id} }

// filterFields lists the fields the document store indexes per kind
var filterFields = map[models.Kind]map[string]bool{
	models.KindWorker:              {"user_id": true},
	models.KindAttendance:          {"worker_id": true},
	models.KindTask:                {"created_by": true},
	models.KindTaskAssignment:      {"task_id": true, "worker_id": true},
	models.KindEquipment:           {},
	models.KindEquipmentAssignment: {"equipment_id": true, "worker_id": true},
	models.KindProgressReport:      {"submitted_by": true},
	models.KindReportPhoto:         {"report_id": true},
}

// Repository is the typed create/update/query surface for one entity kind
type Repository[T models.Record] struct {
	transport *Transport
	kind      models.Kind
}

// NewRepository binds a repository for T's kind to t
func NewRepository[T models.Record](t *Transport) *Repository[T] {
	var zero T
	return &Repository[T]{transport: t, kind: zero.Kind()}
}

// Kind returns the entity kind served by the repository
func (r *Repository[T]) Kind() models.Kind {
	return r.kind
}

// Create stores rec and returns it with its server-assigned id. Any id set
// on rec is not sent.
func (r *Repository[T]) Create(ctx context.Context, rec T) (T, error) {
	op := "create " + r.kind.Table()
	var zero T

	data, err := withoutID(rec)
	if err != nil {
		return zero, models.NewValidationError(op, err.Error())
	}

	var out T
	if err := r.transport.save(ctx, op, r.kind.Table(), data, &out); err != nil {
		return zero, err
	}
	if out.RecordID() == "" {
		return zero, models.NewBackendError(op, http.StatusOK, "created record has no id")
	}
	return out, nil
}

// Update replaces the stored record with rec. Only full records are sent.
func (r *Repository[T]) Update(ctx context.Context, rec T) (T, error) {
	op := "update " + r.kind.Table()
	var zero T
	if rec.RecordID() == "" {
		return zero, models.NewValidationError(op, "record id is required")
	}

	var out T
	if err := r.transport.save(ctx, op, r.kind.Table(), rec, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// QueryBy returns every record matching all filters, in server order
func (r *Repository[T]) QueryBy(ctx context.Context, filters ...Filter) ([]T, error) {
	op := "query " + r.kind.Table()
	allowed := filterFields[r.kind]

	params := make(map[string]string, len(filters))
	for _, f := range filters {
		if !allowed[f.Field] {
			return nil, models.NewValidationError(op, fmt.Sprintf("%s cannot be filtered by %s", r.kind.Table(), f.Field))
		}
		if f.Value == "" {
			return nil, models.NewValidationError(op, fmt.Sprintf("%s filter value is required", f.Field))
		}
		params[f.Field] = f.Value
	}

	var out []T
	if err := r.transport.Query(ctx, r.kind.Table(), params, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// withoutID encodes rec as a JSON object with the id field removed
func withoutID(rec any) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}
