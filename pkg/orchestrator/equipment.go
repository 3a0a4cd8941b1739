package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/psantana5/sitesync/pkg/backend"
	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/resolver"
)

// CreateEquipment adds available equipment with last maintenance set to now
func (o *Orchestrator) CreateEquipment(ctx context.Context, name, kind string, condition models.Condition) (models.Equipment, error) {
	const op = "create equipment"
	in := equipmentInput{
		Name:      strings.TrimSpace(name),
		Type:      strings.TrimSpace(kind),
		Condition: strings.ToLower(strings.TrimSpace(string(condition))),
	}
	if err := o.check(op, in); err != nil {
		return models.Equipment{}, err
	}

	var created models.Equipment
	err := o.run(ctx, saga{
		command: "create_equipment",
		steps: []step{
			{name: "create equipment", run: func(ctx context.Context) error {
				var err error
				created, err = o.client.Equipment.Create(ctx, models.Equipment{
					Name:            in.Name,
					Type:            in.Type,
					Status:          models.EquipmentStatusAvailable,
					Condition:       models.Condition(in.Condition),
					LastMaintenance: models.NewTimestamp(o.timestamp()),
				})
				return err
			}},
		},
		refresh: o.refreshEquipment,
	})
	return created, err
}

// CheckOutEquipment hands available equipment to an active worker
func (o *Orchestrator) CheckOutEquipment(ctx context.Context, equipmentID, workerID string) (models.EquipmentAssignment, error) {
	const op = "check out equipment"
	equipmentID, err := o.requireID(op, "equipment id", equipmentID)
	if err != nil {
		return models.EquipmentAssignment{}, err
	}
	workerID, err = o.requireID(op, "worker id", workerID)
	if err != nil {
		return models.EquipmentAssignment{}, err
	}
	if _, err := o.requireSession(op); err != nil {
		return models.EquipmentAssignment{}, err
	}

	var (
		equipment  models.Equipment
		assignment models.EquipmentAssignment
	)
	err = o.run(ctx, saga{
		command: "check_out_equipment",
		steps: []step{
			{name: "create equipment assignment", run: func(ctx context.Context) error {
				var err error
				equipment, err = o.findEquipment(ctx, op, equipmentID)
				if err != nil {
					return err
				}
				if equipment.Status != models.EquipmentStatusAvailable {
					return models.NewValidationError(op, fmt.Sprintf("%s is %s", equipment.Name, equipment.Status))
				}
				worker, err := o.findWorker(ctx, op, workerID)
				if err != nil {
					return err
				}
				if !worker.IsActive {
					return models.NewValidationError(op, fmt.Sprintf("worker %s is not checked in", worker.Name))
				}
				// Status can read available while an assignment is still open.
				holder, held, err := o.openAssignment(ctx, equipmentID)
				if err != nil {
					return err
				}
				if held {
					return models.NewValidationError(op, fmt.Sprintf("%s is still held by worker %s", equipment.Name, holder.WorkerID))
				}
				assignment, err = o.client.EquipmentAssignments.Create(ctx, models.EquipmentAssignment{
					EquipmentID: equipmentID,
					WorkerID:    workerID,
					CheckedOut:  models.NewTimestamp(o.timestamp()),
				})
				return err
			}},
			{name: "mark equipment in use", run: func(ctx context.Context) error {
				equipment.Status = models.EquipmentStatusInUse
				_, err := o.client.Equipment.Update(ctx, equipment)
				return err
			}},
		},
		refresh: o.refreshEquipment,
	})
	return assignment, err
}

// CheckInEquipment closes the open assignment and makes the equipment
// available again in the given condition
func (o *Orchestrator) CheckInEquipment(ctx context.Context, equipmentID string, condition models.Condition) (models.Equipment, error) {
	const op = "check in equipment"
	in := checkInEquipmentInput{
		EquipmentID: strings.TrimSpace(equipmentID),
		Condition:   strings.ToLower(strings.TrimSpace(string(condition))),
	}
	if err := o.check(op, in); err != nil {
		return models.Equipment{}, err
	}

	var updated models.Equipment
	err := o.run(ctx, saga{
		command: "check_in_equipment",
		steps: []step{
			{name: "close equipment assignment", run: func(ctx context.Context) error {
				open, ok, err := o.openAssignment(ctx, in.EquipmentID)
				if err != nil {
					return err
				}
				if !ok {
					return models.NewNotFoundError(op, "no open assignment for equipment "+in.EquipmentID)
				}
				open.CheckedIn = models.TimestampPtr(o.timestamp())
				_, err = o.client.EquipmentAssignments.Update(ctx, open)
				return err
			}},
			{name: "mark equipment available", run: func(ctx context.Context) error {
				e, err := o.findEquipment(ctx, op, in.EquipmentID)
				if err != nil {
					return err
				}
				e.Status = models.EquipmentStatusAvailable
				e.Condition = models.Condition(in.Condition)
				updated, err = o.client.Equipment.Update(ctx, e)
				return err
			}},
		},
		refresh: o.refreshEquipment,
	})
	return updated, err
}

// SetEquipmentStatus switches equipment between available and maintenance.
// Maintenance stamps last_maintenance and closes any open assignment. Setting
// available leaves an open assignment untouched; use CheckInEquipment for
// returns. in_use is only reachable through CheckOutEquipment.
func (o *Orchestrator) SetEquipmentStatus(ctx context.Context, equipmentID string, status models.EquipmentStatus) (models.Equipment, error) {
	const op = "set equipment status"
	in := equipmentStatusInput{
		EquipmentID: strings.TrimSpace(equipmentID),
		Status:      strings.ToLower(strings.TrimSpace(string(status))),
	}
	if in.Status == string(models.EquipmentStatusInUse) {
		return models.Equipment{}, models.NewValidationError(op, "in_use is set by checking equipment out")
	}
	if err := o.check(op, in); err != nil {
		return models.Equipment{}, err
	}
	target := models.EquipmentStatus(in.Status)

	var updated models.Equipment
	steps := []step{
		{name: "update equipment", run: func(ctx context.Context) error {
			e, err := o.findEquipment(ctx, op, in.EquipmentID)
			if err != nil {
				return err
			}
			e.Status = target
			if target == models.EquipmentStatusMaintenance {
				e.LastMaintenance = models.NewTimestamp(o.timestamp())
			}
			updated, err = o.client.Equipment.Update(ctx, e)
			return err
		}},
	}
	if target == models.EquipmentStatusMaintenance {
		steps = append(steps, step{name: "close equipment assignment", run: func(ctx context.Context) error {
			open, ok, err := o.openAssignment(ctx, in.EquipmentID)
			if err != nil || !ok {
				return err
			}
			open.CheckedIn = models.TimestampPtr(o.timestamp())
			_, err = o.client.EquipmentAssignments.Update(ctx, open)
			return err
		}})
	}

	err := o.run(ctx, saga{
		command: "set_equipment_status",
		steps:   steps,
		refresh: o.refreshEquipment,
	})
	return updated, err
}

func (o *Orchestrator) findEquipment(ctx context.Context, op, id string) (models.Equipment, error) {
	all, err := o.client.Equipment.QueryBy(ctx)
	if err != nil {
		return models.Equipment{}, err
	}
	e, ok := findByID(all, id)
	if !ok {
		return models.Equipment{}, models.NewNotFoundError(op, "equipment "+id+" not found")
	}
	return e, nil
}

func (o *Orchestrator) openAssignment(ctx context.Context, equipmentID string) (models.EquipmentAssignment, bool, error) {
	assignments, err := o.client.EquipmentAssignments.QueryBy(ctx, backend.ByEquipment(equipmentID))
	if err != nil {
		return models.EquipmentAssignment{}, false, err
	}
	a, ok := resolver.CurrentEquipmentHolder(equipmentID, assignments)
	return a, ok, nil
}
