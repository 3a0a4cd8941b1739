package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/psantana5/sitesync/pkg/backend"
	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/retry"
)

// RefreshAll reloads every collection from the backend and notifies
// subscribers
func (o *Orchestrator) RefreshAll(ctx context.Context) error {
	return o.publicRefresh(ctx, "refresh_all", o.refreshAll)
}

// RefreshWorkers reloads workers and their attendance
func (o *Orchestrator) RefreshWorkers(ctx context.Context) error {
	return o.publicRefresh(ctx, "refresh_workers", o.refreshWorkers)
}

// RefreshTasks reloads tasks and their assignments
func (o *Orchestrator) RefreshTasks(ctx context.Context) error {
	return o.publicRefresh(ctx, "refresh_tasks", o.refreshTasks)
}

// RefreshEquipment reloads equipment and its assignments
func (o *Orchestrator) RefreshEquipment(ctx context.Context) error {
	return o.publicRefresh(ctx, "refresh_equipment", o.refreshEquipment)
}

// RefreshReports reloads progress reports and their photos
func (o *Orchestrator) RefreshReports(ctx context.Context) error {
	return o.publicRefresh(ctx, "refresh_reports", o.refreshReports)
}

func (o *Orchestrator) publicRefresh(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() { o.metrics.RecordCommand(name, err) }()

	o.setState(StateRefreshing)
	if err := fn(ctx); err != nil {
		o.setState(StateFailed)
		o.logger.Warn("Refresh failed", map[string]interface{}{"command": name, "error": err.Error()})
		return err
	}
	o.setState(StateIdle)
	o.notify()
	return nil
}

// refreshAll reloads every screen in order and stops at the first failure.
// Only the per-item loops inside each refresh run concurrently.
func (o *Orchestrator) refreshAll(ctx context.Context) error {
	for _, refresh := range []func(context.Context) error{
		o.refreshWorkers,
		o.refreshTasks,
		o.refreshEquipment,
		o.refreshReports,
	} {
		if err := refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) refreshWorkers(ctx context.Context) error {
	uid, err := o.requireSession("refresh workers")
	if err != nil {
		return err
	}
	workers, err := query(ctx, o, o.client.Workers, backend.ByUser(uid))
	if err != nil {
		return err
	}
	attendance, err := fanOut(ctx, o, models.KindAttendance, workers, func(ctx context.Context, w models.Worker) ([]models.Attendance, error) {
		return o.client.Attendance.QueryBy(ctx, backend.ByWorker(w.ID))
	})
	if err != nil {
		return err
	}
	return o.replace(map[models.Kind]any{
		models.KindWorker:     workers,
		models.KindAttendance: attendance,
	})
}

func (o *Orchestrator) refreshTasks(ctx context.Context) error {
	uid, err := o.requireSession("refresh tasks")
	if err != nil {
		return err
	}
	tasks, err := query(ctx, o, o.client.Tasks, backend.ByCreator(uid))
	if err != nil {
		return err
	}
	assignments, err := fanOut(ctx, o, models.KindTaskAssignment, tasks, func(ctx context.Context, t models.Task) ([]models.TaskAssignment, error) {
		return o.client.TaskAssignments.QueryBy(ctx, backend.ByTask(t.ID))
	})
	if err != nil {
		return err
	}
	return o.replace(map[models.Kind]any{
		models.KindTask:           tasks,
		models.KindTaskAssignment: assignments,
	})
}

func (o *Orchestrator) refreshEquipment(ctx context.Context) error {
	equipment, err := query(ctx, o, o.client.Equipment)
	if err != nil {
		return err
	}
	assignments, err := fanOut(ctx, o, models.KindEquipmentAssignment, equipment, func(ctx context.Context, e models.Equipment) ([]models.EquipmentAssignment, error) {
		return o.client.EquipmentAssignments.QueryBy(ctx, backend.ByEquipment(e.ID))
	})
	if err != nil {
		return err
	}
	return o.replace(map[models.Kind]any{
		models.KindEquipment:           equipment,
		models.KindEquipmentAssignment: assignments,
	})
}

func (o *Orchestrator) refreshReports(ctx context.Context) error {
	uid, err := o.requireSession("refresh reports")
	if err != nil {
		return err
	}
	reports, err := query(ctx, o, o.client.ProgressReports, backend.BySubmitter(uid))
	if err != nil {
		return err
	}
	photos, err := fanOut(ctx, o, models.KindReportPhoto, reports, func(ctx context.Context, r models.ProgressReport) ([]models.ReportPhoto, error) {
		return o.client.ReportPhotos.QueryBy(ctx, backend.ByReport(r.ID))
	})
	if err != nil {
		return err
	}
	return o.replace(map[models.Kind]any{
		models.KindProgressReport: reports,
		models.KindReportPhoto:    photos,
	})
}

// replace swaps whole collections into the store once every query of a
// refresh has finished
func (o *Orchestrator) replace(collections map[models.Kind]any) error {
	for kind, records := range collections {
		if err := o.store.UpsertAll(kind, records); err != nil {
			return fmt.Errorf("failed to store %s: %w", kind.Table(), err)
		}
		o.metrics.SetCollectionSize(kind.Table(), o.store.Len(kind))
	}
	return nil
}

// query runs a top-level collection query under the configured retry policy
func query[T models.Record](ctx context.Context, o *Orchestrator, repo *backend.Repository[T], filters ...backend.Filter) ([]T, error) {
	var out []T
	err := retry.Do(ctx, retry.WithRetries(o.cfg.RefreshRetries), func() error {
		var err error
		out, err = repo.QueryBy(ctx, filters...)
		return err
	})
	return out, err
}

// fanOut runs fetch for every parent with bounded concurrency and merges the
// results in parent order. A failed fetch is logged and its parent skipped.
func fanOut[P models.Record, C models.Record](ctx context.Context, o *Orchestrator, kind models.Kind, parents []P, fetch func(context.Context, P) ([]C, error)) ([]C, error) {
	results := make([][]C, len(parents))

	var g errgroup.Group
	g.SetLimit(o.cfg.RefreshConcurrency)
	for i, parent := range parents {
		i, parent := i, parent
		g.Go(func() error {
			children, err := fetch(ctx, parent)
			if err != nil {
				o.metrics.RecordRefreshSkip(kind.Table())
				o.logger.Warn("Skipping records during refresh", map[string]interface{}{
					"kind":   kind.Table(),
					"parent": parent.RecordID(),
					"error":  err.Error(),
				})
				return nil
			}
			results[i] = children
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refresh %s cancelled: %w", kind.Table(), err)
	}

	merged := make([]C, 0, len(parents))
	for _, children := range results {
		merged = append(merged, children...)
	}
	return merged, nil
}
