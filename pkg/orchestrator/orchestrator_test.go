package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/sitesync/internal/devserver"
	"github.com/psantana5/sitesync/pkg/backend"
	"github.com/psantana5/sitesync/pkg/config"
	"github.com/psantana5/sitesync/pkg/metrics"
	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/resolver"
	"github.com/psantana5/sitesync/pkg/store"
)

// request describes a document store call as seen by the failure injector
type request struct {
	Method string
	Path   string
	Table  string
	Data   map[string]any
	Query  map[string]string
}

// injector fails requests matching the current rule with a 500
type injector struct {
	mu       sync.Mutex
	rule     func(request) bool
	requests int64
}

func (i *injector) failWhen(rule func(request) bool) {
	i.mu.Lock()
	i.rule = rule
	i.mu.Unlock()
}

func (i *injector) count() int64 {
	return atomic.LoadInt64(&i.requests)
}

func (i *injector) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&i.requests, 1)
		req := request{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
		for k := range r.URL.Query() {
			req.Query[k] = r.URL.Query().Get(k)
		}
		req.Table = req.Query["table_name"]
		if r.Method == http.MethodPost && r.URL.Path == "/data" {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
			var env struct {
				TableName string         `json:"table_name"`
				Data      map[string]any `json:"data"`
			}
			_ = json.Unmarshal(body, &env)
			req.Table, req.Data = env.TableName, env.Data
		}

		i.mu.Lock()
		rule := i.rule
		i.mu.Unlock()
		if rule != nil && rule(req) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"injected failure"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type harness struct {
	orch    *Orchestrator
	store   *store.Store
	metrics *metrics.Metrics
	inject  *injector
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	inj := &injector{}
	srv := httptest.NewServer(inj.wrap(devserver.New(devserver.NewMemoryDocuments(), devserver.WithUploadDir(t.TempDir())).Handler()))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.BaseURL = srv.URL
	cfg.TenantID = "tenant-test"
	cfg.RefreshConcurrency = 2
	for _, m := range mutate {
		m(&cfg)
	}

	m := metrics.New()
	base := time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC)
	var tick int64
	clock := func() time.Time {
		n := atomic.AddInt64(&tick, 1)
		return base.Add(time.Duration(n) * time.Minute)
	}

	st := store.New()
	client := backend.NewClient(cfg, backend.WithMetrics(m))
	return &harness{
		orch:    New(cfg, client, st, WithMetrics(m), WithClock(clock)),
		store:   st,
		metrics: m,
		inject:  inj,
	}
}

func (h *harness) login(t *testing.T) models.User {
	t.Helper()
	user, err := h.orch.Register(context.Background(), "manager@site.test", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	return user
}

func (h *harness) metricsText(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, h.metrics.WriteText(&buf))
	return buf.String()
}

func isWorkerUpdate(r request) bool {
	_, hasID := r.Data["id"]
	return r.Method == http.MethodPost && r.Table == "workers" && hasID
}

func TestValidationHappensBeforeIO(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err), "no session user")
	assert.Equal(t, int64(0), h.inject.count())

	h.login(t)
	before := h.inject.count()

	tests := []struct {
		name string
		call func() error
	}{
		{"blank worker name", func() error { _, err := h.orch.CreateWorker(ctx, "  ", "welder", ""); return err }},
		{"bad priority", func() error {
			_, err := h.orch.CreateTask(ctx, "Pour slab", "", models.Priority("urgent"), time.Now())
			return err
		}},
		{"missing due date", func() error {
			_, err := h.orch.CreateTask(ctx, "Pour slab", "", models.PriorityHigh, time.Time{})
			return err
		}},
		{"unknown task command", func() error {
			_, err := h.orch.ApplyTaskCommand(ctx, "t-1", models.TaskCommand("archive"))
			return err
		}},
		{"bad condition", func() error {
			_, err := h.orch.CreateEquipment(ctx, "Drill", "power tool", models.Condition("broken"))
			return err
		}},
		{"in_use set directly", func() error {
			_, err := h.orch.SetEquipmentStatus(ctx, "e-1", models.EquipmentStatusInUse)
			return err
		}},
		{"blank check-in condition", func() error { _, err := h.orch.CheckInEquipment(ctx, "e-1", ""); return err }},
		{"blank worker id", func() error { _, err := h.orch.CheckInWorker(ctx, " "); return err }},
		{"blank report", func() error { _, err := h.orch.SubmitProgressReport(ctx, "", 10, nil); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, models.IsValidation(err), err.Error())
			var sagaErr *SagaError
			assert.False(t, errors.As(err, &sagaErr))
		})
	}
	assert.Equal(t, before, h.inject.count())
}

// Scenario: create worker, check in, duplicate check-in rejected, check out
func TestWorkerAttendanceLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.login(t)

	worker, err := h.orch.CreateWorker(ctx, "Ana", "welder", "555-0100")
	require.NoError(t, err)
	assert.Equal(t, user.ID, worker.UserID)
	assert.False(t, worker.IsActive)

	session, err := h.orch.CheckInWorker(ctx, worker.ID)
	require.NoError(t, err)
	assert.True(t, session.IsOpen())
	assert.Equal(t, StateIdle, h.orch.State())

	cached, err := h.store.Workers.Get(worker.ID)
	require.NoError(t, err)
	assert.True(t, cached.IsActive)
	open, ok := resolver.CurrentOpenAttendance(worker.ID, h.store.Attendance.List())
	require.True(t, ok)
	assert.Equal(t, session.ID, open.ID)

	_, err = h.orch.CheckInWorker(ctx, worker.ID)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	var sagaErr *SagaError
	require.True(t, errors.As(err, &sagaErr))
	assert.False(t, sagaErr.Partial())

	closed, err := h.orch.CheckOutWorker(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, closed.ID)
	require.NotNil(t, closed.CheckOut)

	cached, err = h.store.Workers.Get(worker.ID)
	require.NoError(t, err)
	assert.False(t, cached.IsActive)
	_, ok = resolver.CurrentOpenAttendance(worker.ID, h.store.Attendance.List())
	assert.False(t, ok)

	_, err = h.orch.CheckOutWorker(ctx, worker.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestAttendanceHistoryNewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	worker, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	var ids []string
	for i := 0; i < 3; i++ {
		s, err := h.orch.CheckInWorker(ctx, worker.ID)
		require.NoError(t, err)
		_, err = h.orch.CheckOutWorker(ctx, worker.ID)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	history, err := h.orch.AttendanceHistory(ctx, worker.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{history[0].ID, history[1].ID, history[2].ID})
}

func TestUpdateWorkerProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	worker, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	updated, err := h.orch.UpdateWorkerProfile(ctx, worker.ID, "Ana Ruiz", "foreman", "555-0101")
	require.NoError(t, err)
	assert.Equal(t, "foreman", updated.Role)

	cached, err := h.store.Workers.Get(worker.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", cached.Name)
	assert.Equal(t, "555-0101", cached.Phone)

	_, err = h.orch.UpdateWorkerProfile(ctx, "missing", "X", "Y", "")
	assert.True(t, models.IsNotFound(err))
}

// Scenario: check equipment out to an active worker and back in
func TestEquipmentRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	worker, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	drill, err := h.orch.CreateEquipment(ctx, "Drill", "power tool", models.ConditionGood)
	require.NoError(t, err)
	assert.Equal(t, models.EquipmentStatusAvailable, drill.Status)

	_, err = h.orch.CheckOutEquipment(ctx, drill.ID, worker.ID)
	assert.True(t, models.IsValidation(err), "inactive worker cannot take equipment")

	_, err = h.orch.CheckInWorker(ctx, worker.ID)
	require.NoError(t, err)

	assignment, err := h.orch.CheckOutEquipment(ctx, drill.ID, worker.ID)
	require.NoError(t, err)
	assert.True(t, assignment.IsOpen())

	cached, err := h.store.Equipment.Get(drill.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EquipmentStatusInUse, cached.Status)
	holder, ok := resolver.CurrentEquipmentHolder(drill.ID, h.store.EquipmentAssignments.List())
	require.True(t, ok)
	assert.Equal(t, worker.ID, holder.WorkerID)

	_, err = h.orch.CheckOutEquipment(ctx, drill.ID, worker.ID)
	assert.True(t, models.IsValidation(err), "double checkout")
	assert.Len(t, resolver.OpenEquipmentAssignments(drill.ID, h.store.EquipmentAssignments.List()), 1)

	returned, err := h.orch.CheckInEquipment(ctx, drill.ID, models.ConditionFair)
	require.NoError(t, err)
	assert.Equal(t, models.EquipmentStatusAvailable, returned.Status)
	assert.Equal(t, models.ConditionFair, returned.Condition)

	_, ok = resolver.CurrentEquipmentHolder(drill.ID, h.store.EquipmentAssignments.List())
	assert.False(t, ok)

	_, err = h.orch.CheckInEquipment(ctx, drill.ID, models.ConditionGood)
	assert.True(t, models.IsNotFound(err))
}

func TestMaintenanceClosesOpenAssignment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	worker, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	_, err = h.orch.CheckInWorker(ctx, worker.ID)
	require.NoError(t, err)
	mixer, err := h.orch.CreateEquipment(ctx, "Mixer", "concrete", models.ConditionExcellent)
	require.NoError(t, err)
	_, err = h.orch.CheckOutEquipment(ctx, mixer.ID, worker.ID)
	require.NoError(t, err)

	updated, err := h.orch.SetEquipmentStatus(ctx, mixer.ID, models.EquipmentStatusMaintenance)
	require.NoError(t, err)
	assert.Equal(t, models.EquipmentStatusMaintenance, updated.Status)
	assert.True(t, updated.LastMaintenance.After(mixer.LastMaintenance.Time))

	_, ok := resolver.CurrentEquipmentHolder(mixer.ID, h.store.EquipmentAssignments.List())
	assert.False(t, ok)

	available, err := h.orch.SetEquipmentStatus(ctx, mixer.ID, models.EquipmentStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, models.EquipmentStatusAvailable, available.Status)
}

func TestCheckoutRejectedWhileAssignmentOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	ana, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	ben, err := h.orch.CreateWorker(ctx, "Ben", "carpenter", "")
	require.NoError(t, err)
	for _, id := range []string{ana.ID, ben.ID} {
		_, err = h.orch.CheckInWorker(ctx, id)
		require.NoError(t, err)
	}
	saw, err := h.orch.CreateEquipment(ctx, "Saw", "power tool", models.ConditionGood)
	require.NoError(t, err)

	_, err = h.orch.CheckOutEquipment(ctx, saw.ID, ana.ID)
	require.NoError(t, err)
	_, err = h.orch.SetEquipmentStatus(ctx, saw.ID, models.EquipmentStatusAvailable)
	require.NoError(t, err)

	_, err = h.orch.CheckOutEquipment(ctx, saw.ID, ben.ID)
	assert.True(t, models.IsValidation(err), "open assignment still blocks checkout: %v", err)

	open := resolver.OpenEquipmentAssignments(saw.ID, h.store.EquipmentAssignments.List())
	require.Len(t, open, 1)
	assert.Equal(t, ana.ID, open[0].WorkerID)

	_, err = h.orch.CheckInEquipment(ctx, saw.ID, models.ConditionGood)
	require.NoError(t, err)
	_, err = h.orch.CheckOutEquipment(ctx, saw.ID, ben.ID)
	require.NoError(t, err)
}

// Scenario: start, duplicate start rejected, complete, reopen
func TestTaskLifecycleAndAssignment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.login(t)

	task, err := h.orch.CreateTask(ctx, "Pour slab", "level 2", models.PriorityHigh, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, user.ID, task.CreatedBy)

	task, err = h.orch.ApplyTaskCommand(ctx, task.ID, models.TaskCommandStart)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, task.Status)

	before := h.inject.count()
	_, err = h.orch.ApplyTaskCommand(ctx, task.ID, models.TaskCommandStart)
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, before, h.inject.count(), "rejected from cached status")

	task, err = h.orch.ApplyTaskCommand(ctx, task.ID, models.TaskCommandComplete)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	task, err = h.orch.ApplyTaskCommand(ctx, task.ID, models.TaskCommandReopen)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, task.Status)

	worker, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	first, err := h.orch.AssignWorkerToTask(ctx, task.ID, worker.ID)
	require.NoError(t, err)
	second, err := h.orch.AssignWorkerToTask(ctx, task.ID, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	snap := h.orch.Snapshot()
	assert.Len(t, snap.TaskAssignments, 1)
	assigned := resolver.AssignedWorkersForTask(task.ID, snap.TaskAssignments, snap.Workers)
	require.Len(t, assigned, 1)
	assert.Equal(t, worker.ID, assigned[0].ID)

	_, err = h.orch.AssignWorkerToTask(ctx, task.ID, "ghost")
	assert.True(t, models.IsNotFound(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk unplugged") }

// Scenario: report with one good and one unreadable photo
func TestSubmitProgressReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.login(t)

	result, err := h.orch.SubmitProgressReport(ctx, "Framing done", 150, []PhotoUpload{
		{Name: "north.jpg", Caption: "north wall", Content: strings.NewReader("jpeg bytes")},
		{Name: "south.jpg", Caption: "south wall", Content: failingReader{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Report.PercentageComplete)
	assert.Equal(t, user.ID, result.Report.SubmittedBy)
	assert.Equal(t, "2024-05-06", result.Report.Date.String())

	require.Len(t, result.Photos, 1)
	assert.Equal(t, "north wall", result.Photos[0].Caption)
	assert.Contains(t, result.Photos[0].PhotoURL, "/files/")
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "south.jpg", result.Failures[0].Name)

	snap := h.orch.Snapshot()
	assert.Len(t, resolver.PhotosForReport(result.Report.ID, snap.ReportPhotos), 1)
	latest, ok := resolver.LatestReport(snap.ProgressReports)
	require.True(t, ok)
	assert.Equal(t, result.Report.ID, latest.ID)
	assert.Equal(t, 100.0, h.orch.Dashboard().LatestProgress)
}

func TestSagaStopsAtFailedStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	worker, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)

	h.inject.failWhen(isWorkerUpdate)
	_, err = h.orch.CheckInWorker(ctx, worker.ID)
	require.Error(t, err)

	var sagaErr *SagaError
	require.True(t, errors.As(err, &sagaErr))
	assert.Equal(t, "check_in_worker", sagaErr.Command)
	assert.Equal(t, "activate worker", sagaErr.Step)
	assert.Equal(t, []string{"create attendance"}, sagaErr.Completed)
	assert.True(t, sagaErr.Partial())
	assert.True(t, models.IsBackend(err))
	assert.Equal(t, http.StatusInternalServerError, models.StatusCode(err))
	assert.Equal(t, StateFailed, h.orch.State())

	// the attendance write is not undone
	h.inject.failWhen(nil)
	require.NoError(t, h.orch.RefreshWorkers(ctx))
	cached, err := h.store.Workers.Get(worker.ID)
	require.NoError(t, err)
	assert.False(t, cached.IsActive)
	_, ok := resolver.CurrentOpenAttendance(worker.ID, h.store.Attendance.List())
	assert.True(t, ok)

	text := h.metricsText(t)
	assert.Contains(t, text, `sitesync_saga_step_failures_total{command="check_in_worker",step="activate worker"} 1`)
	assert.Contains(t, text, `sitesync_commands_total{command="check_in_worker",result="failure"} 1`)
}

func TestRefreshSkipsFailedItems(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	ana, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	ben, err := h.orch.CreateWorker(ctx, "Ben", "carpenter", "")
	require.NoError(t, err)
	_, err = h.orch.CheckInWorker(ctx, ana.ID)
	require.NoError(t, err)
	_, err = h.orch.CheckInWorker(ctx, ben.ID)
	require.NoError(t, err)

	h.inject.failWhen(func(r request) bool {
		return r.Method == http.MethodGet && r.Table == "attendance" && r.Query["worker_id"] == ana.ID
	})
	require.NoError(t, h.orch.RefreshWorkers(ctx))

	attendance := h.store.Attendance.List()
	require.Len(t, attendance, 1)
	assert.Equal(t, ben.ID, attendance[0].WorkerID)
	assert.Equal(t, 2, h.store.Workers.Len())
	assert.Contains(t, h.metricsText(t), `sitesync_refresh_items_skipped_total{kind="attendance"} 1`)

	h.inject.failWhen(func(r request) bool {
		return r.Method == http.MethodGet && r.Table == "workers"
	})
	err = h.orch.RefreshWorkers(ctx)
	assert.True(t, models.IsBackend(err), "top-level query failure fails the refresh")
	assert.Equal(t, StateFailed, h.orch.State())
}

func TestRefreshAllRunsInOrderAndStopsAtFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	_, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		tables []string
	)
	h.inject.failWhen(func(r request) bool {
		if r.Method != http.MethodGet || r.Path != "/data" {
			return false
		}
		mu.Lock()
		tables = append(tables, r.Table)
		mu.Unlock()
		return r.Table == "tasks"
	})

	err = h.orch.RefreshAll(ctx)
	assert.True(t, models.IsBackend(err))
	assert.Equal(t, StateFailed, h.orch.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"workers", "attendance", "tasks"}, tables)
}

func TestRefreshRetriesTopLevelQueries(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RefreshRetries = 2 })
	ctx := context.Background()
	h.login(t)

	var failures int64
	h.inject.failWhen(func(r request) bool {
		return r.Method == http.MethodGet && r.Table == "equipment" && atomic.AddInt64(&failures, 1) == 1
	})
	require.NoError(t, h.orch.RefreshEquipment(ctx))
	assert.Equal(t, int64(2), atomic.LoadInt64(&failures))
}

func TestRefreshIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	worker, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	_, err = h.orch.CheckInWorker(ctx, worker.ID)
	require.NoError(t, err)
	var names []string
	for _, name := range []string{"Drill", "Saw", "Mixer", "Lift", "Pump"} {
		e, err := h.orch.CreateEquipment(ctx, name, "tool", models.ConditionGood)
		require.NoError(t, err)
		_, err = h.orch.CheckOutEquipment(ctx, e.ID, worker.ID)
		require.NoError(t, err)
		names = append(names, name)
	}

	require.NoError(t, h.orch.RefreshAll(ctx))
	first := h.orch.Snapshot()
	require.NoError(t, h.orch.RefreshAll(ctx))
	second := h.orch.Snapshot()
	assert.Equal(t, first, second)

	// fan-out results follow the parent order
	require.Len(t, second.EquipmentAssignments, len(names))
	for i, e := range second.Equipment {
		assert.Equal(t, names[i], e.Name)
		assert.Equal(t, e.ID, second.EquipmentAssignments[i].EquipmentID)
	}

	d := h.orch.Dashboard()
	assert.Equal(t, 1, d.ActiveWorkers)
	assert.Equal(t, 5, d.EquipmentInUse)
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	var (
		mu    sync.Mutex
		calls []store.Snapshot
	)
	cancel := h.orch.Subscribe(func(s store.Snapshot) {
		mu.Lock()
		calls = append(calls, s)
		mu.Unlock()
	})

	_, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	mu.Lock()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Workers, 1)
	mu.Unlock()

	h.inject.failWhen(func(r request) bool { return r.Method == http.MethodPost })
	_, err = h.orch.CreateWorker(ctx, "Ben", "carpenter", "")
	require.Error(t, err)
	h.inject.failWhen(nil)

	cancel()
	cancel()
	_, err = h.orch.CreateWorker(ctx, "Cy", "painter", "")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, calls, 1, "no notification after failure or cancel")
}

func TestLogoutClearsStore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t)

	_, err := h.orch.CreateWorker(ctx, "Ana", "welder", "")
	require.NoError(t, err)
	require.Equal(t, 1, h.store.Workers.Len())

	h.orch.Logout()
	assert.Empty(t, h.orch.UserID())
	assert.Equal(t, 0, h.store.Workers.Len())

	err = h.orch.RefreshWorkers(ctx)
	assert.True(t, models.IsValidation(err))

	user, err := h.orch.Login(ctx, "manager@site.test", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, h.orch.UserID())
	require.NoError(t, h.orch.RefreshWorkers(ctx))
	assert.Equal(t, 1, h.store.Workers.Len())

	_, err = h.orch.Login(ctx, "manager@site.test", "wrong")
	assert.True(t, models.IsBackend(err))
	assert.Equal(t, http.StatusUnauthorized, models.StatusCode(err))
}
