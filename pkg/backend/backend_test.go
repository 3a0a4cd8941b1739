package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/sitesync/pkg/config"
	"github.com/psantana5/sitesync/pkg/metrics"
	"github.com/psantana5/sitesync/pkg/models"
)

const testTenant = "tenant-test"

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.BaseURL = server.URL
	cfg.TenantID = testTenant
	cfg.APIKey = "key-1"
	return NewClient(cfg, opts...)
}

func decodeSave(t *testing.T, r *http.Request) (SaveRequest, map[string]any) {
	t.Helper()
	var body struct {
		AppID     string         `json:"app_id"`
		TableName string         `json:"table_name"`
		Data      map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return SaveRequest{AppID: body.AppID, TableName: body.TableName}, body.Data
}

func TestCreateSendsEnvelopeWithoutID(t *testing.T) {
	var gotReq SaveRequest
	var gotData map[string]any
	sentID := true
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/data", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		gotReq, gotData = decodeSave(t, r)
		_, sentID = gotData["id"]

		resp := map[string]any{"id": "w-1"}
		for k, v := range gotData {
			resp[k] = v
		}
		json.NewEncoder(w).Encode(resp)
	})

	created, err := client.Workers.Create(context.Background(), models.Worker{
		ID: "ignored", UserID: "u-1", Name: "Ana", Role: "mason", Phone: "555",
	})
	require.NoError(t, err)

	assert.Equal(t, testTenant, gotReq.AppID)
	assert.Equal(t, "workers", gotReq.TableName)
	assert.False(t, sentID, "create must not send an id")
	assert.Equal(t, "u-1", gotData["user_id"])
	assert.Equal(t, false, gotData["is_active"])

	assert.Equal(t, "w-1", created.ID)
	assert.Equal(t, "Ana", created.Name)
}

func TestCreateRejectsResponseWithoutID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Drill"}`))
	})
	_, err := client.Equipment.Create(context.Background(), models.Equipment{Name: "Drill"})
	require.Error(t, err)
	assert.True(t, models.IsBackend(err))
}

func TestUpdateRequiresID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.Tasks.Update(context.Background(), models.Task{Title: "Pour slab"})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestUpdateSendsFullRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, data := decodeSave(t, r)
		assert.Equal(t, "t-1", data["id"])
		assert.Equal(t, "in_progress", data["status"])
		assert.Equal(t, "Pour slab", data["title"])
		assert.Equal(t, "2024-05-01T08:00:00.000Z", data["due_date"])
		json.NewEncoder(w).Encode(data)
	})

	due := models.NewTimestamp(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	updated, err := client.Tasks.Update(context.Background(), models.Task{
		ID: "t-1", Title: "Pour slab", Status: models.TaskStatusInProgress, DueDate: due,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, updated.Status)
	assert.True(t, updated.DueDate.Equal(due.Time))
}

func TestQueryByEncodesFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, testTenant, q.Get("app_id"))
		assert.Equal(t, "equipment_assignments", q.Get("table_name"))
		assert.Equal(t, "e-1", q.Get("equipment_id"))
		assert.Equal(t, "w-1", q.Get("worker_id"))
		w.Write([]byte(`[{"id":"a-1","equipment_id":"e-1","worker_id":"w-1","checked_out":"2024-01-02T03:04:05.000+01:00","checked_in":null}]`))
	})

	got, err := client.EquipmentAssignments.QueryBy(context.Background(), ByEquipment("e-1"), ByWorker("w-1"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsOpen())
	assert.Equal(t, "2024-01-02T03:04:05.000+01:00", got[0].CheckedOut.String())
}

func TestQueryByNullIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})
	got, err := client.Equipment.QueryBy(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQueryByRejectsUnknownFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := client.Equipment.QueryBy(context.Background(), ByWorker("w-1"))
	assert.True(t, models.IsValidation(err))

	_, err = client.Attendance.QueryBy(context.Background(), ByWorker(""))
	assert.True(t, models.IsValidation(err))
}

func TestErrorMapping(t *testing.T) {
	t.Run("non-2xx is a backend error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"store is read-only"}`))
		})
		_, err := client.Workers.QueryBy(context.Background(), ByUser("u-1"))
		require.Error(t, err)
		assert.True(t, models.IsBackend(err))
		assert.Equal(t, http.StatusServiceUnavailable, models.StatusCode(err))
		assert.Equal(t, "query workers: backend returned status 503: store is read-only", err.Error())
	})

	t.Run("undecodable body is a backend error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		})
		_, err := client.Tasks.QueryBy(context.Background())
		assert.True(t, models.IsBackend(err))
	})

	t.Run("connection failure is a network error", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		cfg := config.Default()
		cfg.BaseURL = server.URL
		server.Close()

		_, err := NewClient(cfg).Tasks.QueryBy(context.Background())
		require.Error(t, err)
		assert.True(t, models.IsNetwork(err))
		assert.True(t, models.IsRetryable(err))
	})
}

func TestTransportDoesNotRetry(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.Equipment.Create(context.Background(), models.Equipment{Name: "Crane"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRegisterAndLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data":
			req, data := decodeSave(t, r)
			assert.Equal(t, "users", req.TableName)
			assert.Equal(t, "email", data["provider"])
			assert.Equal(t, "boss@site.test", data["email"])
			w.Write([]byte(`{"id":"u-1","email":"boss@site.test","provider":"email","created_at":"2024-01-01T00:00:00.000Z"}`))
		case "/data/login":
			var req LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, testTenant, req.AppID)
			assert.Equal(t, "email", req.Provider)
			if req.Password != "hunter2" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid credentials"}`))
				return
			}
			w.Write([]byte(`{"id":"u-1","email":"boss@site.test","provider":"email"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	user, err := client.Auth.Register(ctx, " boss@site.test ", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	user, err = client.Auth.Login(ctx, "boss@site.test", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	_, err = client.Auth.Login(ctx, "boss@site.test", "wrong")
	assert.Equal(t, http.StatusUnauthorized, models.StatusCode(err))

	_, err = client.Auth.Login(ctx, "", "x")
	assert.True(t, models.IsValidation(err))
}

func TestUploadMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/upload", r.URL.Path)
		assert.Equal(t, testTenant, r.URL.Query().Get("app_id"))
		assert.Equal(t, "u-1", r.URL.Query().Get("user_id"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "slab.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.Equal(t, "jpegbytes", string(content))

		w.Write([]byte(`{"url":"http://files/slab.jpg"}`))
	})

	url, err := client.Upload(context.Background(), "u-1", "/tmp/photos/slab.jpg", strings.NewReader("jpegbytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://files/slab.jpg", url)

	_, err = client.Upload(context.Background(), "", "slab.jpg", strings.NewReader(""))
	assert.True(t, models.IsValidation(err))
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}, WithMetrics(m))

	_, err := client.Equipment.QueryBy(context.Background())
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), `sitesync_backend_requests_total{method="GET",outcome="success",table="equipment"} 1`)
}

func TestRateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.BaseURL = server.URL
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	client := NewClient(cfg)

	_, err := client.Equipment.QueryBy(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Equipment.QueryBy(ctx)
	require.Error(t, err)
	assert.True(t, models.IsNetwork(err))
}
