package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/psantana5/sitesync/pkg/config"
	"github.com/psantana5/sitesync/pkg/logging"
	"github.com/psantana5/sitesync/pkg/metrics"
	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/tracing"
)

const maxErrorBody = 4 << 10

// SaveRequest is the body of every create or update call
type SaveRequest struct {
	AppID     string `json:"app_id"`
	TableName string `json:"table_name"`
	Data      any    `json:"data"`
}

// LoginRequest is the body of the credential exchange
type LoginRequest struct {
	AppID    string `json:"app_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider string `json:"provider"`
}

// UploadResponse is returned by the upload endpoint
type UploadResponse struct {
	URL string `json:"url"`
}

// Transport speaks the generic document store protocol. It never retries.
type Transport struct {
	baseURL    string
	tenantID   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     *tracing.Provider
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// Option customizes a Transport
type Option func(*Transport)

// WithHTTPClient replaces the default 30s-timeout client
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// WithLogger sets the request logger
func WithLogger(l *logging.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithMetrics records request counts and latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// WithTracer starts a client span per request
func WithTracer(p *tracing.Provider) Option {
	return func(t *Transport) { t.tracer = p }
}

// NewTransport creates a transport for cfg's base URL and tenant
func NewTransport(cfg config.Config, opts ...Option) *Transport {
	t := &Transport{
		baseURL:  cfg.BaseURL,
		tenantID: cfg.TenantID,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logging.Discard(),
	}
	if t.httpClient.Timeout <= 0 {
		t.httpClient.Timeout = 30 * time.Second
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TenantID returns the application id sent with every request
func (t *Transport) TenantID() string {
	return t.tenantID
}

// Save posts data to table and decodes the stored record into out
func (t *Transport) Save(ctx context.Context, table string, data any, out any) error {
	return t.save(ctx, "save "+table, table, data, out)
}

func (t *Transport) save(ctx context.Context, op, table string, data any, out any) error {
	body, err := json.Marshal(SaveRequest{AppID: t.tenantID, TableName: table, Data: data})
	if err != nil {
		return models.NewValidationError(op, fmt.Sprintf("failed to marshal record: %v", err))
	}
	return t.do(ctx, op, table, http.MethodPost, t.baseURL+"/data", bytes.NewReader(body), "application/json", out)
}

// Query fetches every record of table matching filters
func (t *Transport) Query(ctx context.Context, table string, filters map[string]string, out any) error {
	q := url.Values{}
	q.Set("app_id", t.tenantID)
	q.Set("table_name", table)
	for k, v := range filters {
		q.Set(k, v)
	}
	return t.do(ctx, "query "+table, table, http.MethodGet, t.baseURL+"/data?"+q.Encode(), nil, "", out)
}

// Login exchanges credentials for the user record
func (t *Transport) Login(ctx context.Context, req LoginRequest) (models.User, error) {
	req.AppID = t.tenantID
	body, err := json.Marshal(req)
	if err != nil {
		return models.User{}, models.NewValidationError("login", fmt.Sprintf("failed to marshal credentials: %v", err))
	}
	var user models.User
	if err := t.do(ctx, "login", "users", http.MethodPost, t.baseURL+"/data/login", bytes.NewReader(body), "application/json", &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Upload sends r as a multipart "file" part and returns the stored URL
func (t *Transport) Upload(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", contentType(filename))
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	q := url.Values{}
	q.Set("app_id", t.tenantID)
	q.Set("user_id", userID)

	var resp UploadResponse
	if err := t.do(ctx, "upload", "uploads", http.MethodPost, t.baseURL+"/data/upload?"+q.Encode(), &buf, mw.FormDataContentType(), &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", models.NewBackendError("upload", http.StatusOK, "response carried no url")
	}
	return resp.URL, nil
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (t *Transport) do(ctx context.Context, op, table, method, target string, body io.Reader, ct string, out any) (err error) {
	start := time.Now()
	ctx, span := t.tracer.StartClientSpan(ctx, method+" "+op,
		attribute.String("sitesync.table", table),
		attribute.String("sitesync.app_id", t.tenantID),
	)
	status := 0
	defer func() {
		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int("http.status_code", status))
		tracing.EndSpan(span, err)
		t.metrics.ObserveBackendRequest(table, method, elapsed, err)
		fields := map[string]interface{}{
			"method":      method,
			"table":       table,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		t.logger.Debug(op, fields)
	}()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return models.NewNetworkError(op, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return models.NewValidationError(op, fmt.Sprintf("failed to create request: %v", err))
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	tracing.InjectHTTPHeaders(ctx, req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return models.NewNetworkError(op, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return models.NewBackendError(op, resp.StatusCode, errorMessage(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.NewBackendError(op, resp.StatusCode, fmt.Sprintf("invalid response body: %v", err))
	}
	return nil
}

// errorMessage prefers the "error" or "message" field of a JSON error body
func errorMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return string(body)
}
