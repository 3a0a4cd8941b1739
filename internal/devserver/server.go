// Package devserver is a development document store speaking the same
// protocol as the production backend: one data endpoint parameterized by
// app_id and table_name, plus login and file upload.
package devserver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/sitesync/pkg/logging"
	"github.com/psantana5/sitesync/pkg/metrics"
	"github.com/psantana5/sitesync/pkg/models"
	"github.com/psantana5/sitesync/pkg/tracing"
)

const (
	usersTable     = "users"
	maxUploadBytes = 32 << 20
)

// Server handles document store API requests
type Server struct {
	docs      DocumentStore
	uploadDir string
	apiKey    string
	logger    *logging.Logger
	metrics   *metrics.Metrics
	tracer    *tracing.Provider
	tlsConfig *tls.Config
	now       func() time.Time
}

// Option customizes a Server
type Option func(*Server)

// WithUploadDir stores uploaded files under dir
func WithUploadDir(dir string) Option { return func(s *Server) { s.uploadDir = dir } }

// WithAPIKey requires every data request to carry the bearer key
func WithAPIKey(key string) Option { return func(s *Server) { s.apiKey = key } }

// WithLogger sets the request logger
func WithLogger(l *logging.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMetrics counts requests and exposes /metrics
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithTracer traces every request
func WithTracer(p *tracing.Provider) Option { return func(s *Server) { s.tracer = p } }

// WithTLS serves HTTPS with cfg
func WithTLS(cfg *tls.Config) Option { return func(s *Server) { s.tlsConfig = cfg } }

// New creates a server over docs
func New(docs DocumentStore, opts ...Option) *Server {
	s := &Server{
		docs:      docs,
		uploadDir: filepath.Join(os.TempDir(), "sitesync-uploads"),
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes(r *mux.Router) {
	// specific routes before the generic data route
	r.HandleFunc("/data/login", s.Login).Methods("POST")
	r.HandleFunc("/data/upload", s.Upload).Methods("POST")
	r.HandleFunc("/data", s.SaveDocument).Methods("POST")
	r.HandleFunc("/data", s.QueryDocuments).Methods("GET")
	r.HandleFunc("/files/{name}", s.ServeFile).Methods("GET")
	r.HandleFunc("/health", s.Health).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

// Handler returns the router with tracing, metrics and API key middleware
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	r.Use(tracing.HTTPMiddleware(s.tracer))
	r.Use(s.metrics.Middleware)
	r.Use(apiKeyMiddleware(s.apiKey))
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         s.tlsConfig,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Document store listening", map[string]interface{}{"addr": addr, "tls": s.tlsConfig != nil})
		if s.tlsConfig != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down document store")
		return srv.Shutdown(shutdownCtx)
	}
}

type saveRequest struct {
	AppID     string          `json:"app_id"`
	TableName string          `json:"table_name"`
	Data      json.RawMessage `json:"data"`
}

type loginRequest struct {
	AppID    string `json:"app_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider string `json:"provider"`
}

// SaveDocument creates or replaces one record
func (s *Server) SaveDocument(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AppID == "" || req.TableName == "" {
		writeError(w, http.StatusBadRequest, "app_id and table_name are required")
		return
	}
	doc, err := DecodeDocument(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.TableName == usersTable {
		s.register(w, r, req.AppID, doc)
		return
	}

	stored, created, err := s.docs.Put(r.Context(), req.AppID, req.TableName, doc)
	if errors.Is(err, ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s record %s not found", req.TableName, doc.ID()))
		return
	}
	if err != nil {
		s.logger.Error("Failed to save document", map[string]interface{}{"table": req.TableName, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to save record")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, stored)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, appID string, doc Document) {
	email := strings.TrimSpace(fieldString(doc["email"]))
	password := fieldString(doc["password"])
	if doc.ID() != "" {
		writeError(w, http.StatusBadRequest, "users cannot be updated through the data endpoint")
		return
	}
	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	existing, err := s.docs.Query(r.Context(), appID, usersTable, map[string]string{"email": email})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if len(existing) > 0 {
		writeError(w, http.StatusConflict, ErrDuplicateEmail.Error())
		return
	}

	hash, err := HashPassword(password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	provider := fieldString(doc["provider"])
	if provider == "" {
		provider = "email"
	}
	user := Document{
		"email":         email,
		"provider":      provider,
		"password_hash": hash,
		"created_at":    models.NewTimestamp(s.now()).String(),
	}
	stored, _, err := s.docs.Put(r.Context(), appID, usersTable, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	writeJSON(w, http.StatusCreated, publicUser(stored))
}

// QueryDocuments lists the records of a table matching the query filters
func (s *Server) QueryDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appID, table := q.Get("app_id"), q.Get("table_name")
	if appID == "" || table == "" {
		writeError(w, http.StatusBadRequest, "app_id and table_name are required")
		return
	}

	filters := make(map[string]string)
	for key := range q {
		if key == "app_id" || key == "table_name" {
			continue
		}
		filters[key] = q.Get(key)
	}

	docs, err := s.docs.Query(r.Context(), appID, table, filters)
	if err != nil {
		s.logger.Error("Failed to query documents", map[string]interface{}{"table": table, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to query records")
		return
	}
	if table == usersTable {
		for i := range docs {
			docs[i] = publicUser(docs[i])
		}
	}
	writeJSON(w, http.StatusOK, docs)
}

// Login checks email and password against registered users
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AppID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "app_id and email are required")
		return
	}

	users, err := s.docs.Query(r.Context(), req.AppID, usersTable, map[string]string{"email": strings.TrimSpace(req.Email)})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if len(users) == 0 || CheckPassword(fieldString(users[0]["password_hash"]), req.Password) != nil {
		writeError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}
	writeJSON(w, http.StatusOK, publicUser(users[0]))
}

// Upload stores the multipart "file" part and returns its URL
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("app_id") == "" || q.Get("user_id") == "" {
		writeError(w, http.StatusBadRequest, "app_id and user_id are required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	name := NewID() + strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	s.logger.Debug("Stored upload", map[string]interface{}{"file": name, "user_id": q.Get("user_id")})
	writeJSON(w, http.StatusOK, map[string]string{"url": fmt.Sprintf("%s://%s/files/%s", scheme, r.Host, name)})
}

// ServeFile returns a previously uploaded file
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(mux.Vars(r)["name"])
	http.ServeFile(w, r, filepath.Join(s.uploadDir, name))
}

// Health reports liveness
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func publicUser(doc Document) Document {
	out := doc.Clone()
	delete(out, "password_hash")
	delete(out, "password")
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
