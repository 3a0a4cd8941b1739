package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/sitesync/pkg/backend"
	"github.com/psantana5/sitesync/pkg/config"
	"github.com/psantana5/sitesync/pkg/logging"
	"github.com/psantana5/sitesync/pkg/metrics"
	"github.com/psantana5/sitesync/pkg/orchestrator"
	"github.com/psantana5/sitesync/pkg/store"
	tlsutil "github.com/psantana5/sitesync/pkg/tls"
	"github.com/psantana5/sitesync/pkg/tracing"
)

var version = "dev"

var (
	cfgFile      string
	baseURL      string
	tenantID     string
	userID       string
	outputFormat string
	logLevel     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sitectl",
	Short: "CLI for construction site records",
	Long: `sitectl manages workers, attendance, tasks, equipment and progress reports
stored in a remote document store. Every command writes through the store
and then reloads the collections it touched.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with ctx
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sitesync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "document store URL (default from config or "+config.DefaultBaseURL+")")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "", "application id the store scopes data by")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "session user id (default from config, set by login)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig reads file and environment configuration and applies flag overrides
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.New(), cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if tenantID != "" {
		cfg.TenantID = tenantID
	}
	if userID != "" {
		cfg.UserID = userID
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// configPath returns the file login and config init write to
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

// session is everything one command invocation needs to talk to the store
type session struct {
	cfg     config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  *tracing.Provider
	orch    *orchestrator.Orchestrator
}

func newSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.JSONLogs())
	logger.SetOutput(os.Stderr)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	tracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "sitectl",
		ServiceVersion: version,
		Environment:    "cli",
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	clientOpts := []backend.Option{
		backend.WithLogger(logger),
		backend.WithMetrics(m),
		backend.WithTracer(tracer),
	}
	httpClient, err := tlsutil.HTTPClient(cfg.TLS.CAFile, cfg.TLS.InsecureSkipVerify, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}
	if httpClient != nil {
		clientOpts = append(clientOpts, backend.WithHTTPClient(httpClient))
	}

	client := backend.NewClient(cfg, clientOpts...)
	orch := orchestrator.New(cfg, client, store.New(),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(m),
	)
	return &session{cfg: cfg, logger: logger, metrics: m, tracer: tracer, orch: orch}, nil
}

// Close flushes pending spans
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracer.Shutdown(ctx); err != nil {
		s.logger.Warn("Failed to flush traces", map[string]interface{}{"error": err.Error()})
	}
}

// withSession runs fn against a fresh session and closes it afterwards
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), s)
}
