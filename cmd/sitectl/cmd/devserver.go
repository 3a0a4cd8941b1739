package cmd

import (
	"context"
	cryptotls "crypto/tls"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/psantana5/sitesync/internal/devserver"
	"github.com/psantana5/sitesync/pkg/logging"
	"github.com/psantana5/sitesync/pkg/metrics"
	tlsutil "github.com/psantana5/sitesync/pkg/tls"
	"github.com/psantana5/sitesync/pkg/tracing"
)

var (
	devAddr      string
	devDriver    string
	devDB        string
	devUploadDir string
	devAPIKey    string
	devTLSCert   string
	devTLSKey    string
	devSelfSign  bool
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local document store for development",
	Long: `Serve the document store protocol (/data, /data/login, /data/upload) backed by
memory, SQLite or PostgreSQL so the CLI can be used without the hosted backend.`,
	RunE: runDevserver,
}

func init() {
	rootCmd.AddCommand(devserverCmd)

	devserverCmd.Flags().StringVar(&devAddr, "addr", ":8080", "listen address")
	devserverCmd.Flags().StringVar(&devDriver, "driver", "sqlite", "storage driver: memory, sqlite, postgres")
	devserverCmd.Flags().StringVar(&devDB, "db", "sitesync.db", "SQLite path or PostgreSQL DSN")
	devserverCmd.Flags().StringVar(&devUploadDir, "upload-dir", filepath.Join(os.TempDir(), "sitesync-uploads"), "directory for uploaded files")
	devserverCmd.Flags().StringVar(&devAPIKey, "api-key", "", "require this bearer token on data routes")
	devserverCmd.Flags().StringVar(&devTLSCert, "tls-cert", "", "serve HTTPS with this certificate")
	devserverCmd.Flags().StringVar(&devTLSKey, "tls-key", "", "private key for --tls-cert")
	devserverCmd.Flags().BoolVar(&devSelfSign, "self-signed", false, "generate --tls-cert and --tls-key if they do not exist")
}

// serverTLS returns nil when HTTPS is not requested
func serverTLS(logger *logging.Logger) (*cryptotls.Config, error) {
	if devTLSCert == "" && devTLSKey == "" {
		return nil, nil
	}
	if devTLSCert == "" || devTLSKey == "" {
		return nil, fmt.Errorf("--tls-cert and --tls-key must be set together")
	}
	if devSelfSign {
		if _, err := os.Stat(devTLSCert); os.IsNotExist(err) {
			if err := tlsutil.GenerateSelfSigned(devTLSCert, devTLSKey); err != nil {
				return nil, err
			}
			logger.Info("Generated self-signed certificate", map[string]interface{}{"cert": devTLSCert})
		}
	}
	return tlsutil.ServerConfig(devTLSCert, devTLSKey)
}

func openDocuments(driver, db string) (devserver.DocumentStore, error) {
	switch driver {
	case "memory":
		return devserver.NewMemoryDocuments(), nil
	case "sqlite":
		return devserver.NewSQLiteDocuments(db)
	case "postgres":
		return devserver.NewPostgresDocuments(db)
	default:
		return nil, fmt.Errorf("unknown driver %q (use memory, sqlite or postgres)", driver)
	}
}

func runDevserver(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFileLogger("devserver", "", cfg.LogLevel, cfg.JSONLogs())
	if err != nil {
		logger = logging.NewLogger(cfg.LogLevel, cfg.JSONLogs())
		logger.Warn("File logging unavailable", map[string]interface{}{"error": err.Error()})
	}
	defer logger.Close()

	tlsConfig, err := serverTLS(logger)
	if err != nil {
		return err
	}

	docs, err := openDocuments(devDriver, devDB)
	if err != nil {
		return err
	}
	defer docs.Close()

	tracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "sitesync-devserver",
		ServiceVersion: version,
		Environment:    "development",
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	opts := []devserver.Option{
		devserver.WithUploadDir(devUploadDir),
		devserver.WithAPIKey(devAPIKey),
		devserver.WithLogger(logger),
		devserver.WithTracer(tracer),
		devserver.WithTLS(tlsConfig),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, devserver.WithMetrics(metrics.New()))
	}

	logger.Info("Starting document store", map[string]interface{}{
		"addr":   devAddr,
		"driver": devDriver,
	})
	return devserver.New(docs, opts...).ListenAndServe(cmd.Context(), devAddr)
}
