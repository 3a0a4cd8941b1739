package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultBaseDir = "/var/log/sitesync"

// Logger provides structured logging with optional file output
type Logger struct {
	entry     *logrus.Entry
	logFile   *os.File
	component string
}

// NewLogger creates a logger writing to stdout
func NewLogger(level string, jsonFormat bool) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(ParseLevel(level))
	base.SetFormatter(formatter(jsonFormat))
	return &Logger{entry: logrus.NewEntry(base)}
}

// NewFileLogger creates a logger that writes to /var/log/sitesync/<component>/<subcomponent>.log
// and stdout. Falls back to ./logs/<component>/ if /var/log is not writable.
func NewFileLogger(component, subComponent, level string, jsonFormat bool) (*Logger, error) {
	logPath := GetLogPath(component, subComponent)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", filepath.Dir(logPath), err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	base := logrus.New()
	base.SetOutput(io.MultiWriter(logFile, os.Stdout))
	base.SetLevel(ParseLevel(level))
	base.SetFormatter(formatter(jsonFormat))

	name := component
	if subComponent != "" {
		name = component + "/" + subComponent
	}
	logger := &Logger{
		entry:     logrus.NewEntry(base).WithField("component", name),
		logFile:   logFile,
		component: name,
	}
	logger.Info(fmt.Sprintf("Logger initialized: %s -> %s", name, logPath))
	return logger, nil
}

// Discard returns a logger that drops everything, for tests and library callers
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l *Logger) Debug(message string, fields ...map[string]interface{}) {
	l.with(fields).Debug(message)
}

func (l *Logger) Info(message string, fields ...map[string]interface{}) {
	l.with(fields).Info(message)
}

func (l *Logger) Warn(message string, fields ...map[string]interface{}) {
	l.with(fields).Warn(message)
}

func (l *Logger) Error(message string, fields ...map[string]interface{}) {
	l.with(fields).Error(message)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, fields ...map[string]interface{}) {
	l.with(fields).Fatal(message)
}

// WithField returns a child logger carrying key=value on every entry
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value), component: l.component}
}

// WithFields returns a child logger carrying all fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields)), component: l.component}
}

// Close closes the log file if opened
func (l *Logger) Close() error {
	if l.logFile != nil {
		l.Info("Logger closing")
		return l.logFile.Close()
	}
	return nil
}

func (l *Logger) with(fields []map[string]interface{}) *logrus.Entry {
	if len(fields) == 0 || len(fields[0]) == 0 {
		return l.entry
	}
	return l.entry.WithFields(logrus.Fields(fields[0]))
}

// ParseLevel parses a log level string, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func formatter(jsonFormat bool) logrus.Formatter {
	if jsonFormat {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"}
	}
	return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}
}

// GetLogPath returns the expected log path for a component
func GetLogPath(component, subComponent string) string {
	baseDir := defaultBaseDir
	if !isWritable(baseDir) {
		baseDir = "./logs"
	}

	logFileName := component + ".log"
	if subComponent != "" {
		logFileName = subComponent + ".log"
	}
	return filepath.Join(baseDir, component, logFileName)
}

// isWritable checks if directory is writable
func isWritable(path string) bool {
	if err := os.MkdirAll(path, 0755); err != nil {
		return false
	}
	testFile := filepath.Join(path, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(testFile)
	return true
}
