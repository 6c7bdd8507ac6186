package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options controls how the base logger is built.
type Options struct {
	Environment string // "local" (or empty) = pretty console; anything else = JSON
	Level       string
	FilePath    string // optional append-mode log file in addition to stdout
	Output      io.Writer
}

type Logger struct {
	*logrus.Entry
	closer io.Closer
}

func New(opts Options) *Logger {
	base := logrus.New()

	// Local env = pretty console; others = JSON
	env := strings.ToLower(strings.TrimSpace(opts.Environment))
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     opts.FilePath == "",
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	base.SetOutput(out)
	base.SetLevel(ParseLevel(opts.Level))

	l := &Logger{Entry: logrus.NewEntry(base)}
	if opts.FilePath == "" {
		return l
	}

	f, err := openLogFile(opts.FilePath)
	if err != nil {
		l.WithError(err).WithField("log_file", opts.FilePath).Error("file logging disabled")
		return l
	}
	base.SetOutput(io.MultiWriter(out, f))
	l.closer = f
	l.WithField("log_file", opts.FilePath).Debug("file logging enabled")
	return l
}

func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// WithRun attaches a run id (generated when empty) and returns the derived logger.
func (l *Logger) WithRun(runID string) *Logger {
	if runID == "" {
		runID = uuid.New().String()
	}
	return &Logger{Entry: l.Entry.WithField("run_id", runID), closer: l.closer}
}

// Component returns an entry scoped to one pipeline component.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.Entry.WithField("component", name)
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
