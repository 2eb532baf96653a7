// Package telemetry defines the logging interface shared by every
// component of the proxy, and its logrus-backed implementation.
package telemetry

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger defines the logging interface every proxy component depends on.
// Call sites never reach for a package-level logger directly; a Logger is
// always injected, so tests can swap in a recording implementation.
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})

	// WithField returns a Logger that attaches key/value to every
	// subsequent log line, without requiring callers to format it in.
	WithField(key string, value interface{}) Logger
	// WithFields is the plural form of WithField.
	WithFields(fields map[string]interface{}) Logger
}

// logrusLogger adapts *logrus.Entry to the Logger interface.
type logrusLogger struct {
	entry *logrus.Entry
}

// New creates a Logger backed by logrus, leveled from the BLANKTRACE_LOG
// environment variable (RUST_LOG-style verbosity, diagnostic only — it
// never changes proxy behavior). Recognized values: "debug" ("trace" is
// treated as "debug"), "info", "warn" (or "warning"), "error". Defaults
// to "info".
func New() Logger {
	base := logrus.New()
	base.SetLevel(levelFromEnv())
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

func levelFromEnv() logrus.Level {
	switch strings.ToLower(os.Getenv("BLANKTRACE_LOG")) {
	case "debug", "trace":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *logrusLogger) Debug(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *logrusLogger) Info(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *logrusLogger) Warn(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *logrusLogger) Error(format string, v ...interface{}) { l.entry.Errorf(format, v...) }

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields)}
}

// Noop returns a Logger that discards everything, for tests that don't
// care about log output.
func Noop() Logger {
	base := logrus.New()
	base.SetOutput(discard{})
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
