// Package logger provides a centralized logging facility with
// configurable verbosity levels, backed by logrus.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("event=pipeline_start underlying=%s", "SPY")
//	logger.WithFields(logrus.Fields{"symbol": sym}).Debug("estimate unavailable")
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

var base = logrus.New()

func init() {
	// Logs go to stderr so reports written to stdout stay clean.
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	base.SetLevel(logrus.InfoLevel)
}

// SetVerbosity sets the global logging verbosity.
// Typically called once during startup, after config is loaded.
// Out-of-range values are clamped to the nearest level.
func SetVerbosity(v int) {
	switch {
	case v <= int(Error):
		base.SetLevel(logrus.ErrorLevel)
	case v == int(Info):
		base.SetLevel(logrus.InfoLevel)
	case v == int(Debug):
		base.SetLevel(logrus.DebugLevel)
	default:
		base.SetLevel(logrus.TraceLevel)
	}
}

// Verbosity reports the active verbosity level.
func Verbosity() Level {
	switch base.GetLevel() {
	case logrus.TraceLevel:
		return Trace
	case logrus.DebugLevel:
		return Debug
	case logrus.InfoLevel, logrus.WarnLevel:
		return Info
	default:
		return Error
	}
}

// SetOutput redirects log output. Tests use it to capture or silence logs.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetJSON switches to JSON formatted output.
func SetJSON() {
	base.SetFormatter(&logrus.JSONFormatter{})
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	base.Errorf(format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	base.Infof(format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	base.Debugf(format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	base.Tracef(format, args...)
}
