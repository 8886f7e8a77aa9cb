// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// VerbosityLevel maps a management-style verbosity (0-3) to a [log.Level].
//
// Values outside the range are clamped.
func VerbosityLevel(verbosity int) log.Level {
	switch {
	case verbosity <= 0:
		return log.ErrorLevel
	case verbosity == 1:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}

// ParseLogLevel parses a level name such as "debug" or "warn".
//
// The boolean is false for empty or unknown names.
func ParseLogLevel(raw string) (log.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return log.DebugLevel, true
	case "info":
		return log.InfoLevel, true
	case "warn", "warning":
		return log.WarnLevel, true
	case "error":
		return log.ErrorLevel, true
	case "fatal":
		return log.FatalLevel, true
	default:
		return log.InfoLevel, false
	}
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}
