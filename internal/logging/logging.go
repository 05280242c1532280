// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger for the CLI. The configured level (from the
// logging config or LOG_LEVEL) applies unless verbose forces debug. Output
// goes to stderr as console lines; stdout stays clean for reports and JSON.
func New(level string, verbose bool) zerolog.Logger {
	out := io.Writer(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})

	lvl := parseLevel(level)
	if verbose {
		lvl = zerolog.DebugLevel
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
