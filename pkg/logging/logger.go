// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to emit: "debug", "info", "warn", "error".
	// Anything zerolog.ParseLevel does not recognize falls back to info.
	Level string

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  zerolog.LevelInfoValue,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(resolveLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// resolveLevel parses a level name, defaulting to info on anything
// unrecognized or empty rather than failing setup.
func resolveLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Per-page request flow (URL, page number, token presence)
//   - Pacer waits
//
// Info: Normal operation events
//   - Completed fetches (condition, pages, studies, duration)
//   - Requests that succeeded after a retry
//
// Warn: Warning conditions that don't prevent operation
//   - Failed page attempts that will be retried
//   - Cache errors (fallback to direct request)
//   - Unrecognized status filters passed through to the API
//   - Study records that could not be decoded
//
// Error: Error conditions requiring attention
//   - Fetches that failed after exhausting retries
//   - Configuration errors
//
// Context Fields:
//   - endpoint: API path (/studies, /version)
//   - status: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network, decode)
//   - attempt / max_attempts: retry progress for a page request
//   - condition / status: the active search filters
//   - page / pages / studies: pagination progress
