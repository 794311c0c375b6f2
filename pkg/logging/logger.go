// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names attached to the loggers of each package.
const (
	ComponentPagination = "pagination"
	ComponentQueryCache = "querycache"
	ComponentSource     = "source"
	ComponentProxy      = "feed-proxy"
)

// DefaultService is the service name stamped on every log line.
const DefaultService = "feed-pager"

// Config holds logger configuration.
type Config struct {
	// Service is added as the "service" field of every entry ("" omits it).
	Service string

	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Service: DefaultService,
		Level:   LevelInfo,
		Pretty:  false,
		Output:  os.Stderr,
	}
}

// ConfigFromEnv reads LOG_LEVEL, LOG_PRETTY and SERVICE_NAME on top of
// DefaultConfig.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := DefaultConfig()
	if service := getenv("SERVICE_NAME"); service != "" {
		cfg.Service = service
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		cfg.Level = LogLevel(level)
	}
	if pretty, err := strconv.ParseBool(getenv("LOG_PRETTY")); err == nil {
		cfg.Pretty = pretty
	}
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Query cache hit/miss and restores
//   - Individual fetches (operation, requested, received)
//   - Skipped load-more requests and page changes
//
// Info: Normal operation events
//   - Switch from infinite-scroll to paged mode
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed fetches (state keeps the previous items)
//   - Query cache errors (controller falls back to the source)
//   - Retry attempts against the upstream list endpoint
//
// Error: Error conditions requiring attention
//   - Upstream requests failing after retries
//   - Configuration errors
//
// Context Fields:
//   - service: deployment name (SERVICE_NAME)
//   - component: pagination, querycache, source, feed-proxy
//   - cache_key: query identity of a controller
//   - operation: initial, load_more, go_to_page
//   - page, total_pages, fetched, items: controller state
//   - endpoint, status, error_class: upstream requests
