// Package telemetry provides the module's ambient structured logger.
package telemetry

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger for component. Output and level are
// controlled by the LOG_FORMAT (json|console, default console) and
// LOG_LEVEL (default info) environment variables, mirroring the
// ReadStringFromEnvVar-style configuration used throughout this module's
// config package.
func New(component string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var w zerolog.ConsoleWriter
	var logger zerolog.Logger
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger = zerolog.New(os.Stderr)
	} else {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
		logger = zerolog.New(w)
	}
	return logger.Level(level).With().Timestamp().Str("component", component).Logger()
}
