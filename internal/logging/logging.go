package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the service logger. JSON output in prod, human-readable
// console output elsewhere.
func New(service, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	var logger zerolog.Logger
	if env == "prod" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return logger.With().
		Timestamp().
		Str("service", service).
		Logger()
}
