package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup initializes the global zerolog logger based on environment configuration.
//   - level: log level string (trace, debug, info, warn, error, fatal, panic)
//   - format: "json" for production, "pretty" for human-readable dev output
//
// The returned logger carries the service name so lines from the server,
// run-job and migrate binaries can be told apart once shipped.
func Setup(level, format string) zerolog.Logger {
	return New(level, format, os.Stdout)
}

// New is Setup with an explicit writer.
func New(level, format string, out io.Writer) zerolog.Logger {
	var writer io.Writer = out

	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writer).
		With().
		Timestamp().
		Str("service", "tutoring-ops").
		Logger()
}
