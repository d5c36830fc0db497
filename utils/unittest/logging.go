package unittest

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// -vv prints kernel event logs of a test run, e.g. go test ./kernel/... -args -vv
var verbose = flag.Bool("vv", false, "print kernel event logs")

// Logger returns a debug level logger for tests. Output is discarded unless
// -vv is set.
func Logger() zerolog.Logger {
	if !*verbose {
		return zerolog.New(io.Discard).Level(zerolog.DebugLevel)
	}
	return LoggerWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// LoggerWithWriter returns a trace level logger writing to w, for tests that
// assert on emitted events.
func LoggerWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(zerolog.TraceLevel).With().Timestamp().Logger()
}
