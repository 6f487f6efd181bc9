package unittest

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var verbose = flag.Bool("vv", false, "print debugging logs")

// zerolog reads the timestamp function from a global on every event, it must
// not change once loggers are in use.
func init() {
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
}

// Logger returns a debug level logger for tests. Output is discarded unless
// the tests run with -vv. It is safe to call from concurrent goroutines.
func Logger() zerolog.Logger {
	var writer io.Writer = io.Discard
	if *verbose {
		writer = os.Stderr
	}
	return zerolog.New(writer).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
