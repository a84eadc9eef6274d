package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the shared structured logger. Packages log through this instance
// rather than constructing their own.
var Logger zerolog.Logger

func init() {
	InitLogger(false)
}

// InitLogger configures the global logger. Verbose enables debug-level output
// and a human-readable console writer; otherwise JSON at info level.
func InitLogger(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	if verbose {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		Logger = zerolog.New(console).Level(level).With().Timestamp().Logger()
		return
	}

	Logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
