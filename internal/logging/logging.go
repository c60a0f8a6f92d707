package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options select the global logger's level and output format.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is "console" or "json".
	Format string

	// NoColor disables color in console output.
	NoColor bool
}

// InitDefault sets up a console logger before flags are parsed, so early
// failures are still readable.
func InitDefault() {
	Init(Options{Level: "info", Format: "console"})
}

// Init configures the global zerolog logger. Unknown levels fall back to info.
func Init(opts Options) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    opts.NoColor,
		TimeFormat: time.Kitchen,
	})
}
