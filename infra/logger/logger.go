package logger

import corelogger "github.com/kilianp07/fieldops/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards every entry.
type NopLogger = corelogger.NopLogger

// Options tunes the zerolog output.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `json:"level"`
	// Format is "console" or "json". Empty selects console when APP_ENV=dev.
	Format string `json:"format"`
}

var defaults Options

// Configure sets the options used by New. It is called once at startup.
func Configure(o Options) {
	defaults = o
}

// New returns a Logger for the given component using the configured options.
func New(component string) Logger {
	return NewZerologLogger(component, defaults)
}
