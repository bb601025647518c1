package wire

import (
	"os"

	"github.com/rs/zerolog"
)

// logger receives the package's diagnostic events: document truncation at
// Close, atomic-rename retries, and scratch debug-bypass activation. These
// conditions are reported, never returned as errors.
var logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "wire").Logger()

// SetLogger replaces the package logger. Pass a logger built on
// zerolog.Nop() to silence diagnostics entirely.
func SetLogger(l zerolog.Logger) { logger = l }

// Logger returns the current package logger.
func Logger() zerolog.Logger { return logger }
