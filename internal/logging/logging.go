// Package logging constructs the application's structured logger.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New creates a logger writing to w (os.Stderr if nil) with timestamps
// enabled.
func New(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{ReportTimestamp: true})
}

// Discard returns a logger that drops all output. Useful in tests and as a
// default when no logger is injected.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
