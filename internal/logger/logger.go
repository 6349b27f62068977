// Package logger holds the process-wide structured logger used by memkit.
//
// Output is discarded until Init is called, so library users that never
// configure logging pay only for the disabled-level check.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// L is the global logger instance. It's initialized to discard all output by default.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Zero value is slog.LevelInfo
	JSON    bool       // Emit JSON lines instead of logfmt-style text
}

// Init configures logging. Call from main() before any allocator is created.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, handlerOpts))
		return
	}
	L = slog.New(slog.NewTextHandler(w, handlerOpts))
}

// With returns a child of L tagged with the given component name.
func With(component string) *slog.Logger {
	return L.With(slog.String("component", component))
}
