package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Log formats accepted by logging.log_format.
const (
	logFormatAuto = "auto"
	logFormatText = "text"
	logFormatJSON = "json"
)

// newLogHandler picks the slog handler for format. "auto" uses colored tint
// output on a terminal and plain text otherwise.
func newLogHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	switch format {
	case logFormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case logFormatText:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}

	if isTerminal(w) {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}

	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// isTerminal reports whether w is a terminal file descriptor.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
