package main

import (
	"io"
	"log/slog"
	"strings"
)

// configureLogging installs the default logger. Logs go to w so command
// output on stdout stays machine readable.
func configureLogging(w io.Writer, level, format string) func() {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	previous := slog.Default()
	slog.SetDefault(slog.New(handler))
	return func() { slog.SetDefault(previous) }
}
