package main

import (
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// setupLogger creates a dual-output logger: text to stderr, JSON to a
// file. Falls back to stderr only when the file cannot be opened.
func setupLogger(logFile, level string) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: parseLevel(level),
	})

	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)), file.Close
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
