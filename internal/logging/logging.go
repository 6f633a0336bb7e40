package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process logger, installs it as the slog default, and
// returns it. Level is parsed case-insensitively ("debug", "info", "warn",
// "error"); anything unparseable falls back to info. Debug level also
// enables source locations, which is worth the overhead only when chasing
// a specific problem.
func Setup(level string) *slog.Logger {
	lvl := slog.LevelInfo
	_ = lvl.UnmarshalText([]byte(strings.TrimSpace(level)))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
	slog.SetDefault(logger)
	return logger
}
