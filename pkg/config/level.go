package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nstogner/labassist/pkg/remote/openai"
)

// LevelTrace enables HTTP traffic dumps.
const LevelTrace = openai.LevelTrace

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
