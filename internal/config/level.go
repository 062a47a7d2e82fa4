package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseLogLevel maps a level name from the config file or the command line
// to a slog level. Matching is case-insensitive.
//
// Aliases:
//   - "trace" -> debug
//   - "warning" -> warn
//   - "" -> info
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
