package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ServiceName tags every record so API, worker and migrate output can be
// told apart once shipped to one sink.
const ServiceName = "settlement"

// NewLogger returns the process logger for one binary. component is the
// binary's role: "api", "worker" or "migrate".
func NewLogger(cfg *Config, component string) *slog.Logger {
	return newLogger(os.Stdout, cfg, component)
}

func newLogger(w io.Writer, cfg *Config, component string) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: logLevel(cfg)}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	attrs := []any{slog.String("service", ServiceName), slog.String("component", component)}
	if cfg != nil {
		attrs = append(attrs, slog.String("env", cfg.AppEnv))
	}
	return slog.New(handler).With(attrs...)
}

// logLevel maps LOG_LEVEL onto slog. Unknown values fall back to info.
func logLevel(cfg *Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
