package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. JSON output is for log shippers, the
// text handler for local development. Source locations are attached so stock
// movement errors trace back to their call site.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
