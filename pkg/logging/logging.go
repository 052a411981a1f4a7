// Package logging sets up the process-wide structured logger. It mirrors
// the level-var/handler shape of reusee-tai's logs/logger.go, stripped of
// that project's systemd-journal fanout since this module has no such
// deployment target.
package logging

import (
	"log/slog"
	"os"
)

// Level is the process-wide, dynamically adjustable log level. Command
// handlers (cmd/aterm) flip it in response to the --log-level flag the same
// way reusee-tai's cmds.Define hooks flip its package-level LevelVar.
var Level = new(slog.LevelVar)

// New builds a text-handler logger writing to w at the current Level.
// cmd/aterm calls it once per command; pkg/termstore.New takes the
// resulting *slog.Logger as an argument rather than reaching for a global,
// so tests can inject their own sink.
func New(w *os.File) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level})
	return slog.New(handler)
}

// SetLevelName parses a level name ("debug", "info", "warn", "error") and
// applies it to Level. Unknown names leave Level unchanged.
func SetLevelName(name string) {
	switch name {
	case "debug":
		Level.Set(slog.LevelDebug)
	case "info":
		Level.Set(slog.LevelInfo)
	case "warn":
		Level.Set(slog.LevelWarn)
	case "error":
		Level.Set(slog.LevelError)
	}
}
