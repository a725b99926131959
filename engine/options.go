package engine

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

type config struct {
	logger   *slog.Logger
	async    bool
	labelGen func() any
}

func defaultConfig() config {
	return config{
		logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
		async:    false,
		labelGen: func() any { return uuid.New() },
	}
}

// Option is a functional option for NewRoot.
type Option func(*config)

// WithLogger sets a custom slog.Logger for commit, conflict and GC events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithAsync selects the asynchronous flavour: commits and merges serialize
// through a shared write critical section, so transactions of one Root may
// commit from different goroutines. A single transaction's buffers (Root's
// own included) are not locked: Create/Write/Delete on one transaction, or
// on a parent while a child commits into it, must not run concurrently.
// Without it, Root holds no internal locks and the caller must serialize
// access itself.
func WithAsync() Option {
	return func(c *config) { c.async = true }
}

// WithLabelGenerator overrides how Commit auto-fills Result.Label when the
// caller passes none. Defaults to a fresh uuid.UUID per commit.
func WithLabelGenerator(f func() any) Option {
	return func(c *config) { c.labelGen = f }
}
