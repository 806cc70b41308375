package posting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiteletz/BlueskyBot63ar/internal/bluesky"
	"github.com/kiteletz/BlueskyBot63ar/internal/observability/metrics"
	"github.com/kiteletz/BlueskyBot63ar/internal/queue"
)

// Queue is the pending-post source.
type Queue interface {
	Load(ctx context.Context) ([]queue.Entry, error)
	Remove(ctx context.Context, text string) (int, error)
}

// Result describes what a post pass did.
type Result struct {
	Entry   queue.Entry
	Post    *bluesky.StrongRef
	Removed int
	DryRun  bool
}

// Runner publishes one queued entry per Run.
type Runner struct {
	queue     Queue
	publisher *Publisher
	metrics   *metrics.BotMetrics
	logger    *slog.Logger
	dryRun    bool
}

func NewRunner(q Queue, publisher *Publisher, m *metrics.BotMetrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{queue: q, publisher: publisher, metrics: m, logger: logger}
}

// WithDryRun makes Run log what it would post without publishing or
// touching the queue.
func (r *Runner) WithDryRun(dryRun bool) *Runner {
	r.dryRun = dryRun
	return r
}

// Run loads the queue, publishes its first entry and removes it. A removal
// failure after a successful publish returns the Result together with
// ErrPersist.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	entries, err := r.queue.Load(ctx)
	if err != nil {
		r.metrics.ObservePost("load_failed")
		return nil, err
	}
	if len(entries) == 0 {
		r.metrics.ObservePost("empty")
		return nil, queue.ErrEmpty
	}
	entry := entries[0]
	result := &Result{Entry: entry, DryRun: r.dryRun}

	if r.dryRun {
		post := Compose(entry.Text, entry.Hashtags, r.logger)
		r.logger.Info("dry run: would post",
			"text", post.Text, "facets", len(post.Facets), "images", entry.ImagePaths)
		r.metrics.ObservePost("dry_run")
		return result, nil
	}

	ref, err := r.publisher.Publish(ctx, entry.Text, entry.Hashtags, entry.ImagePaths)
	if err != nil {
		r.metrics.ObservePost("failed")
		return nil, err
	}
	result.Post = ref
	r.metrics.ObservePost("published")

	removed, err := r.queue.Remove(ctx, entry.Text)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	result.Removed = removed
	return result, nil
}
