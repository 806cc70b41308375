// Package queue loads pending posts from a table and removes them once
// published.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/kiteletz/BlueskyBot63ar/internal/table"
)

// MaxImages is the most images a single post may carry.
const MaxImages = 4

const (
	columnText     = "text"
	columnHashtags = "hashtags"
	columnImages   = "image_path"
)

// ErrEmpty is returned when the table holds no publishable entries.
var ErrEmpty = errors.New("queue: no posts queued")

// Entry is one pending post.
type Entry struct {
	Text       string
	Hashtags   []string
	ImagePaths []string
}

// Queue wraps the table backing the pending posts.
type Queue struct {
	store  table.Store
	rng    *rand.Rand
	logger *slog.Logger
}

// New returns a Queue over store. rng drives the shuffle; nil uses the
// package-level source.
func New(store table.Store, rng *rand.Rand, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{store: store, rng: rng, logger: logger}
}

// Load reads every entry and returns them in random order. The first entry
// is the one to publish on this run.
func (q *Queue) Load(ctx context.Context) ([]Entry, error) {
	sheet, err := q.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue: load %s: %w", q.store.Location(), err)
	}
	textCol := sheet.Column(columnText)
	if textCol < 0 {
		return nil, fmt.Errorf("queue: %s has no %q column", q.store.Location(), columnText)
	}
	tagCol := sheet.Column(columnHashtags)
	imgCol := sheet.Column(columnImages)

	entries := make([]Entry, 0, len(sheet.Rows))
	for i, row := range sheet.Rows {
		text := table.Cell(row, textCol)
		if strings.TrimSpace(text) == "" {
			q.logger.Warn("skipping queue row without text", "row", i+2)
			continue
		}
		images := SplitList(table.Cell(row, imgCol))
		if len(images) > MaxImages {
			q.logger.Warn("too many images, keeping the first ones",
				"row", i+2, "images", len(images), "max", MaxImages)
			images = images[:MaxImages]
		}
		entries = append(entries, Entry{
			Text:       text,
			Hashtags:   SplitList(table.Cell(row, tagCol)),
			ImagePaths: images,
		})
	}

	shuffle := rand.Shuffle
	if q.rng != nil {
		shuffle = q.rng.Shuffle
	}
	shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })

	q.logger.Info("queue loaded", "location", q.store.Location(), "entries", len(entries))
	return entries, nil
}

// Remove deletes every row whose text equals text exactly and rewrites the
// table. It returns the number of rows removed.
func (q *Queue) Remove(ctx context.Context, text string) (int, error) {
	sheet, err := q.store.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("queue: reload %s: %w", q.store.Location(), err)
	}
	textCol := sheet.Column(columnText)
	if textCol < 0 {
		return 0, fmt.Errorf("queue: %s has no %q column", q.store.Location(), columnText)
	}

	kept := sheet.Rows[:0:0]
	for _, row := range sheet.Rows {
		if table.Cell(row, textCol) == text {
			continue
		}
		kept = append(kept, row)
	}
	removed := len(sheet.Rows) - len(kept)
	if removed == 0 {
		q.logger.Warn("published text not found in queue", "location", q.store.Location())
		return 0, nil
	}
	sheet.Rows = kept
	if err := q.store.Write(ctx, sheet); err != nil {
		return 0, fmt.Errorf("queue: rewrite %s: %w", q.store.Location(), err)
	}
	q.logger.Info("queue updated", "location", q.store.Location(), "removed", removed, "remaining", len(kept))
	return removed, nil
}

// SplitList parses a comma separated cell into trimmed, non-empty items.
func SplitList(cell string) []string {
	var out []string
	for _, part := range strings.Split(cell, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
