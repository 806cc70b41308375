// Package replyrules loads the key -> canned reply table.
package replyrules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kiteletz/BlueskyBot63ar/internal/queue"
	"github.com/kiteletz/BlueskyBot63ar/internal/table"
)

// Column positions in the reply table: A key, B reply text, D hashtags.
// Column C is free for notes.
const (
	colKey      = 0
	colReply    = 1
	colHashtags = 3
)

// Rule is the reply to send for posts whose extracted key equals Key.
type Rule struct {
	Key      string
	Text     string
	Hashtags []string
}

// Rules maps lookup keys to rules.
type Rules map[string]Rule

// Lookup returns the rule for key.
func (r Rules) Lookup(key string) (Rule, bool) {
	rule, ok := r[key]
	return rule, ok
}

// Load reads store into Rules. Rows with a blank reply are skipped; a later
// row replaces an earlier one with the same key. Keys are used verbatim.
func Load(ctx context.Context, store table.Store, logger *slog.Logger) (Rules, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sheet, err := store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("replyrules: load %s: %w", store.Location(), err)
	}
	rules := make(Rules, len(sheet.Rows))
	for i, row := range sheet.Rows {
		text := table.Cell(row, colReply)
		if strings.TrimSpace(text) == "" {
			continue
		}
		key := table.Cell(row, colKey)
		if _, dup := rules[key]; dup {
			logger.Warn("duplicate reply key, later row wins", "key", key, "row", i+2)
		}
		rules[key] = Rule{
			Key:      key,
			Text:     text,
			Hashtags: queue.SplitList(table.Cell(row, colHashtags)),
		}
	}
	logger.Info("reply rules loaded", "location", store.Location(), "rules", len(rules))
	return rules, nil
}
