package replyrules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiteletz/BlueskyBot63ar/internal/table"
	"github.com/kiteletz/BlueskyBot63ar/internal/table/tabletest"
)

func TestLoad(t *testing.T) {
	store := tabletest.NewMemoryStore([]string{"key", "reply", "memo", "hashtags"},
		[]string{"「おはよう」", "おはようございます！", "", "朝, bot"},
		[]string{"skip me", "   ", "", "x"},
		[]string{"no tags", "plain reply"},
		[]string{"dup", "first", "", ""},
		[]string{"dup", "second", "", "late"},
	)

	rules, err := Load(context.Background(), store, nil)
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	rule, ok := rules.Lookup("「おはよう」")
	require.True(t, ok)
	assert.Equal(t, "おはようございます！", rule.Text)
	assert.Equal(t, []string{"朝", "bot"}, rule.Hashtags)

	rule, ok = rules.Lookup("no tags")
	require.True(t, ok)
	assert.Empty(t, rule.Hashtags)

	rule, ok = rules.Lookup("dup")
	require.True(t, ok)
	assert.Equal(t, "second", rule.Text)
	assert.Equal(t, []string{"late"}, rule.Hashtags)

	_, ok = rules.Lookup("skip me")
	assert.False(t, ok)
}

func TestLoadKeysAreVerbatim(t *testing.T) {
	store := tabletest.NewMemoryStore([]string{"key", "reply"}, []string{" padded ", "reply"})
	rules, err := Load(context.Background(), store, nil)
	require.NoError(t, err)

	_, ok := rules.Lookup("padded")
	assert.False(t, ok)
	_, ok = rules.Lookup(" padded ")
	assert.True(t, ok)
}

func TestLoadMissingTable(t *testing.T) {
	_, err := Load(context.Background(), tabletest.NewMemoryStore(nil), nil)
	assert.ErrorIs(t, err, table.ErrNotFound)
}
