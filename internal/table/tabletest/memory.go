// Package tabletest provides an in-memory table.Store for tests.
package tabletest

import (
	"context"
	"sync"

	"github.com/kiteletz/BlueskyBot63ar/internal/table"
)

// MemoryStore keeps a sheet in memory. Reads return copies so callers can
// mutate them freely.
type MemoryStore struct {
	mu       sync.Mutex
	sheet    *table.Sheet
	ReadErr  error
	WriteErr error
	Writes   int
}

// NewMemoryStore seeds a store with header and rows. A nil header means the
// table does not exist yet and Read returns ErrNotFound.
func NewMemoryStore(header []string, rows ...[]string) *MemoryStore {
	if header == nil {
		return &MemoryStore{}
	}
	return &MemoryStore{sheet: &table.Sheet{Header: header, Rows: rows}}
}

func (m *MemoryStore) Location() string { return "memory" }

func (m *MemoryStore) Read(_ context.Context) (*table.Sheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if m.sheet == nil {
		return nil, table.ErrNotFound
	}
	return copySheet(m.sheet), nil
}

func (m *MemoryStore) Write(_ context.Context, sheet *table.Sheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.sheet = copySheet(sheet)
	m.Writes++
	return nil
}

// Rows returns a copy of the current data rows.
func (m *MemoryStore) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sheet == nil {
		return nil
	}
	return copySheet(m.sheet).Rows
}

func copySheet(s *table.Sheet) *table.Sheet {
	out := &table.Sheet{Name: s.Name, Header: append([]string(nil), s.Header...)}
	for _, row := range s.Rows {
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}
	return out
}
