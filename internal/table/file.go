package table

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

type fileStore struct {
	path   string
	codec  codec
	logger *slog.Logger
}

func (s *fileStore) Location() string { return s.path }

func (s *fileStore) Read(_ context.Context) (*Sheet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("table: read %s: %w", s.path, err)
	}
	return s.codec.decode(data)
}

// Write replaces the file contents. The previous permissions are kept.
func (s *fileStore) Write(_ context.Context, sheet *Sheet) error {
	data, err := s.codec.encode(sheet)
	if err != nil {
		return err
	}
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(s.path, data, mode); err != nil {
		return fmt.Errorf("table: write %s: %w", s.path, err)
	}
	s.logger.Debug("table rewritten", "path", s.path, "rows", len(sheet.Rows))
	return nil
}
