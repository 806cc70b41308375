// Package table reads and rewrites the small spreadsheets that drive the bot:
// local .xlsx/.csv files, the same formats stored in S3, or a Google Sheets tab.
package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// ErrNotFound is returned when the backing file, object or sheet does not exist.
var ErrNotFound = errors.New("table: not found")

// Sheet is a header row followed by data rows.
type Sheet struct {
	// Name of the worksheet, kept so a rewrite does not rename it.
	Name   string
	Header []string
	Rows   [][]string
}

// Column returns the index of the header cell equal to name, or -1.
func (s *Sheet) Column(name string) int {
	for i, h := range s.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

// Cell returns row[idx], or "" when the row is shorter or idx is negative.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Store is a whole-table read/rewrite backend.
type Store interface {
	Read(ctx context.Context) (*Sheet, error)
	Write(ctx context.Context, sheet *Sheet) error
	Location() string
}

// Options carries the remote clients needed by non-local locations.
type Options struct {
	S3     S3API
	Sheets SheetsAPI
	Logger *slog.Logger
}

// Open returns the Store for location:
//
//	posts.xlsx, data/posts.csv          local file
//	s3://bucket/posts.xlsx              S3 object
//	gsheet://<spreadsheetID>/<sheet>    Google Sheets tab
func Open(location string, opts Options) (Store, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("table: location required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case strings.HasPrefix(location, "gsheet://"):
		if opts.Sheets == nil {
			return nil, fmt.Errorf("table: %s needs Google Sheets credentials", location)
		}
		id, name, ok := strings.Cut(strings.TrimPrefix(location, "gsheet://"), "/")
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("table: malformed sheet location %q", location)
		}
		return &sheetsStore{api: opts.Sheets, spreadsheetID: id, sheetName: name, logger: logger, readRows: -1}, nil

	case strings.HasPrefix(location, "s3://"):
		if opts.S3 == nil {
			return nil, fmt.Errorf("table: %s needs an S3 client", location)
		}
		bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("table: malformed s3 location %q", location)
		}
		c, err := codecFor(key)
		if err != nil {
			return nil, err
		}
		return &s3Store{api: opts.S3, bucket: bucket, key: key, codec: c, logger: logger}, nil

	default:
		c, err := codecFor(location)
		if err != nil {
			return nil, err
		}
		return &fileStore{path: location, codec: c, logger: logger}, nil
	}
}

type codec interface {
	decode(data []byte) (*Sheet, error)
	encode(sheet *Sheet) ([]byte, error)
	contentType() string
}

func codecFor(name string) (codec, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx", ".xlsm":
		return xlsxCodec{}, nil
	case ".csv":
		return csvCodec{}, nil
	default:
		return nil, fmt.Errorf("table: unsupported format %q", name)
	}
}

func splitHeader(name string, rows [][]string) *Sheet {
	sheet := &Sheet{Name: name}
	if len(rows) == 0 {
		return sheet
	}
	sheet.Header = rows[0]
	sheet.Rows = rows[1:]
	return sheet
}

func joinHeader(sheet *Sheet) [][]string {
	all := make([][]string, 0, len(sheet.Rows)+1)
	if len(sheet.Header) > 0 {
		all = append(all, sheet.Header)
	}
	return append(all, sheet.Rows...)
}
