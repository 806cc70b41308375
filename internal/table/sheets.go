package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsAPI is the subset of the Google Sheets values API used by the
// gsheet backend.
type SheetsAPI interface {
	GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	ClearValues(ctx context.Context, spreadsheetID, rng string) error
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
}

// GoogleSheets adapts *sheets.Service to SheetsAPI.
type GoogleSheets struct {
	service *sheets.Service
}

// NewGoogleSheets builds a Sheets client from a service account. credentials
// is either a path to the JSON key file or the JSON itself.
func NewGoogleSheets(ctx context.Context, credentials string) (*GoogleSheets, error) {
	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return nil, errors.New("table: google credentials required")
	}
	var opt option.ClientOption
	if strings.HasPrefix(credentials, "{") {
		opt = option.WithCredentialsJSON([]byte(credentials))
	} else {
		if _, err := os.Stat(credentials); err != nil {
			return nil, fmt.Errorf("table: google credentials file: %w", err)
		}
		opt = option.WithCredentialsFile(credentials)
	}
	service, err := sheets.NewService(ctx, opt, option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("table: create sheets service: %w", err)
	}
	return &GoogleSheets{service: service}, nil
}

func (g *GoogleSheets) GetValues(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := g.service.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *GoogleSheets) ClearValues(ctx context.Context, spreadsheetID, rng string) error {
	_, err := g.service.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (g *GoogleSheets) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	_, err := g.service.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

type sheetsStore struct {
	api           SheetsAPI
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
	// readRows is the row count (header included) seen by the last Read,
	// or -1 before any Read. readCols is the widest row seen.
	readRows int
	readCols int
}

// a1Range quotes the tab name for A1 notation, doubling embedded quotes.
func a1Range(sheetName, cells string) string {
	quoted := "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func (s *sheetsStore) Location() string {
	return "gsheet://" + s.spreadsheetID + "/" + s.sheetName
}

func (s *sheetsStore) Read(ctx context.Context) (*Sheet, error) {
	values, err := s.api.GetValues(ctx, s.spreadsheetID, a1Range(s.sheetName, ""))
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) && (gErr.Code == http.StatusNotFound || gErr.Code == http.StatusBadRequest) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, s.Location(), err)
		}
		return nil, fmt.Errorf("table: sheets get %s: %w", s.Location(), err)
	}
	rows := make([][]string, len(values))
	for i, row := range values {
		s.readCols = max(s.readCols, len(row))
		rows[i] = make([]string, len(row))
		for j, v := range row {
			rows[i][j] = fmt.Sprint(v)
		}
	}
	s.readRows = len(rows)
	return splitHeader(s.sheetName, rows), nil
}

// Write overwrites the tab from A1, then clears the rows left below the new
// data when the table shrank. A failed update leaves the previous contents in
// place.
func (s *sheetsStore) Write(ctx context.Context, sheet *Sheet) error {
	all := joinHeader(sheet)
	// The API drops trailing blank cells on read, so every row is padded to
	// the full width to overwrite what a shifted row leaves behind.
	width := s.readCols
	for _, row := range all {
		width = max(width, len(row))
	}
	values := make([][]interface{}, len(all))
	for i, row := range all {
		values[i] = make([]interface{}, width)
		for j := range values[i] {
			values[i][j] = Cell(row, j)
		}
	}
	if err := s.api.UpdateValues(ctx, s.spreadsheetID, a1Range(s.sheetName, "A1"), values); err != nil {
		return fmt.Errorf("table: sheets update %s: %w", s.Location(), err)
	}
	if s.readRows < 0 || s.readRows > len(all) {
		tail := a1Range(s.sheetName, fmt.Sprintf("A%d:ZZZ", len(all)+1))
		if err := s.api.ClearValues(ctx, s.spreadsheetID, tail); err != nil {
			return fmt.Errorf("table: sheets clear %s: %w", s.Location(), err)
		}
	}
	s.readRows = len(all)
	s.readCols = width
	s.logger.Debug("table rewritten", "location", s.Location(), "rows", len(sheet.Rows))
	return nil
}
