// Package gsheets implements ports.Table on top of the Google Sheets v4 API.
package gsheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"NewsHarvester/internal/config"
	"NewsHarvester/internal/ports"
)

const (
	inputRaw         = "RAW"
	inputUserEntered = "USER_ENTERED"
	insertRows       = "INSERT_ROWS"

	// widest span cleared by ClearSheet
	lastColumn = "ZZ"
)

// Table is a spreadsheet addressed by ID.
type Table struct {
	svc           *sheets.Service
	spreadsheetID string
}

var _ ports.Table = (*Table)(nil)

// New authenticates with service account credentials. cfg.Credentials holds
// either the key JSON itself or a path to the key file.
func New(ctx context.Context, cfg config.SheetsConfig) (*Table, error) {
	data, err := credentialsJSON(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	jwt, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return NewWithService(svc, cfg.SpreadsheetID), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *sheets.Service, spreadsheetID string) *Table {
	return &Table{svc: svc, spreadsheetID: spreadsheetID}
}

func credentialsJSON(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("service account credentials are empty")
	}
	if strings.HasPrefix(raw, "{") {
		return []byte(raw), nil
	}
	data, err := os.ReadFile(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}
	return data, nil
}

// GetRange reads formatted cell values.
func (t *Table) GetRange(ctx context.Context, rng ports.Range) ([][]string, error) {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, rng.String()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", rng, err)
	}
	return fromValues(resp.Values), nil
}

// AppendRows inserts rows after the table found in rng. Cells are stored as
// typed so scraped text is never evaluated as a formula.
func (t *Table) AppendRows(ctx context.Context, rng ports.Range, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	resp, err := t.svc.Spreadsheets.Values.
		Append(t.spreadsheetID, rng.String(), &sheets.ValueRange{Values: toValues(rows)}).
		ValueInputOption(inputRaw).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("sheets append %s: %w", rng, err)
	}
	if resp.Updates == nil {
		return 0, nil
	}
	return int(resp.Updates.UpdatedCells), nil
}

// UpdateRow writes one row; values are parsed as if typed by a user.
func (t *Table) UpdateRow(ctx context.Context, rng ports.Range, values []string) error {
	_, err := t.svc.Spreadsheets.Values.
		Update(t.spreadsheetID, rng.String(), &sheets.ValueRange{Values: toValues([][]string{values})}).
		ValueInputOption(inputUserEntered).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets update %s: %w", rng, err)
	}
	return nil
}

// EnsureSheet adds the tab when missing and writes the header into an empty row 1.
func (t *Table) EnsureSheet(ctx context.Context, name string, header []string) error {
	exists, err := t.hasSheet(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
			}},
		}
		if _, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("sheets add sheet %q: %w", name, err)
		}
	}
	if len(header) == 0 {
		return nil
	}

	headerRange := headerRow(name, len(header))
	current, err := t.GetRange(ctx, headerRange)
	if err != nil {
		return err
	}
	if len(current) > 0 && len(current[0]) > 0 {
		return nil
	}
	return t.writeHeader(ctx, headerRange, header)
}

// ClearSheet empties every cell of the tab and rewrites the header.
func (t *Table) ClearSheet(ctx context.Context, name string, header []string) error {
	all := ports.Columns(name, "A", lastColumn, 0)
	if _, err := t.svc.Spreadsheets.Values.Clear(t.spreadsheetID, all.String(), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets clear %s: %w", all, err)
	}
	if len(header) == 0 {
		return nil
	}
	return t.writeHeader(ctx, headerRow(name, len(header)), header)
}

func (t *Table) hasSheet(ctx context.Context, name string) (bool, error) {
	doc, err := t.svc.Spreadsheets.Get(t.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("sheets get spreadsheet: %w", err)
	}
	for _, s := range doc.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return true, nil
		}
	}
	return false, nil
}

func (t *Table) writeHeader(ctx context.Context, rng ports.Range, header []string) error {
	_, err := t.svc.Spreadsheets.Values.
		Update(t.spreadsheetID, rng.String(), &sheets.ValueRange{Values: toValues([][]string{header})}).
		ValueInputOption(inputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets write header %s: %w", rng, err)
	}
	return nil
}

func headerRow(name string, width int) ports.Range {
	return ports.Row(name, "A", ports.ColumnLetter(width-1), 1)
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(row))
		for j, c := range row {
			vals[j] = c
		}
		out[i] = vals
	}
	return out
}

func fromValues(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			switch c := v.(type) {
			case string:
				cells[j] = c
			case nil:
			default:
				cells[j] = fmt.Sprint(c)
			}
		}
		out[i] = cells
	}
	return out
}
