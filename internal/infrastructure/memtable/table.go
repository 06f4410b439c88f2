// Package memtable is an in-process tabular store with spreadsheet semantics.
// It backs dry runs (store.driver: memory) and tests.
package memtable

import (
	"context"
	"fmt"
	"sync"

	"NewsHarvester/internal/ports"
)

// Table keeps sheets as row slices; row 1 is index 0.
type Table struct {
	mu     sync.Mutex
	sheets map[string][][]string

	// FailOn, when set, is consulted before every operation; a non-nil
	// result is returned instead of performing it.
	FailOn func(op string, rng ports.Range) error
}

var _ ports.Table = (*Table)(nil)

// New returns an empty table set.
func New() *Table {
	return &Table{sheets: map[string][][]string{}}
}

// EnsureSheet creates the sheet when absent and writes the header into an empty sheet.
func (t *Table) EnsureSheet(_ context.Context, name string, header []string) error {
	if err := t.fail("ensure", ports.Range{Sheet: name}); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := t.sheets[name]
	if len(rows) == 0 && len(header) > 0 {
		rows = [][]string{clone(header)}
	}
	if rows == nil {
		rows = [][]string{}
	}
	t.sheets[name] = rows
	return nil
}

// ClearSheet drops all rows and rewrites the header.
func (t *Table) ClearSheet(_ context.Context, name string, header []string) error {
	if err := t.fail("clear", ports.Range{Sheet: name}); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := [][]string{}
	if len(header) > 0 {
		rows = append(rows, clone(header))
	}
	t.sheets[name] = rows
	return nil
}

// GetRange returns the addressed block with trailing empty cells trimmed, as
// the Sheets API does.
func (t *Table) GetRange(_ context.Context, rng ports.Range) ([][]string, error) {
	if err := t.fail("get", rng); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, ok := t.sheets[rng.Sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %q does not exist", rng.Sheet)
	}

	from, to := rowSpan(rng, len(rows))
	colFrom, colTo := ports.ColumnIndex(rng.FromCol), ports.ColumnIndex(rng.ToCol)
	if colFrom < 0 || colTo < colFrom {
		return nil, fmt.Errorf("invalid column span %s", rng)
	}

	var out [][]string
	for i := from; i < to; i++ {
		out = append(out, trimTrailing(slice(rows[i], colFrom, colTo)))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// AppendRows adds rows after the last row of the sheet, aligned at rng.FromCol.
func (t *Table) AppendRows(_ context.Context, rng ports.Range, rows [][]string) (int, error) {
	if err := t.fail("append", rng); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.sheets[rng.Sheet]
	if !ok {
		return 0, fmt.Errorf("sheet %q does not exist", rng.Sheet)
	}
	offset := max(ports.ColumnIndex(rng.FromCol), 0)

	cells := 0
	for _, row := range rows {
		padded := make([]string, offset, offset+len(row))
		padded = append(padded, row...)
		existing = append(existing, padded)
		cells += len(row)
	}
	t.sheets[rng.Sheet] = existing
	return cells, nil
}

// UpdateRow overwrites the cells of one row starting at rng.FromCol.
func (t *Table) UpdateRow(_ context.Context, rng ports.Range, values []string) error {
	if err := t.fail("update", rng); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, ok := t.sheets[rng.Sheet]
	if !ok {
		return fmt.Errorf("sheet %q does not exist", rng.Sheet)
	}
	if rng.FromRow < 1 {
		return fmt.Errorf("invalid row in %s", rng)
	}
	if len(values) > rng.Width() {
		return fmt.Errorf("%d values exceed range %s", len(values), rng)
	}
	for len(rows) < rng.FromRow {
		rows = append(rows, []string{})
	}

	idx := rng.FromRow - 1
	start := ports.ColumnIndex(rng.FromCol)
	row := rows[idx]
	for len(row) < start+len(values) {
		row = append(row, "")
	}
	copy(row[start:], values)
	rows[idx] = row
	t.sheets[rng.Sheet] = rows
	return nil
}

// Rows returns a copy of every row of a sheet, header included.
func (t *Table) Rows(sheet string) [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]string, 0, len(t.sheets[sheet]))
	for _, row := range t.sheets[sheet] {
		out = append(out, clone(row))
	}
	return out
}

func (t *Table) fail(op string, rng ports.Range) error {
	if t.FailOn == nil {
		return nil
	}
	return t.FailOn(op, rng)
}

func rowSpan(rng ports.Range, n int) (int, int) {
	from := 0
	if rng.FromRow > 0 {
		from = rng.FromRow - 1
	}
	to := n
	if rng.ToRow > 0 && rng.ToRow < n {
		to = rng.ToRow
	}
	if from > to {
		from = to
	}
	return from, to
}

func slice(row []string, from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to && i < len(row); i++ {
		out = append(out, row[i])
	}
	return out
}

func trimTrailing(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}

func clone(row []string) []string {
	return append([]string(nil), row...)
}
