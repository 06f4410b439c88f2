package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsHarvester/internal/ports"
)

const rowsTable = "sheet_rows"

// Schema creates the single table backing every sheet. Row 1 holds the header.
const Schema = `CREATE TABLE IF NOT EXISTS sheet_rows (
    sheet      TEXT    NOT NULL,
    row_index  INTEGER NOT NULL,
    cells      TEXT[]  NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (sheet, row_index)
)`

// PostgresTable stores sheets as rows of text arrays so the spreadsheet
// layout survives unchanged.
type PostgresTable struct {
	db *sql.DB
	qb sq.StatementBuilderType
}

var _ ports.Table = (*PostgresTable)(nil)

// NewPostgresTable wires a sql.DB implementation.
func NewPostgresTable(db *sql.DB) *PostgresTable {
	return &PostgresTable{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the backing table when missing.
func (t *PostgresTable) Migrate(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate %s: %w", rowsTable, err)
	}
	return nil
}

// GetRange returns the addressed block; missing rows read as empty and
// trailing empty cells and rows are trimmed.
func (t *PostgresTable) GetRange(ctx context.Context, rng ports.Range) ([][]string, error) {
	colFrom, colTo := ports.ColumnIndex(rng.FromCol), ports.ColumnIndex(rng.ToCol)
	if colFrom < 0 || colTo < colFrom {
		return nil, fmt.Errorf("invalid column span %s", rng)
	}
	fromRow := max(rng.FromRow, 1)

	q := t.qb.Select("row_index", "cells").
		From(rowsTable).
		Where(sq.Eq{"sheet": rng.Sheet}).
		Where(sq.GtOrEq{"row_index": fromRow}).
		OrderBy("row_index")
	if rng.ToRow > 0 {
		q = q.Where(sq.LtOrEq{"row_index": rng.ToRow})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}

	var out [][]string
	for rows.Next() {
		var (
			idx   int
			cells pq.StringArray
		)
		if err := rows.Scan(&idx, &cells); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for len(out) < idx-fromRow {
			out = append(out, []string{})
		}
		out = append(out, span(cells, colFrom, colTo))
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// AppendRows inserts rows after the last stored row of the sheet in one
// transaction, aligned at rng.FromCol.
func (t *PostgresTable) AppendRows(ctx context.Context, rng ports.Range, rows [][]string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	cells := 0
	err := t.inTx(ctx, func(tx *sql.Tx) error {
		last, err := t.lastRow(ctx, tx, rng.Sheet)
		if err != nil {
			return err
		}
		next := max(last+1, rng.FromRow)
		offset := max(ports.ColumnIndex(rng.FromCol), 0)

		ins := t.qb.Insert(rowsTable).Columns("sheet", "row_index", "cells")
		for i, row := range rows {
			padded := make([]string, offset, offset+len(row))
			padded = append(padded, row...)
			ins = ins.Values(rng.Sheet, next+i, pq.StringArray(padded))
			cells += len(row)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cells, nil
}

// UpdateRow overwrites the cells of one row starting at rng.FromCol.
func (t *PostgresTable) UpdateRow(ctx context.Context, rng ports.Range, values []string) error {
	if rng.FromRow < 1 {
		return fmt.Errorf("invalid row in %s", rng)
	}
	if len(values) > rng.Width() {
		return fmt.Errorf("%d values exceed range %s", len(values), rng)
	}

	return t.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := t.qb.Select("cells").
			From(rowsTable).
			Where(sq.Eq{"sheet": rng.Sheet, "row_index": rng.FromRow}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build select: %w", err)
		}

		var current pq.StringArray
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&current); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read row: %w", err)
		}

		start := ports.ColumnIndex(rng.FromCol)
		for len(current) < start+len(values) {
			current = append(current, "")
		}
		copy(current[start:], values)

		return t.upsert(ctx, tx, rng.Sheet, rng.FromRow, current)
	})
}

// EnsureSheet writes the header row when the sheet has none.
func (t *PostgresTable) EnsureSheet(ctx context.Context, name string, header []string) error {
	if len(header) == 0 {
		return nil
	}
	query, args, err := t.qb.Insert(rowsTable).
		Columns("sheet", "row_index", "cells").
		Values(name, 1, pq.StringArray(header)).
		Suffix("ON CONFLICT (sheet, row_index) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ensure sheet %q: %w", name, err)
	}
	return nil
}

// ClearSheet deletes every row of the sheet and rewrites the header.
func (t *PostgresTable) ClearSheet(ctx context.Context, name string, header []string) error {
	return t.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := t.qb.Delete(rowsTable).Where(sq.Eq{"sheet": name}).ToSql()
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear sheet %q: %w", name, err)
		}
		if len(header) == 0 {
			return nil
		}
		return t.upsert(ctx, tx, name, 1, header)
	})
}

func (t *PostgresTable) lastRow(ctx context.Context, tx *sql.Tx, sheet string) (int, error) {
	query, args, err := t.qb.Select("COALESCE(MAX(row_index), 0)").
		From(rowsTable).
		Where(sq.Eq{"sheet": sheet}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select: %w", err)
	}
	var last int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		return 0, fmt.Errorf("read last row: %w", err)
	}
	return last, nil
}

func (t *PostgresTable) upsert(ctx context.Context, tx *sql.Tx, sheet string, row int, cells []string) error {
	query, args, err := t.qb.Insert(rowsTable).
		Columns("sheet", "row_index", "cells").
		Values(sheet, row, pq.StringArray(cells)).
		Suffix("ON CONFLICT (sheet, row_index) DO UPDATE SET cells = EXCLUDED.cells, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert row %d: %w", row, err)
	}
	return nil
}

func (t *PostgresTable) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func span(cells []string, from, to int) []string {
	out := make([]string, 0, to-from+1)
	for i := from; i <= to && i < len(cells); i++ {
		out = append(out, cells[i])
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
