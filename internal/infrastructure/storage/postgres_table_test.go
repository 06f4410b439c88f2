package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"NewsHarvester/internal/ports"
)

// cellsArg matches a pq text array argument.
type cellsArg []string

func (c cellsArg) Match(v driver.Value) bool {
	var got pq.StringArray
	if err := got.Scan(v); err != nil {
		return false
	}
	return reflect.DeepEqual([]string(got), []string(c))
}

func newMock(t *testing.T) (*PostgresTable, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewPostgresTable(db), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetRangeFillsGapsAndTrims(t *testing.T) {
	t.Parallel()

	table, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"row_index", "cells"}).
		AddRow(2, "{a,b,c}").
		AddRow(4, "{x,\"\"}").
		AddRow(5, "{}")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT row_index, cells FROM sheet_rows WHERE sheet = $1 AND row_index >= $2 ORDER BY row_index")).
		WithArgs("Articles", 2).
		WillReturnRows(rows)

	got, err := table.GetRange(context.Background(), ports.Columns("Articles", "A", "B", 2))
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	want := [][]string{{"a", "b"}, {}, {"x"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetRange = %v, want %v", got, want)
	}
	expectationsMet(t, mock)
}

func TestGetRangeSingleRow(t *testing.T) {
	t.Parallel()

	table, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sheet = $1 AND row_index >= $2 AND row_index <= $3")).
		WithArgs("Articles", 7, 7).
		WillReturnRows(sqlmock.NewRows([]string{"row_index", "cells"}).AddRow(7, "{t,u,d,b,Опубліковано}"))

	got, err := table.GetRange(context.Background(), ports.Row("Articles", "E", "E", 7))
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if !reflect.DeepEqual(got, [][]string{{"Опубліковано"}}) {
		t.Fatalf("GetRange = %v", got)
	}
	expectationsMet(t, mock)
}

func TestAppendRowsContinuesAfterLastRow(t *testing.T) {
	t.Parallel()

	table, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(row_index), 0) FROM sheet_rows WHERE sheet = $1")).
		WithArgs("Processed").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sheet_rows (sheet,row_index,cells) VALUES ($1,$2,$3),($4,$5,$6)")).
		WithArgs("Processed", 6, cellsArg{"u1", "t1", ""}, "Processed", 7, cellsArg{"u2", "t2"}).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	cells, err := table.AppendRows(context.Background(), ports.Columns("Processed", "A", "C", 2), [][]string{{"u1", "t1", ""}, {"u2", "t2"}})
	if err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	if cells != 5 {
		t.Fatalf("cells = %d, want 5", cells)
	}
	expectationsMet(t, mock)
}

func TestAppendRowsRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	table, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
	mock.ExpectExec("INSERT INTO sheet_rows").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if _, err := table.AppendRows(context.Background(), ports.Columns("Articles", "A", "G", 2), [][]string{{"x"}}); err == nil {
		t.Fatalf("expected error")
	}
	expectationsMet(t, mock)
}

func TestUpdateRowMergesCells(t *testing.T) {
	t.Parallel()

	table, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT cells FROM sheet_rows WHERE row_index = $1 AND sheet = $2 FOR UPDATE")).
		WithArgs(3, "Articles").
		WillReturnRows(sqlmock.NewRows([]string{"cells"}).AddRow("{t,u,d,b,Неопубліковано}"))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (sheet, row_index) DO UPDATE SET cells = EXCLUDED.cells")).
		WithArgs("Articles", 3, cellsArg{"t", "u", "d", "b", "Опубліковано", "9", "Facebook"}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := table.UpdateRow(context.Background(), ports.Row("Articles", "E", "G", 3), []string{"Опубліковано", "9", "Facebook"})
	if err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	expectationsMet(t, mock)
}

func TestEnsureAndClearSheet(t *testing.T) {
	t.Parallel()

	table, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (sheet, row_index) DO NOTHING")).
		WithArgs("Articles", 1, cellsArg{"Title", "URL"}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sheet_rows WHERE sheet = $1")).
		WithArgs("Articles").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec("INSERT INTO sheet_rows").
		WithArgs("Articles", 1, cellsArg{"Title", "URL"}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	if err := table.EnsureSheet(ctx, "Articles", []string{"Title", "URL"}); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}
	if err := table.ClearSheet(ctx, "Articles", []string{"Title", "URL"}); err != nil {
		t.Fatalf("ClearSheet: %v", err)
	}
	expectationsMet(t, mock)
}
