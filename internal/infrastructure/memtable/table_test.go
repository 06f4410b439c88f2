package memtable

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"NewsHarvester/internal/ports"
)

func TestTableAppendAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	table := New()
	if err := table.EnsureSheet(ctx, "Articles", []string{"Title", "URL"}); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}
	cells, err := table.AppendRows(ctx, ports.Columns("Articles", "A", "C", 2), [][]string{{"a", "1", ""}, {"b", "2"}})
	if err != nil || cells != 5 {
		t.Fatalf("AppendRows = %d, %v", cells, err)
	}
	// A second ensure keeps existing rows.
	if err := table.EnsureSheet(ctx, "Articles", []string{"other"}); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}

	got, err := table.GetRange(ctx, ports.Columns("Articles", "A", "C", 2))
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	want := [][]string{{"a", "1"}, {"b", "2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("GetRange = %v, want %v", got, want)
	}

	if err := table.UpdateRow(ctx, ports.Row("Articles", "B", "D", 3), []string{"x", "y", "z"}); err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	if row := table.Rows("Articles")[2]; !reflect.DeepEqual(row, []string{"b", "x", "y", "z"}) {
		t.Fatalf("unexpected row after update: %v", row)
	}
	if err := table.UpdateRow(ctx, ports.Row("Articles", "B", "C", 3), []string{"x", "y", "z"}); err == nil {
		t.Fatalf("expected error when values exceed range")
	}
}

func TestTableClearAndMissingSheet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	table := New()
	if _, err := table.GetRange(ctx, ports.Columns("Nope", "A", "B", 1)); err == nil {
		t.Fatalf("expected error for missing sheet")
	}

	if err := table.EnsureSheet(ctx, "Processed", []string{"URL"}); err != nil {
		t.Fatalf("EnsureSheet: %v", err)
	}
	if _, err := table.AppendRows(ctx, ports.Columns("Processed", "A", "A", 2), [][]string{{"u1"}, {"u2"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	if err := table.ClearSheet(ctx, "Processed", []string{"URL"}); err != nil {
		t.Fatalf("ClearSheet: %v", err)
	}
	if rows := table.Rows("Processed"); !reflect.DeepEqual(rows, [][]string{{"URL"}}) {
		t.Fatalf("unexpected rows after clear: %v", rows)
	}
}

func TestTableFailOn(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	table := New()
	table.FailOn = func(op string, _ ports.Range) error {
		if op == "ensure" {
			return boom
		}
		return nil
	}
	if err := table.EnsureSheet(context.Background(), "Articles", nil); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
}
