package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/infrastructure/memtable"
	"NewsHarvester/internal/ports"
)

type fakeContent struct {
	mu     sync.Mutex
	calls  []string
	bodies map[string]string
	errs   map[string]error
}

func (f *fakeContent) Extract(_ context.Context, articleURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, articleURL)
	if err := f.errs[articleURL]; err != nil {
		return "", err
	}
	if body, ok := f.bodies[articleURL]; ok {
		return body, nil
	}
	return "body of " + articleURL, nil
}

func newTable(t *testing.T) *memtable.Table {
	t.Helper()
	table := memtable.New()
	layout := DefaultLayout()
	ctx := context.Background()
	if err := table.EnsureSheet(ctx, layout.Articles, ArticlesHeader); err != nil {
		t.Fatalf("ensure articles: %v", err)
	}
	if err := table.EnsureSheet(ctx, layout.Processed, ProcessedHeader); err != nil {
		t.Fatalf("ensure processed: %v", err)
	}
	return table
}

func summary(id string) domain.ArticleSummary {
	return domain.ArticleSummary{
		Title:       "Новина " + id,
		URL:         "https://babel.ua/news/" + id,
		PublishedAt: time.Date(2025, time.November, 8, 10, 0, 0, 0, time.UTC),
	}
}

func summaries(n int) []domain.ArticleSummary {
	out := make([]domain.ArticleSummary, n)
	for i := range out {
		out[i] = summary(fmt.Sprint(i + 1))
	}
	return out
}

func newIngestor(table ports.Table, content ports.ContentExtractor, keys domain.KeyFields, batch int) *Ingestor {
	return NewIngestor(IngestorDeps{
		Table:     table,
		Content:   content,
		Layout:    DefaultLayout(),
		KeyFields: keys,
		BatchSize: batch,
		Workers:   3,
	})
}

func dataRows(table *memtable.Table, sheet string) [][]string {
	rows := table.Rows(sheet)
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}

func TestIngestSkipsKnownArticles(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	keys := domain.KeyFields{Title: true}
	known := summary("1")
	_, err := table.AppendRows(context.Background(), DefaultLayout().processedData(), [][]string{markerRow(keys.Marker(known))})
	if err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	content := &fakeContent{}
	ingestor := newIngestor(table, content, keys, 10)

	result, err := ingestor.Ingest(context.Background(), []domain.ArticleSummary{known, summary("2"), summary("3")})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if result.NewCount != 2 || result.Known != 1 {
		t.Fatalf("expected 2 new and 1 known, got %+v", result)
	}
	records := dataRows(table, "Articles")
	markers := dataRows(table, "Processed")
	if len(records) != 2 || len(markers) != 3 {
		t.Fatalf("expected 2 records and 3 markers (1 seeded), got %d and %d", len(records), len(markers))
	}
	if result.CellsWritten != 2*7+2*3 {
		t.Fatalf("unexpected cells written: %d", result.CellsWritten)
	}
	if len(content.calls) != 2 {
		t.Fatalf("expected body fetch only for new articles, got %v", content.calls)
	}

	rec := records[0]
	if rec[0] != "Новина 2" || rec[1] != "https://babel.ua/news/2" || rec[2] != "2025-11-08T10:00:00Z" {
		t.Fatalf("unexpected record row: %v", rec)
	}
	if rec[3] != "body of https://babel.ua/news/2" || rec[4] != domain.LabelUnpublished {
		t.Fatalf("unexpected record body/status: %v", rec)
	}
	if markers[1][0] != "https://babel.ua/news/2" || markers[1][1] != "Новина 2" || markers[1][2] != "" {
		t.Fatalf("unexpected marker row: %v", markers[1])
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	ingestor := newIngestor(table, &fakeContent{}, domain.KeyFields{Title: true, PublishedAt: true}, 4)
	candidates := summaries(9)

	first, err := ingestor.Ingest(context.Background(), candidates)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	if first.NewCount != 9 || first.Batches != 3 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := ingestor.Ingest(context.Background(), candidates)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if second.NewCount != 0 || second.CellsWritten != 0 {
		t.Fatalf("expected nothing new on second run, got %+v", second)
	}
	if n := len(dataRows(table, "Articles")); n != 9 {
		t.Fatalf("expected 9 records, got %d", n)
	}
}

func TestIngestUsesSentinelBodyOnFetchFailure(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	content := &fakeContent{errs: map[string]error{
		"https://babel.ua/news/2": &domain.FetchError{URL: "https://babel.ua/news/2", Err: errors.New("dial tcp: connection refused")},
		"https://babel.ua/news/3": &domain.FetchError{URL: "https://babel.ua/news/3", StatusCode: 404},
	}}
	ingestor := newIngestor(table, content, domain.KeyFields{}, 10)

	result, err := ingestor.Ingest(context.Background(), summaries(3))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.NewCount != 3 || result.Degraded != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	records := dataRows(table, "Articles")
	if records[1][3] != "content unavailable: network error" {
		t.Fatalf("unexpected sentinel: %q", records[1][3])
	}
	if records[2][3] != "content unavailable: http status 404" {
		t.Fatalf("unexpected sentinel: %q", records[2][3])
	}
}

// countingTable records the row count of every append per sheet.
type countingTable struct {
	*memtable.Table
	mu      sync.Mutex
	appends map[string][]int
}

func (c *countingTable) AppendRows(ctx context.Context, rng ports.Range, rows [][]string) (int, error) {
	c.mu.Lock()
	c.appends[rng.Sheet] = append(c.appends[rng.Sheet], len(rows))
	c.mu.Unlock()
	return c.Table.AppendRows(ctx, rng, rows)
}

func TestIngestBatchesPairRecordsWithMarkers(t *testing.T) {
	t.Parallel()

	table := &countingTable{Table: newTable(t), appends: map[string][]int{}}
	ingestor := newIngestor(table, &fakeContent{}, domain.KeyFields{}, 10)

	result, err := ingestor.Ingest(context.Background(), summaries(23))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Batches != 3 {
		t.Fatalf("expected 3 batches, got %d", result.Batches)
	}

	records, markers := table.appends["Articles"], table.appends["Processed"]
	want := []int{10, 10, 3}
	if len(records) != len(want) || len(markers) != len(want) {
		t.Fatalf("unexpected append calls: records %v markers %v", records, markers)
	}
	for i := range want {
		if records[i] != want[i] || markers[i] != want[i] {
			t.Fatalf("batch %d: records %d markers %d, want %d", i, records[i], markers[i], want[i])
		}
	}
}

func TestIngestRecoversFromPartialBatch(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	markerAppends := 0
	table.FailOn = func(op string, rng ports.Range) error {
		if op == "append" && rng.Sheet == "Processed" {
			markerAppends++
			if markerAppends == 2 {
				return errors.New("quota exceeded")
			}
		}
		return nil
	}
	keys := domain.KeyFields{}
	candidates := summaries(15)

	result, err := newIngestor(table, &fakeContent{}, keys, 10).Ingest(context.Background(), candidates)
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if storeErr.Op != "append" || storeErr.Range != "Processed!A2:C" {
		t.Fatalf("unexpected store error: %+v", storeErr)
	}
	if result.NewCount != 10 || result.Batches != 1 {
		t.Fatalf("expected first batch committed only, got %+v", result)
	}
	if records := dataRows(table, "Articles"); len(records) != 15 {
		t.Fatalf("expected the in-flight records to be written, got %d", len(records))
	}

	table.FailOn = nil
	retry, err := newIngestor(table, &fakeContent{}, keys, 10).Ingest(context.Background(), candidates)
	if err != nil {
		t.Fatalf("retry Ingest: %v", err)
	}
	if retry.NewCount != 5 {
		t.Fatalf("expected the 5 unmarked articles to be re-ingested, got %+v", retry)
	}
	if markers := dataRows(table, "Processed"); len(markers) != 15 {
		t.Fatalf("expected 15 markers after recovery, got %d", len(markers))
	}
}

func TestIngestIdentityKeyModes(t *testing.T) {
	t.Parallel()

	retitled := summary("1")
	retitled.Title = "Оновлений заголовок"

	cases := []struct {
		name    string
		keys    domain.KeyFields
		wantNew int
	}{
		{name: "url only", keys: domain.KeyFields{}, wantNew: 0},
		{name: "title and url", keys: domain.KeyFields{Title: true}, wantNew: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			table := newTable(t)
			ingestor := newIngestor(table, &fakeContent{}, tc.keys, 10)
			if _, err := ingestor.Ingest(context.Background(), []domain.ArticleSummary{summary("1")}); err != nil {
				t.Fatalf("seed Ingest: %v", err)
			}

			result, err := ingestor.Ingest(context.Background(), []domain.ArticleSummary{retitled})
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if result.NewCount != tc.wantNew {
				t.Fatalf("expected %d new, got %d", tc.wantNew, result.NewCount)
			}
		})
	}
}

func TestIngestDropsRepeatedCandidates(t *testing.T) {
	t.Parallel()

	table := newTable(t)
	ingestor := newIngestor(table, &fakeContent{}, domain.KeyFields{}, 10)

	result, err := ingestor.Ingest(context.Background(), []domain.ArticleSummary{summary("1"), summary("2"), summary("1")})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.NewCount != 2 {
		t.Fatalf("expected 2 new, got %d", result.NewCount)
	}
	if markers := dataRows(table, "Processed"); len(markers) != 2 {
		t.Fatalf("expected unique markers, got %d", len(markers))
	}
}

func TestSentinelBody(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{err: &domain.FetchError{StatusCode: 500}, want: "content unavailable: http status 500"},
		{err: &domain.FetchError{Err: errors.New("reset")}, want: "content unavailable: network error"},
		{err: fmt.Errorf("wrap: %w", context.DeadlineExceeded), want: "content unavailable: timeout"},
		{err: errors.New("no container"), want: "content unavailable: extraction failed"},
	}
	for _, tc := range cases {
		if got := SentinelBody(tc.err); got != tc.want {
			t.Fatalf("SentinelBody(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
