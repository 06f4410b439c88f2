package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/logging"
	"NewsHarvester/internal/ports"
)

const (
	defaultBatchSize = 10
	defaultWorkers   = 5

	sentinelPrefix = "content unavailable: "
)

// IngestResult summarizes one ingestion for observability.
type IngestResult struct {
	NewCount     int `json:"newCount"`
	CellsWritten int `json:"cellsWritten"`
	Degraded     int `json:"degraded"`
	Batches      int `json:"batches"`
	Known        int `json:"known"`
}

// IngestorDeps wires the collaborators of an Ingestor.
type IngestorDeps struct {
	Table     ports.Table
	Content   ports.ContentExtractor
	Layout    Layout
	KeyFields domain.KeyFields
	BatchSize int
	Workers   int
	Logger    *slog.Logger
}

// Ingestor persists the candidates that are absent from the marker snapshot.
type Ingestor struct {
	table     ports.Table
	content   ports.ContentExtractor
	layout    Layout
	keys      domain.KeyFields
	batchSize int
	workers   int
	logger    *slog.Logger
}

// NewIngestor constructs the ingestion component.
func NewIngestor(deps IngestorDeps) *Ingestor {
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	if deps.Workers <= 0 {
		deps.Workers = defaultWorkers
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Ingestor{
		table:     deps.Table,
		content:   deps.Content,
		layout:    deps.Layout,
		keys:      deps.KeyFields,
		batchSize: deps.BatchSize,
		workers:   deps.Workers,
		logger:    deps.Logger,
	}
}

// Ingest takes the marker snapshot, enriches new candidates with body text and
// appends them batch by batch. Each batch writes its article rows and then
// its marker rows. On a store failure the error is a *domain.StoreError and
// the result covers the batches committed before it.
func (i *Ingestor) Ingest(ctx context.Context, candidates []domain.ArticleSummary) (IngestResult, error) {
	var result IngestResult
	if i.table == nil {
		return result, fmt.Errorf("ingestor has no table")
	}

	processed, err := LoadProcessedSet(ctx, i.table, i.layout, i.keys)
	if err != nil {
		return result, err
	}

	fresh := i.filterNew(processed, candidates)
	result.Known = len(candidates) - len(fresh)
	i.logger.Info("candidates filtered",
		"candidates", len(candidates),
		"processed_keys", processed.Len(),
		"new", len(fresh),
		"identity_key", i.keys.Mode(),
	)
	if len(fresh) == 0 {
		return result, nil
	}

	bodies, degraded, err := i.fetchBodies(ctx, fresh)
	if err != nil {
		return result, err
	}
	result.Degraded = degraded

	for start := 0; start < len(fresh); start += i.batchSize {
		end := min(start+i.batchSize, len(fresh))
		cells, err := i.writeBatch(ctx, fresh[start:end], bodies[start:end])
		result.CellsWritten += cells
		if err != nil {
			i.logger.Error("batch write failed", "batch", result.Batches+1, "committed", result.NewCount, "error", err)
			return result, err
		}
		result.Batches++
		result.NewCount += end - start
		i.logger.Debug("batch committed", "batch", result.Batches, "articles", end-start, "cells", cells)
	}

	return result, nil
}

// filterNew drops known keys and repeated keys inside the candidate list.
func (i *Ingestor) filterNew(processed *ProcessedSet, candidates []domain.ArticleSummary) []domain.ArticleSummary {
	local := make(map[domain.IdentityKey]struct{}, len(candidates))
	fresh := make([]domain.ArticleSummary, 0, len(candidates))
	for _, c := range candidates {
		key := i.keys.KeyOf(c)
		if processed.Contains(key) {
			continue
		}
		if _, dup := local[key]; dup {
			continue
		}
		local[key] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh
}

// fetchBodies runs content extraction with bounded parallelism. Per-article
// failures become sentinel bodies; only cancellation aborts.
func (i *Ingestor) fetchBodies(ctx context.Context, articles []domain.ArticleSummary) ([]string, int, error) {
	bodies := make([]string, len(articles))
	failed := make([]bool, len(articles))

	if i.content == nil {
		for idx := range articles {
			bodies[idx] = SentinelBody(errNoExtractor)
		}
		return bodies, len(articles), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for idx, article := range articles {
		g.Go(func() error {
			body, err := i.content.Extract(gctx, article.URL)
			if err != nil {
				i.logger.Warn("content fetch degraded", "url", article.URL, "error", err)
				bodies[idx] = SentinelBody(err)
				failed[idx] = true
				return nil
			}
			bodies[idx] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("content fetch interrupted: %w", err)
	}

	degraded := 0
	for _, f := range failed {
		if f {
			degraded++
		}
	}
	return bodies, degraded, nil
}

func (i *Ingestor) writeBatch(ctx context.Context, batch []domain.ArticleSummary, bodies []string) (int, error) {
	records := make([][]string, len(batch))
	markers := make([][]string, len(batch))
	for idx, s := range batch {
		records[idx] = recordRow(s, bodies[idx])
		markers[idx] = markerRow(i.keys.Marker(s))
	}

	recordRange := i.layout.articlesData()
	recordCells, err := i.table.AppendRows(ctx, recordRange, records)
	if err != nil {
		return 0, &domain.StoreError{Op: "append", Range: recordRange.String(), Err: err}
	}

	markerRange := i.layout.processedData()
	markerCells, err := i.table.AppendRows(ctx, markerRange, markers)
	if err != nil {
		return recordCells, &domain.StoreError{Op: "append", Range: markerRange.String(), Err: err}
	}

	return recordCells + markerCells, nil
}

var errNoExtractor = errors.New("no content extractor configured")

// SentinelBody is the deterministic body stored when extraction fails. The
// reason depends only on the failure class, never on URLs or addresses.
func SentinelBody(err error) string {
	var fetchErr *domain.FetchError
	reason := "extraction failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, errNoExtractor):
		reason = "no extractor"
	case errors.As(err, &fetchErr) && fetchErr.StatusCode != 0:
		reason = fmt.Sprintf("http status %d", fetchErr.StatusCode)
	case errors.As(err, &fetchErr):
		reason = "network error"
	}
	return sentinelPrefix + reason
}
