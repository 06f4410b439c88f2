package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/logging"
	"NewsHarvester/internal/ports"
	"NewsHarvester/internal/scanner"
)

// Mode selects how a run treats existing data.
type Mode string

const (
	// ModeInitial resets both sheets and crawls back to the initial cutoff.
	ModeInitial Mode = "initial"
	// ModeIncremental keeps existing data and crawls back a lookback window.
	ModeIncremental Mode = "incremental"
)

// ParseMode accepts "initial" and "incremental"; empty means incremental.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeInitial:
		return ModeInitial, nil
	case ModeIncremental, "":
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("unknown run mode %q", raw)
	}
}

// Crawler is the listing walk consumed by the Runner.
type Crawler interface {
	Crawl(ctx context.Context, stop scanner.StopCondition) ([]domain.ArticleSummary, error)
}

// Recorder receives run outcomes; internal/metrics implements it.
type Recorder interface {
	ObserveRun(mode, outcome string, elapsed time.Duration)
	ObserveIngest(newCount, cells, degraded int)
	ObserveReview(published, rejected, crossPosted, degraded int)
}

// RunReport is returned to trigger callers.
type RunReport struct {
	RunID    string        `json:"runId"`
	Mode     Mode          `json:"mode"`
	Cutoff   time.Time     `json:"cutoff,omitzero"`
	Crawled  int           `json:"crawled"`
	Ingest   IngestResult  `json:"ingest"`
	Review   *ReviewResult `json:"review,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Message is the human summary used by the CLI and HTTP trigger.
func (r RunReport) Message() string {
	msg := fmt.Sprintf("Scraping completed (%s): crawled %d, new %d, cells written %d",
		r.Mode, r.Crawled, r.Ingest.NewCount, r.Ingest.CellsWritten)
	if r.Review != nil {
		msg += fmt.Sprintf(", reviewed %d (published %d, rejected %d, cross-post %d)",
			r.Review.Visited, r.Review.Published, r.Review.Rejected, r.Review.CrossPosted)
	}
	return msg
}

// RunnerDeps wires the Runner. At most one run may be in flight per sheet
// pair; the caller's scheduler guarantees it.
type RunnerDeps struct {
	Table               ports.Table
	Crawler             Crawler
	Ingestor            *Ingestor
	Reviewer            *Reviewer
	Layout              Layout
	InitialCutoff       time.Time
	IncrementalLookback time.Duration
	MaxPages            int
	ReviewAfterIngest   bool
	Recorder            Recorder
	Logger              *slog.Logger
}

// Runner executes one trigger invocation end to end.
type Runner struct {
	deps RunnerDeps
	now  func() time.Time
}

// NewRunner builds the top-level run orchestration.
func NewRunner(deps RunnerDeps) *Runner {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Runner{deps: deps, now: time.Now}
}

// Run crawls, ingests and optionally reviews. Initial mode clears both sheets
// before the marker snapshot is taken.
func (r *Runner) Run(ctx context.Context, mode Mode) (report RunReport, err error) {
	started := r.now()
	report = RunReport{RunID: uuid.NewString(), Mode: mode}
	log := r.deps.Logger.With("run_id", report.RunID, "mode", string(mode))

	defer func() {
		report.Duration = r.now().Sub(started)
		outcome := "success"
		if err != nil {
			outcome = "failure"
			log.Error("run failed", "error", err, "duration", report.Duration)
		} else {
			log.Info("run finished", "summary", report.Message(), "duration", report.Duration)
		}
		if rec := r.deps.Recorder; rec != nil {
			rec.ObserveRun(string(mode), outcome, report.Duration)
			rec.ObserveIngest(report.Ingest.NewCount, report.Ingest.CellsWritten, report.Ingest.Degraded)
			if report.Review != nil {
				rec.ObserveReview(report.Review.Published, report.Review.Rejected, report.Review.CrossPosted, report.Review.Degraded)
			}
		}
	}()

	if r.deps.Table == nil || r.deps.Crawler == nil || r.deps.Ingestor == nil {
		return report, fmt.Errorf("runner is not configured")
	}

	if err := r.prepareSheets(ctx, mode); err != nil {
		return report, err
	}

	stop := scanner.StopCondition{MaxPages: r.deps.MaxPages}
	switch mode {
	case ModeInitial:
		stop.Cutoff = r.deps.InitialCutoff
	case ModeIncremental:
		if r.deps.IncrementalLookback > 0 {
			stop.Cutoff = started.Add(-r.deps.IncrementalLookback).UTC()
		}
	default:
		return report, fmt.Errorf("unknown run mode %q", mode)
	}
	report.Cutoff = stop.Cutoff
	log.Info("run started", "cutoff", domain.FormatTime(stop.Cutoff), "max_pages", stop.MaxPages)

	candidates, err := r.deps.Crawler.Crawl(ctx, stop)
	if err != nil {
		return report, err
	}
	report.Crawled = len(candidates)

	report.Ingest, err = r.deps.Ingestor.Ingest(ctx, candidates)
	if err != nil {
		return report, err
	}

	if r.deps.ReviewAfterIngest && r.deps.Reviewer != nil {
		review, err := r.deps.Reviewer.Review(ctx)
		report.Review = &review
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

// Review runs a standalone review pass.
func (r *Runner) Review(ctx context.Context) (ReviewResult, error) {
	if r.deps.Reviewer == nil || r.deps.Table == nil {
		return ReviewResult{}, fmt.Errorf("reviewer is not configured")
	}
	if err := r.ensure(ctx); err != nil {
		return ReviewResult{}, err
	}
	result, err := r.deps.Reviewer.Review(ctx)
	if rec := r.deps.Recorder; rec != nil {
		rec.ObserveReview(result.Published, result.Rejected, result.CrossPosted, result.Degraded)
	}
	return result, err
}

func (r *Runner) prepareSheets(ctx context.Context, mode Mode) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	if mode != ModeInitial {
		return nil
	}

	layout := r.deps.Layout
	r.deps.Logger.Warn("initial mode: clearing sheets", "articles", layout.Articles, "processed", layout.Processed)
	if err := r.deps.Table.ClearSheet(ctx, layout.Articles, ArticlesHeader); err != nil {
		return &domain.StoreError{Op: "clear", Range: layout.Articles, Err: err}
	}
	if err := r.deps.Table.ClearSheet(ctx, layout.Processed, ProcessedHeader); err != nil {
		return &domain.StoreError{Op: "clear", Range: layout.Processed, Err: err}
	}
	return nil
}

func (r *Runner) ensure(ctx context.Context) error {
	layout := r.deps.Layout
	if err := r.deps.Table.EnsureSheet(ctx, layout.Articles, ArticlesHeader); err != nil {
		return &domain.StoreError{Op: "ensure", Range: layout.Articles, Err: err}
	}
	if err := r.deps.Table.EnsureSheet(ctx, layout.Processed, ProcessedHeader); err != nil {
		return &domain.StoreError{Op: "ensure", Range: layout.Processed, Err: err}
	}
	return nil
}
