package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/logging"
	"NewsHarvester/internal/ports"
)

const (
	defaultCrossPostThreshold = 8
	defaultBodyLimit          = 500
	defaultCrossPostLabel     = "Facebook"
)

// ReviewResult counts the outcome of one review pass.
type ReviewResult struct {
	Pending     int  `json:"pending"`
	Visited     int  `json:"visited"`
	Published   int  `json:"published"`
	Rejected    int  `json:"rejected"`
	CrossPosted int  `json:"crossPosted"`
	Degraded    int  `json:"degraded"`
	Skipped     int  `json:"skipped"`
	Truncated   bool `json:"truncated"`
}

// ReviewerDeps wires the collaborators of a Reviewer.
type ReviewerDeps struct {
	Table   ports.Table
	Judge   ports.RelevanceJudge
	Poster  ports.CrossPoster
	Layout  Layout
	Options ReviewOptions
	Logger  *slog.Logger
}

// ReviewOptions tunes decisions and pacing.
type ReviewOptions struct {
	// CrossPostThreshold of 0 means 8; config validation keeps it in 1..10.
	CrossPostThreshold int
	// MinScore rejects relevant articles scoring below it; 0 publishes all.
	MinScore           int
	CrossPostLabel     string
	BodyLimit          int
	JudgeDelay         time.Duration
	MaxDuration        time.Duration
}

// Reviewer classifies unpublished rows and moves them to a final status.
type Reviewer struct {
	table  ports.Table
	judge  ports.RelevanceJudge
	poster ports.CrossPoster
	layout Layout
	opts   ReviewOptions
	logger *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewReviewer constructs the review workflow.
func NewReviewer(deps ReviewerDeps) *Reviewer {
	opts := deps.Options
	if opts.CrossPostThreshold <= 0 {
		opts.CrossPostThreshold = defaultCrossPostThreshold
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = defaultBodyLimit
	}
	if opts.CrossPostLabel == "" {
		opts.CrossPostLabel = defaultCrossPostLabel
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Reviewer{
		table:  deps.Table,
		judge:  deps.Judge,
		poster: deps.Poster,
		layout: deps.Layout,
		opts:   opts,
		logger: deps.Logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Review visits every Unpublished row at most once. Judge failures degrade to
// Rejected with score 0; store failures abort the pass as *domain.StoreError.
func (r *Reviewer) Review(ctx context.Context) (ReviewResult, error) {
	var result ReviewResult
	if r.table == nil || r.judge == nil {
		return result, fmt.Errorf("reviewer is not configured")
	}

	rng := r.layout.articlesData()
	rows, err := r.table.GetRange(ctx, rng)
	if err != nil {
		return result, &domain.StoreError{Op: "get", Range: rng.String(), Err: err}
	}

	pending := make([]domain.ArticleRecord, 0)
	for i, row := range rows {
		rec := parseRecord(row, firstDataRow+i)
		if rec.Title == "" && rec.URL == "" {
			continue
		}
		if rec.Status == domain.StatusUnpublished {
			pending = append(pending, rec)
		}
	}
	result.Pending = len(pending)
	r.logger.Info("review pass started", "rows", len(rows), "pending", len(pending))

	start := r.now()
	for i, rec := range pending {
		if r.opts.MaxDuration > 0 && r.now().Sub(start) >= r.opts.MaxDuration {
			result.Truncated = true
			r.logger.Warn("review time budget exhausted", "visited", result.Visited, "remaining", len(pending)-i)
			break
		}
		if i > 0 && r.opts.JudgeDelay > 0 {
			if err := r.sleep(ctx, r.opts.JudgeDelay); err != nil {
				return result, err
			}
		}

		if err := r.reviewOne(ctx, rec, &result); err != nil {
			return result, err
		}
	}

	r.logger.Info("review pass finished",
		"visited", result.Visited,
		"published", result.Published,
		"rejected", result.Rejected,
		"cross_posted", result.CrossPosted,
		"degraded", result.Degraded,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (r *Reviewer) reviewOne(ctx context.Context, rec domain.ArticleRecord, result *ReviewResult) error {
	log := r.logger.With("row", rec.Row, "url", rec.URL)

	judgment, err := r.judge.Judge(ctx, rec.Title, truncateRunes(rec.Body, r.opts.BodyLimit))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var judgeErr *domain.JudgeError
		if !errors.As(err, &judgeErr) {
			judgeErr = &domain.JudgeError{Reason: "judge call failed", Err: err}
		}
		log.Warn("judgment degraded to rejection", "error", judgeErr)
		judgment = domain.Judgment{}
		result.Degraded++
	}

	decision := domain.Decide(judgment, r.opts.MinScore, r.opts.CrossPostThreshold)

	current, err := r.currentStatus(ctx, rec.Row)
	if err != nil {
		return err
	}
	if !domain.CanTransition(current, decision.Status) {
		log.Info("row already reviewed, skipping", "status", current.String())
		result.Skipped++
		return nil
	}

	rng := r.layout.reviewCells(rec.Row)
	if err := r.table.UpdateRow(ctx, rng, reviewValues(decision, r.opts.CrossPostLabel)); err != nil {
		return &domain.StoreError{Op: "update", Range: rng.String(), Err: err}
	}
	result.Visited++

	switch decision.Status {
	case domain.StatusPublished:
		result.Published++
	case domain.StatusRejected:
		result.Rejected++
	}
	log.Info("article reviewed", "status", decision.Status.String(), "relevance", decision.Relevance, "cross_post", decision.CrossPost)

	if decision.CrossPost {
		result.CrossPosted++
		if r.poster != nil {
			rec.Status = decision.Status
			rec.Relevance = decision.Relevance
			rec.HasRelevance = true
			rec.CrossPost = true
			if err := r.poster.CrossPost(ctx, rec); err != nil {
				log.Warn("cross-post delivery failed", "error", err)
			}
		}
	}
	return nil
}

// currentStatus re-reads the status cell so a row finalized by a concurrent
// pass is not transitioned again.
func (r *Reviewer) currentStatus(ctx context.Context, row int) (domain.Status, error) {
	rng := r.layout.statusCell(row)
	rows, err := r.table.GetRange(ctx, rng)
	if err != nil {
		return domain.StatusUnknown, &domain.StoreError{Op: "get", Range: rng.String(), Err: err}
	}
	if len(rows) == 0 {
		return domain.ParseStatus(""), nil
	}
	return domain.ParseStatus(cell(rows[0], 0)), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
