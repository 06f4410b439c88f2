package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/logging"
	"NewsHarvester/internal/ports"
)

// StopCondition bounds a crawl. A zero Cutoff leaves only the empty-page
// condition, which walks the whole listing.
type StopCondition struct {
	Cutoff   time.Time
	MaxPages int
}

// Crawler walks listing pages from page 1 until the stop condition holds.
// The listing is assumed to be reverse-chronological.
type Crawler struct {
	fetcher   ports.PageFetcher
	extractor ports.ArticleExtractor
	logger    *slog.Logger
}

// NewCrawler wires the page fetcher and the listing extractor.
func NewCrawler(fetcher ports.PageFetcher, extractor ports.ArticleExtractor, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Crawler{fetcher: fetcher, extractor: extractor, logger: logger}
}

// Crawl returns every summary up to the first one older than the cutoff.
// Any page failure aborts the crawl with a *domain.CrawlError and no results.
func (c *Crawler) Crawl(ctx context.Context, stop StopCondition) ([]domain.ArticleSummary, error) {
	if c.fetcher == nil || c.extractor == nil {
		return nil, fmt.Errorf("crawler is not configured")
	}

	var results []domain.ArticleSummary
	for page := 1; ; page++ {
		if stop.MaxPages > 0 && page > stop.MaxPages {
			c.logger.Warn("page limit reached", "max_pages", stop.MaxPages, "collected", len(results))
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, &domain.CrawlError{Page: page, Err: err}
		}

		collected, seen, reachedCutoff, err := c.scanPage(ctx, page, stop.Cutoff)
		if err != nil {
			return nil, &domain.CrawlError{Page: page, Err: err}
		}
		c.logger.Debug("page scanned", "page", page, "seen", seen, "collected", len(collected), "cutoff_reached", reachedCutoff)

		if seen == 0 {
			break
		}
		results = append(results, collected...)
		if reachedCutoff {
			break
		}
	}

	c.logger.Info("crawl finished", "articles", len(results))
	return results, nil
}

func (c *Crawler) scanPage(ctx context.Context, page int, cutoff time.Time) ([]domain.ArticleSummary, int, bool, error) {
	body, err := c.fetcher.FetchPage(ctx, page)
	if err != nil {
		return nil, 0, false, err
	}
	defer body.Close()

	seq, err := c.extractor.Extract(body)
	if err != nil {
		return nil, 0, false, err
	}

	var (
		collected []domain.ArticleSummary
		seen      int
	)
	for summary := range seq {
		seen++
		if !cutoff.IsZero() && summary.HasPublishedAt() && summary.PublishedAt.Before(cutoff) {
			return collected, seen, true, nil
		}
		collected = append(collected, summary)
	}
	return collected, seen, false, nil
}
