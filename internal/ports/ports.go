package ports

import (
	"context"
	"io"
	"iter"
	"time"

	"NewsHarvester/internal/domain"
)

// PageFetcher retrieves one listing page by 1-based index.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (io.ReadCloser, error)
}

// ArticleExtractor parses listing markup into a lazy summary sequence.
type ArticleExtractor interface {
	Extract(r io.Reader) (iter.Seq[domain.ArticleSummary], error)
}

// ContentExtractor fetches an article page and returns its body text.
type ContentExtractor interface {
	Extract(ctx context.Context, articleURL string) (string, error)
}

// Table is the tabular store consumed by ingestion and review.
// AppendRows returns the number of cells written.
type Table interface {
	GetRange(ctx context.Context, rng Range) ([][]string, error)
	AppendRows(ctx context.Context, rng Range, rows [][]string) (int, error)
	UpdateRow(ctx context.Context, rng Range, values []string) error
	EnsureSheet(ctx context.Context, name string, header []string) error
	ClearSheet(ctx context.Context, name string, header []string) error
}

// RelevanceJudge classifies an article by title and truncated body.
type RelevanceJudge interface {
	Judge(ctx context.Context, title, body string) (domain.Judgment, error)
}

// CrossPoster delivers flagged articles to a secondary channel.
type CrossPoster interface {
	CrossPost(ctx context.Context, record domain.ArticleRecord) error
}

// Scheduler controls when runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
