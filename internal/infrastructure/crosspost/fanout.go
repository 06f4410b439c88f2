package crosspost

import (
	"context"
	"errors"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// Fanout delivers to every channel and joins their errors.
type Fanout []ports.CrossPoster

var _ ports.CrossPoster = Fanout(nil)

// CrossPost tries every channel even when an earlier one fails.
func (f Fanout) CrossPost(ctx context.Context, record domain.ArticleRecord) error {
	var errs []error
	for _, p := range f {
		if err := p.CrossPost(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
