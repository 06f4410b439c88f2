package usecase

import (
	"context"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// ProcessedSet is the run-start snapshot of ingested identity keys. It is
// the only source of truth for "already seen"; the articles sheet is never
// consulted for dedup.
type ProcessedSet struct {
	fields domain.KeyFields
	keys   map[domain.IdentityKey]struct{}
}

// LoadProcessedSet reads every marker row once.
func LoadProcessedSet(ctx context.Context, table ports.Table, layout Layout, fields domain.KeyFields) (*ProcessedSet, error) {
	rng := layout.processedData()
	rows, err := table.GetRange(ctx, rng)
	if err != nil {
		return nil, &domain.StoreError{Op: "get", Range: rng.String(), Err: err}
	}
	return NewProcessedSet(fields, rows), nil
}

// NewProcessedSet builds a snapshot from marker rows.
func NewProcessedSet(fields domain.KeyFields, rows [][]string) *ProcessedSet {
	set := &ProcessedSet{fields: fields, keys: make(map[domain.IdentityKey]struct{}, len(rows))}
	for _, row := range rows {
		marker := parseMarker(row)
		if marker.Empty() {
			continue
		}
		set.keys[fields.KeyOfMarker(marker)] = struct{}{}
	}
	return set
}

// Contains reports whether key was ingested before the snapshot was taken.
func (p *ProcessedSet) Contains(key domain.IdentityKey) bool {
	_, ok := p.keys[key]
	return ok
}

// Seen reports whether the summary's identity key is in the snapshot.
func (p *ProcessedSet) Seen(s domain.ArticleSummary) bool {
	return p.Contains(p.fields.KeyOf(s))
}

// Len is the number of distinct keys.
func (p *ProcessedSet) Len() int {
	return len(p.keys)
}
