package domain

import (
	"fmt"
	"strings"
)

// KeyFields selects which summary fields compose the dedup identity.
// The same value must drive marker writing and marker reading.
type KeyFields struct {
	Title       bool
	PublishedAt bool
}

// Supported identity key modes.
const (
	KeyModeURL          = "url"
	KeyModeTitleURL     = "title+url"
	KeyModeTitleURLDate = "title+url+date"
)

// ParseKeyFields resolves a configured key mode.
func ParseKeyFields(mode string) (KeyFields, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case KeyModeURL:
		return KeyFields{}, nil
	case KeyModeTitleURL:
		return KeyFields{Title: true}, nil
	case KeyModeTitleURLDate:
		return KeyFields{Title: true, PublishedAt: true}, nil
	default:
		return KeyFields{}, fmt.Errorf("unknown identity key mode %q", mode)
	}
}

// Mode returns the configuration name of the key composition.
func (k KeyFields) Mode() string {
	switch {
	case k.Title && k.PublishedAt:
		return KeyModeTitleURLDate
	case k.Title:
		return KeyModeTitleURL
	default:
		return KeyModeURL
	}
}

// IdentityKey is the comparable dedup key of an article.
type IdentityKey string

// ProcessedMarker holds the key fields persisted for an ingested article.
// Fields outside the configured key are left empty.
type ProcessedMarker struct {
	URL         string
	Title       string
	PublishedAt string
}

// Marker projects a summary onto the configured key fields.
func (k KeyFields) Marker(s ArticleSummary) ProcessedMarker {
	m := ProcessedMarker{URL: strings.TrimSpace(s.URL)}
	if k.Title {
		m.Title = strings.TrimSpace(s.Title)
	}
	if k.PublishedAt {
		m.PublishedAt = FormatTime(s.PublishedAt)
	}
	return m
}

// KeyOf derives the identity key of a summary.
func (k KeyFields) KeyOf(s ArticleSummary) IdentityKey {
	return k.KeyOfMarker(k.Marker(s))
}

// KeyOfMarker derives the identity key of a stored marker. Fields outside the
// key composition are ignored even when the row carries them.
func (k KeyFields) KeyOfMarker(m ProcessedMarker) IdentityKey {
	parts := []string{strings.TrimSpace(m.URL)}
	if k.Title {
		parts = append(parts, strings.TrimSpace(m.Title))
	}
	if k.PublishedAt {
		parts = append(parts, strings.TrimSpace(m.PublishedAt))
	}
	return IdentityKey(strings.Join(parts, "\x1f"))
}

// Empty reports whether the marker carries no key material at all.
func (m ProcessedMarker) Empty() bool {
	return strings.TrimSpace(m.URL) == "" && strings.TrimSpace(m.Title) == "" && strings.TrimSpace(m.PublishedAt) == ""
}
