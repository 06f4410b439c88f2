package domain

import (
	"fmt"
	"strings"
	"time"
)

// ArticleSummary is a single entry of a listing page.
type ArticleSummary struct {
	Title       string
	URL         string
	PublishedAt time.Time // zero when the listing carries no date
}

// HasPublishedAt reports whether the listing exposed a publish time.
func (s ArticleSummary) HasPublishedAt() bool {
	return !s.PublishedAt.IsZero()
}

// ArticleRecord is a stored article row. Row is the 1-based store row index.
type ArticleRecord struct {
	Row          int
	Title        string
	URL          string
	PublishedAt  time.Time
	Body         string
	Status       Status
	Relevance    int
	HasRelevance bool
	CrossPost    bool
}

// Status enumerates the review workflow states.
type Status int

const (
	StatusUnknown Status = iota
	StatusUnpublished
	StatusPublished
	StatusRejected
)

// Labels used in the store cells.
const (
	LabelUnpublished = "Неопубліковано"
	LabelPublished   = "Опубліковано"
	LabelRejected    = "Забраковано"
)

// Label returns the store representation of the status.
func (s Status) Label() string {
	switch s {
	case StatusUnpublished:
		return LabelUnpublished
	case StatusPublished:
		return LabelPublished
	case StatusRejected:
		return LabelRejected
	default:
		return ""
	}
}

func (s Status) String() string {
	switch s {
	case StatusUnpublished:
		return "unpublished"
	case StatusPublished:
		return "published"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Final reports whether no further transition may leave s.
func (s Status) Final() bool {
	return s == StatusPublished || s == StatusRejected
}

// ParseStatus maps a store cell back to a Status. An empty cell counts as
// Unpublished since freshly appended rows always carry the label.
func ParseStatus(cell string) Status {
	switch strings.TrimSpace(cell) {
	case LabelUnpublished, "":
		return StatusUnpublished
	case LabelPublished:
		return StatusPublished
	case LabelRejected:
		return StatusRejected
	default:
		return StatusUnknown
	}
}

// CanTransition enforces Unpublished -> {Published, Rejected}.
func CanTransition(from, to Status) bool {
	return from == StatusUnpublished && to.Final()
}

// Judgment is the relevance judge verdict for one article.
type Judgment struct {
	Relevant bool
	Score    int
}

// Decision is the outcome of classifying a single record.
type Decision struct {
	Status    Status
	Relevance int
	CrossPost bool
}

// Decide applies the publish rules to a judgment. Relevant articles below
// minScore are rejected; relevant articles at or above crossPostThreshold are
// flagged for cross-posting.
func Decide(j Judgment, minScore, crossPostThreshold int) Decision {
	if !j.Relevant || j.Score < minScore {
		return Decision{Status: StatusRejected, Relevance: 0}
	}
	return Decision{
		Status:    StatusPublished,
		Relevance: j.Score,
		CrossPost: j.Score >= crossPostThreshold,
	}
}

// TimeLayout is the cell format for publish timestamps.
const TimeLayout = time.RFC3339

// FormatTime renders t for a store cell; zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(cell string) (time.Time, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, cell)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", cell, err)
	}
	return t.UTC(), nil
}
