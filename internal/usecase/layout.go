package usecase

import (
	"strconv"
	"strings"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// Layout names the two sheets and fixes their column order:
//
//	Articles:  A Title | B URL | C PublishedAt | D Body | E Status | F Relevance | G CrossPost
//	Processed: A URL | B Title | C PublishedAt
type Layout struct {
	Articles  string
	Processed string
}

// DefaultLayout matches the sheet names created by earlier deployments.
func DefaultLayout() Layout {
	return Layout{Articles: "Articles", Processed: "Processed"}
}

const (
	firstDataRow = 2

	articlesFirstCol  = "A"
	articlesLastCol   = "G"
	reviewFirstCol    = "E"
	statusCol         = "E"
	processedFirstCol = "A"
	processedLastCol  = "C"

	// Sheets rejects cells above 50000 characters.
	maxCellRunes = 49000
)

// ArticlesHeader is written into row 1 of the articles sheet.
var ArticlesHeader = []string{"Title", "URL", "PublishedAt", "Body", "Status", "Relevance", "CrossPost"}

// ProcessedHeader is written into row 1 of the processed markers sheet.
var ProcessedHeader = []string{"URL", "Title", "PublishedAt"}

func (l Layout) articlesData() ports.Range {
	return ports.Columns(l.Articles, articlesFirstCol, articlesLastCol, firstDataRow)
}

func (l Layout) processedData() ports.Range {
	return ports.Columns(l.Processed, processedFirstCol, processedLastCol, firstDataRow)
}

func (l Layout) reviewCells(row int) ports.Range {
	return ports.Row(l.Articles, reviewFirstCol, articlesLastCol, row)
}

func (l Layout) statusCell(row int) ports.Range {
	return ports.Row(l.Articles, statusCol, statusCol, row)
}

func recordRow(s domain.ArticleSummary, body string) []string {
	return []string{
		s.Title,
		s.URL,
		domain.FormatTime(s.PublishedAt),
		truncateRunes(body, maxCellRunes),
		domain.StatusUnpublished.Label(),
		"",
		"",
	}
}

func markerRow(m domain.ProcessedMarker) []string {
	return []string{m.URL, m.Title, m.PublishedAt}
}

func parseMarker(row []string) domain.ProcessedMarker {
	return domain.ProcessedMarker{
		URL:         cell(row, 0),
		Title:       cell(row, 1),
		PublishedAt: cell(row, 2),
	}
}

// parseRecord maps a data row back to a record; Row is the sheet row index.
func parseRecord(row []string, rowIndex int) domain.ArticleRecord {
	rec := domain.ArticleRecord{
		Row:    rowIndex,
		Title:  cell(row, 0),
		URL:    cell(row, 1),
		Body:   cell(row, 3),
		Status: domain.ParseStatus(cell(row, 4)),
	}
	if t, err := domain.ParseTime(cell(row, 2)); err == nil {
		rec.PublishedAt = t
	}
	if raw := strings.TrimSpace(cell(row, 5)); raw != "" {
		if score, err := strconv.Atoi(raw); err == nil {
			rec.Relevance = score
			rec.HasRelevance = true
		}
	}
	rec.CrossPost = strings.TrimSpace(cell(row, 6)) != ""
	return rec
}

func reviewValues(d domain.Decision, crossPostLabel string) []string {
	flag := ""
	if d.CrossPost {
		flag = crossPostLabel
	}
	return []string{d.Status.Label(), strconv.Itoa(d.Relevance), flag}
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
