package parser

import (
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// ListingSelectors locate article entries inside a listing page.
type ListingSelectors struct {
	Item       string
	Link       string
	Title      string
	Date       string
	DateAttr   string // empty reads the element text
	DateLayout string
}

// ListingExtractor turns listing markup into article summaries.
type ListingExtractor struct {
	base *url.URL
	sel  ListingSelectors
}

var _ ports.ArticleExtractor = (*ListingExtractor)(nil)

// NewListingExtractor resolves relative links against baseURL.
func NewListingExtractor(baseURL string, sel ListingSelectors) (*ListingExtractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %s: %w", baseURL, err)
	}
	if sel.Item == "" {
		return nil, fmt.Errorf("item selector is required")
	}
	if sel.Link == "" {
		sel.Link = "a[href]"
	}
	if sel.DateLayout == "" {
		sel.DateLayout = time.RFC3339
	}
	return &ListingExtractor{base: base, sel: sel}, nil
}

// Extract parses the document eagerly and yields entries lazily, so a
// consumer that stops early never inspects the remaining entries.
func (e *ListingExtractor) Extract(r io.Reader) (iter.Seq[domain.ArticleSummary], error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	items := doc.Find(e.sel.Item)
	return func(yield func(domain.ArticleSummary) bool) {
		items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
			summary, ok := e.parseItem(item)
			if !ok {
				return true
			}
			return yield(summary)
		})
	}, nil
}

func (e *ListingExtractor) parseItem(item *goquery.Selection) (domain.ArticleSummary, bool) {
	link := item
	if !item.Is(e.sel.Link) {
		link = item.Find(e.sel.Link).First()
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return domain.ArticleSummary{}, false
	}
	abs, err := e.canonical(href)
	if err != nil {
		return domain.ArticleSummary{}, false
	}

	var title string
	if e.sel.Title != "" {
		title = NormalizeText(item.Find(e.sel.Title).First().Text())
	}
	if title == "" {
		title = NormalizeText(link.Text())
	}
	if title == "" {
		return domain.ArticleSummary{}, false
	}

	return domain.ArticleSummary{
		Title:       title,
		URL:         abs,
		PublishedAt: e.parseDate(item),
	}, true
}

func (e *ListingExtractor) parseDate(item *goquery.Selection) time.Time {
	if e.sel.Date == "" {
		return time.Time{}
	}
	node := item.Find(e.sel.Date).First()
	if node.Length() == 0 {
		return time.Time{}
	}

	raw := ""
	if e.sel.DateAttr != "" {
		raw, _ = node.Attr(e.sel.DateAttr)
	}
	if strings.TrimSpace(raw) == "" {
		raw = node.Text()
	}
	raw = NormalizeText(raw)
	if raw == "" {
		return time.Time{}
	}

	if parsed, err := time.Parse(e.sel.DateLayout, raw); err == nil {
		return parsed.UTC()
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC()
	}
	return time.Time{}
}

// canonical resolves href to an absolute URL without fragment.
func (e *ListingExtractor) canonical(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	abs := e.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", abs.Scheme)
	}
	abs.Fragment = ""
	return abs.String(), nil
}

// NormalizeText replaces non-breaking spaces, collapses whitespace runs and trims.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
