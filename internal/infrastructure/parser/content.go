package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

const maxArticleBytes = 5 << 20

// ErrEmptyContent is returned when neither the container nor the fallback yields text.
var ErrEmptyContent = errors.New("article content is empty")

// ContentExtractor fetches article pages and reads the designated container.
type ContentExtractor struct {
	client    *http.Client
	selector  string
	userAgent string
	fallback  bool
}

var _ ports.ContentExtractor = (*ContentExtractor)(nil)

// ContentOptions configures NewContentExtractor.
type ContentOptions struct {
	Selector string
	// Readability enables go-readability when the container is missing.
	Readability bool
	UserAgent   string
}

// NewContentExtractor wires an HTTP client; a nil client gets a 20s timeout.
func NewContentExtractor(client *http.Client, opts ContentOptions) *ContentExtractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &ContentExtractor{
		client:    client,
		selector:  opts.Selector,
		userAgent: opts.UserAgent,
		fallback:  opts.Readability,
	}
}

// Extract downloads articleURL and returns its normalized body text.
func (c *ContentExtractor) Extract(ctx context.Context, articleURL string) (string, error) {
	body, err := fetch(ctx, c.client, articleURL, c.userAgent)
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxArticleBytes))
	if err != nil {
		return "", &domain.FetchError{URL: articleURL, Err: fmt.Errorf("read body: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse article %s: %w", articleURL, err)
	}

	if text := containerText(doc, c.selector); text != "" {
		return text, nil
	}

	if !c.fallback {
		return "", fmt.Errorf("container %q in %s: %w", c.selector, articleURL, ErrEmptyContent)
	}

	pageURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability %s: %w", articleURL, err)
	}
	text := normalizeBlock(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("readability %s: %w", articleURL, ErrEmptyContent)
	}
	return text, nil
}

// containerText joins paragraph texts of the container, falling back to its
// whole text when it holds no paragraphs.
func containerText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	container := doc.Find(selector).First()
	if container.Length() == 0 {
		return ""
	}

	var parts []string
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := NormalizeText(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return NormalizeText(container.Text())
	}
	return strings.Join(parts, "\n")
}

func normalizeBlock(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if text := NormalizeText(line); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
