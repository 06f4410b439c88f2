package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

const defaultUserAgent = "NewsHarvester/1.0"

// HTTPPageFetcher requests listing pages by number.
type HTTPPageFetcher struct {
	client             *http.Client
	listingURL         string
	pageParam          string
	omitFirstPageParam bool
	userAgent          string
}

var _ ports.PageFetcher = (*HTTPPageFetcher)(nil)

// PageFetcherOptions configures NewHTTPPageFetcher.
type PageFetcherOptions struct {
	ListingURL         string
	PageParam          string
	OmitFirstPageParam bool
	UserAgent          string
}

// NewHTTPPageFetcher wires an HTTP client; a nil client gets a 20s timeout.
func NewHTTPPageFetcher(client *http.Client, opts PageFetcherOptions) *HTTPPageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.PageParam == "" {
		opts.PageParam = "page"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &HTTPPageFetcher{
		client:             client,
		listingURL:         opts.ListingURL,
		pageParam:          opts.PageParam,
		omitFirstPageParam: opts.OmitFirstPageParam,
		userAgent:          opts.UserAgent,
	}
}

// FetchPage returns the raw markup of listing page n. Failures are *domain.FetchError.
func (f *HTTPPageFetcher) FetchPage(ctx context.Context, page int) (io.ReadCloser, error) {
	pageURL, err := f.PageURL(page)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, f.client, pageURL, f.userAgent)
}

// PageURL builds the listing URL for page n.
func (f *HTTPPageFetcher) PageURL(page int) (string, error) {
	return buildPageURL(f.listingURL, f.pageParam, page, f.omitFirstPageParam)
}

func buildPageURL(base, param string, page int, omitFirst bool) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}
	if page < 1 {
		return "", fmt.Errorf("invalid page %d", page)
	}

	query := parsed.Query()
	if page == 1 && omitFirst {
		query.Del(param)
	} else {
		query.Set(param, strconv.Itoa(page))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func fetch(ctx context.Context, client *http.Client, target, userAgent string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: target, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: target, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &domain.FetchError{URL: target, StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}
