package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/infrastructure/llm"
	"NewsHarvester/internal/ports"
)

// Client talks to an external ML classification service that answers
// POST /judge with {"relevant": bool, "score": int}.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.RelevanceJudge = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Judge sends the title and truncated body for classification.
func (c *Client) Judge(ctx context.Context, title, body string) (domain.Judgment, error) {
	payload := map[string]any{
		"title": title,
		"body":  body,
	}

	var resp struct {
		Relevant *bool `json:"relevant"`
		Score    int   `json:"score"`
	}
	if err := c.post(ctx, "/judge", payload, &resp); err != nil {
		return domain.Judgment{}, &domain.JudgeError{Reason: "ml service call failed", Err: err}
	}
	if resp.Relevant == nil {
		return domain.Judgment{}, &domain.JudgeError{Reason: "ml response without relevant"}
	}
	if err := llm.CheckScore(resp.Score); err != nil {
		return domain.Judgment{}, err
	}

	return domain.Judgment{Relevant: *resp.Relevant, Score: resp.Score}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
