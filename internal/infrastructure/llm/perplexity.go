package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsHarvester/internal/config"
	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

const promptTemplate = "Проаналізуйте цю новину та визначте, чи вона стосується України. " +
	"Заголовок: '%s'. Зміст: '%s...'. " +
	"Дайте відповідь 'Так' або 'Ні', а потім оцініть актуальність новини для України за шкалою від 1 до 10."

// PerplexityJudge implements ports.RelevanceJudge over the Perplexity
// chat completions API (OpenAI-compatible).
type PerplexityJudge struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.RelevanceJudge = (*PerplexityJudge)(nil)

// NewPerplexityJudge builds a judge from configuration.
func NewPerplexityJudge(cfg config.JudgeConfig) *PerplexityJudge {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PerplexityJudge{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Prompt renders the user message sent for one article.
func Prompt(title, body string) string {
	return fmt.Sprintf(promptTemplate, title, body)
}

// Judge asks the model for a verdict and parses the reply with ParseVerdict.
func (c *PerplexityJudge) Judge(ctx context.Context, title, body string) (domain.Judgment, error) {
	if c == nil {
		return domain.Judgment{}, &domain.JudgeError{Reason: "perplexity judge is nil"}
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Judgment{}, &domain.JudgeError{Reason: "perplexity judge misconfigured"}
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: Prompt(title, body)},
		},
	})
	if err != nil {
		return domain.Judgment{}, fmt.Errorf("marshal perplexity payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Judgment{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Judgment{}, &domain.JudgeError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Judgment{}, &domain.JudgeError{
			Reason: fmt.Sprintf("perplexity error %s: %s", resp.Status, strings.TrimSpace(string(detail))),
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Judgment{}, &domain.JudgeError{Reason: "decode response", Err: err}
	}
	if len(out.Choices) == 0 {
		return domain.Judgment{}, &domain.JudgeError{Reason: "response has no choices"}
	}

	return ParseVerdict(out.Choices[0].Message.Content)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}
