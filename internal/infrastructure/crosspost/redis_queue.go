// Package crosspost holds secondary delivery channels for flagged articles.
package crosspost

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// DefaultKey is the Redis list consumed by the social posting worker.
const DefaultKey = "crosspost:articles"

// Event is one queued cross-post request.
type Event struct {
	EventID     uuid.UUID `json:"eventId"`
	QueuedAt    time.Time `json:"queuedAt"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt string    `json:"publishedAt,omitempty"`
	Relevance   int       `json:"relevance"`
	Row         int       `json:"row"`
}

// RedisQueue pushes cross-post events onto a Redis list.
type RedisQueue struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

var _ ports.CrossPoster = (*RedisQueue)(nil)

// NewRedisQueue returns nil if client is nil.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if client == nil {
		return nil
	}
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key, now: time.Now}
}

// CrossPost appends the record to the tail of the list.
func (q *RedisQueue) CrossPost(ctx context.Context, record domain.ArticleRecord) error {
	if q == nil || q.client == nil {
		return nil
	}

	event := Event{
		EventID:     uuid.New(),
		QueuedAt:    q.now().UTC(),
		Title:       record.Title,
		URL:         record.URL,
		PublishedAt: domain.FormatTime(record.PublishedAt),
		Relevance:   record.Relevance,
		Row:         record.Row,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", q.key, err)
	}
	return nil
}
