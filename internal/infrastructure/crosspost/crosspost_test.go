package crosspost

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"NewsHarvester/internal/domain"
)

func TestRedisQueuePushesEvents(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	queue := NewRedisQueue(client, "")
	queue.now = func() time.Time { return time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC) }

	records := []domain.ArticleRecord{
		{Row: 2, Title: "Перша", URL: "https://babel.ua/news/1", Relevance: 9, PublishedAt: time.Date(2025, time.November, 8, 9, 0, 0, 0, time.UTC)},
		{Row: 5, Title: "Друга", URL: "https://babel.ua/news/2", Relevance: 10},
	}
	for _, rec := range records {
		if err := queue.CrossPost(context.Background(), rec); err != nil {
			t.Fatalf("CrossPost: %v", err)
		}
	}

	items, err := mr.List(DefaultKey)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 queued events, got %d", len(items))
	}

	var first Event
	if err := json.Unmarshal([]byte(items[0]), &first); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if first.Title != "Перша" || first.Row != 2 || first.Relevance != 9 || first.PublishedAt != "2025-11-08T09:00:00Z" {
		t.Fatalf("unexpected event %+v", first)
	}
	if first.EventID.String() == "" || !first.QueuedAt.Equal(time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected event metadata %+v", first)
	}
}

func TestRedisQueueNilIsNoop(t *testing.T) {
	t.Parallel()

	queue := NewRedisQueue(nil, "k")
	if err := queue.CrossPost(context.Background(), domain.ArticleRecord{}); err != nil {
		t.Fatalf("nil queue must be a no-op, got %v", err)
	}
}

type posterFunc func(context.Context, domain.ArticleRecord) error

func (f posterFunc) CrossPost(ctx context.Context, rec domain.ArticleRecord) error { return f(ctx, rec) }

func TestFanoutTriesEveryChannel(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	fanout := Fanout{
		posterFunc(func(context.Context, domain.ArticleRecord) error { calls++; return boom }),
		posterFunc(func(context.Context, domain.ArticleRecord) error { calls++; return nil }),
	}

	err := fanout.CrossPost(context.Background(), domain.ArticleRecord{})
	if !errors.Is(err, boom) || calls != 2 {
		t.Fatalf("calls = %d, err = %v", calls, err)
	}
}
