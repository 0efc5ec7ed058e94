// Package cache keeps the active FAQ corpus in Redis so bot replies do not hit
// Postgres on every message.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const corpusKey = "helpdesk:faq:corpus:v1"

// CorpusCache stores the active FAQ corpus.
type CorpusCache interface {
	// Get reports false on a miss.
	Get(ctx context.Context) ([]domain.FAQItem, bool, error)
	Set(ctx context.Context, items []domain.FAQItem) error
	Invalidate(ctx context.Context) error
}

type redisCorpusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCorpusCache returns a cache backed by client. A nil client yields nil.
func NewRedisCorpusCache(client *redis.Client, ttl time.Duration) CorpusCache {
	if client == nil {
		return nil
	}
	return &redisCorpusCache{client: client, ttl: ttl}
}

func (c *redisCorpusCache) Get(ctx context.Context) ([]domain.FAQItem, bool, error) {
	raw, err := c.client.Get(ctx, corpusKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var items []domain.FAQItem
	if err := json.Unmarshal(raw, &items); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return items, true, nil
}

func (c *redisCorpusCache) Set(ctx context.Context, items []domain.FAQItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, corpusKey, raw, c.ttl).Err()
}

func (c *redisCorpusCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, corpusKey).Err()
}
