package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestNilClientDisablesCache(t *testing.T) {
	assert.Nil(t, NewRedisCorpusCache(nil, time.Minute))
}

func TestRedisCorpusCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is required for redis tests")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	c := NewRedisCorpusCache(client, time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	_, hit, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	items := []domain.FAQItem{{ID: "faq-1", Question: "How do I reset my password?", Keywords: "password reset", IsActive: true}}
	require.NoError(t, c.Set(ctx, items))

	got, hit, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "faq-1", got[0].ID)
	assert.Equal(t, "password reset", got[0].Keywords)

	require.NoError(t, c.Invalidate(ctx))
	_, hit, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
}
