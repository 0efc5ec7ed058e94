package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CHAT_IDLE_ARCHIVE_AFTER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 3, cfg.Chat.GetOrCreateAttempts)
	assert.Zero(t, cfg.Chat.IdleArchiveAfter)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Bot.MaxResults)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CHAT_IDLE_ARCHIVE_AFTER", "72h")
	t.Setenv("BOT_MAX_RESULTS", "5")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 72*time.Hour, cfg.Chat.IdleArchiveAfter)
	assert.Equal(t, 5, cfg.Bot.MaxResults)
	assert.False(t, cfg.Postgres.RunMigrations)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CHAT_IDLE_ARCHIVE_AFTER", "soon")
	_, err := Load()
	require.Error(t, err)
}

func TestRequestTimeoutDisabled(t *testing.T) {
	assert.Zero(t, AppConfig{RequestTimeoutSeconds: 0}.RequestTimeout())
}
