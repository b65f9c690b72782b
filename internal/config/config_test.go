package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMongo, cfg.RecordStore)
	assert.Equal(t, "codemycode", cfg.Mongo.Database)
	assert.Equal(t, "codemycode", cfg.Mongo.Collection)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, 4, cfg.Delivery.FetchConcurrency)
	assert.Equal(t, 14*time.Minute, cfg.KeepAlive.Interval)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("RECORD_STORE", " Redis ")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("IMAGE_FETCH_TIMEOUT", "5s")
	t.Setenv("APP_URL", "https://bot.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.RecordStore)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 5*time.Second, cfg.Delivery.FetchTimeout)
	assert.Equal(t, "https://bot.example.com/health", cfg.HealthURL())
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("RECORD_STORE", "postgres")

	_, err := Load()
	assert.ErrorContains(t, err, "RECORD_STORE")
}

func TestValidateRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("IMAGE_FETCH_CONCURRENCY", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "IMAGE_FETCH_CONCURRENCY")
}
