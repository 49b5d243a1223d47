package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 32, cfg.OutboxBatchSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_HTTP_ADDR", ":9090")
	t.Setenv("STOREFRONT_OUTBOX_INTERVAL", "500ms")
	t.Setenv("STOREFRONT_OUTBOX_BATCH", "8")
	t.Setenv("STOREFRONT_MINIO_SSL", "true")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxInterval)
	assert.Equal(t, 8, cfg.OutboxBatchSize)
	assert.True(t, cfg.MinioUseSSL)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("STOREFRONT_OUTBOX_INTERVAL", "soon")
	t.Setenv("STOREFRONT_OUTBOX_BATCH", "many")

	cfg := Load()
	assert.Equal(t, 2*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 32, cfg.OutboxBatchSize)
}
