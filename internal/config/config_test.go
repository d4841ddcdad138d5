package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 5, cfg.Events.OrderBatchMaxSize)
	assert.Equal(t, 5*time.Second, cfg.Events.OrderBatchTimeout)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.Subscriptions)
	assert.Equal(t, 365*24*time.Hour, cfg.Retention.Orders)
	assert.Equal(t, "notification_subscriptions", cfg.DynamoTables.Subscriptions)
	assert.Empty(t, cfg.SNSTopicARN)
	assert.False(t, cfg.TrustProxy)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ORDER_BATCH_MAX_SIZE", "10")
	t.Setenv("ORDER_BATCH_TIMEOUT", "250ms")
	t.Setenv("SUBSCRIPTION_RETENTION", "48h")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	t.Setenv("EMAIL_RATE_PER_SECOND", "2.5")
	t.Setenv("TRUST_PROXY", "true")

	cfg := Load()

	assert.Equal(t, 10, cfg.Events.OrderBatchMaxSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Events.OrderBatchTimeout)
	assert.Equal(t, 48*time.Hour, cfg.Retention.Subscriptions)
	assert.Equal(t, "https://shop.example.com", cfg.PublicBaseURL)
	assert.Equal(t, 2.5, cfg.EmailRatePerSecond)
	assert.True(t, cfg.TrustProxy)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("EVENT_MAX_ATTEMPTS", "many")
	t.Setenv("ORDER_RETENTION", "a year")

	cfg := Load()

	assert.Equal(t, 4, cfg.Events.MaxAttempts)
	assert.Equal(t, 365*24*time.Hour, cfg.Retention.Orders)
}
