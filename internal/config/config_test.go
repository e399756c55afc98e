package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("JWT_TTL_HOURS", "not-a-number")
	t.Setenv("NOTIFY_TIMEOUT_SECONDS", "3")
	t.Setenv("KAFKA_BROKERS", " kafka:9092 ")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 720*time.Hour, cfg.TokenExpires)
	assert.Equal(t, 3*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, "kafka:9092", cfg.KafkaBrokers)
	assert.Equal(t, "pharmadrop.orders", cfg.KafkaTopic)
	assert.Equal(t, "@every 13m", cfg.KeepaliveSchedule)
}
