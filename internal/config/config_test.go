package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "tokenhaus", cfg.JWTIssuer)
	assert.Equal(t, "marketplace", cfg.MarketplaceAccount)
	assert.Equal(t, int64(100000), cfg.MintFee)
	assert.Equal(t, int64(1000000), cfg.CreateAuctionFee)
	assert.Equal(t, int64(100000), cfg.EnrollFee)
	assert.Equal(t, 10, cfg.RelayBatchSize)
	assert.Equal(t, time.Second, cfg.RelayInterval)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MARKETPLACE_DB_URL", "postgres://localhost:5432/marketplace")
	t.Setenv("RABBITMQ_URL", "amqp://localhost:5672")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("ENROLL_FEE", "250")
	t.Setenv("RELAY_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/marketplace", cfg.DatabaseURL)
	assert.Equal(t, "amqp://localhost:5672", cfg.RabbitURL)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, int64(250), cfg.EnrollFee)
	assert.Equal(t, 500*time.Millisecond, cfg.RelayInterval)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("ENROLL_FEE", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}
