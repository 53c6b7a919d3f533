package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Auction.SweepInterval)
	assert.Equal(t, "1", cfg.Auction.BaseFeePercent)
	assert.Equal(t, "5", cfg.Auction.AuthenticatedFeePercent)
	assert.Equal(t, "notified_only", cfg.Expertise.AutoAssignPolicy)
	assert.Equal(t, 5, cfg.Expertise.MaxWorkload)
	assert.True(t, cfg.Notification.PushEnabled)
	assert.Equal(t, 30, cfg.Security.BidRateLimit)
	assert.Equal(t, time.Minute, cfg.Security.BidRateWindow)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
server:
  port: 9000
auction:
  sweep_interval: 30s
  sweep_concurrency: 2
expertise:
  auto_assign_policy: active
`), 0o600))

	t.Setenv("VV_SERVER_PORT", "9100")
	t.Setenv("VV_NOTIFICATION_QUEUE_SIZE", "64")
	t.Setenv("VV_SECURITY_JWT_SECRET", "s3cret")
	t.Setenv("VV_LOG_LEVEL", "warn")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Auction.SweepInterval)
	assert.Equal(t, 2, cfg.Auction.SweepConcurrency)
	assert.Equal(t, "active", cfg.Expertise.AutoAssignPolicy)
	assert.Equal(t, 64, cfg.Notification.QueueSize)
	assert.Equal(t, "s3cret", cfg.Security.JWTSecret)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"VV_DATABASE_URL":                 "database.url",
		"VV_AUCTION_SWEEP_INTERVAL":       "auction.sweep_interval",
		"VV_REDIS_PUSH_CHANNEL":           "redis.push_channel",
		"VV_LOG_LEVEL":                    "log_level",
		"VV_ENVIRONMENT":                  "environment",
		"VV_EXPERTISE_AUTO_ASSIGN_POLICY": "expertise.auto_assign_policy",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.Server.Port = 0
	cfg.Auction.SweepInterval = 0
	cfg.Environment = "production"
	cfg.Security.BidRateWindow = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "auction.sweep_interval")
	assert.Contains(t, err.Error(), "jwt_secret")
	assert.Contains(t, err.Error(), "bid_rate_limit")

	cfg = Defaults()
	cfg.Security.BidRateLimit = 0
	cfg.Security.BidRateWindow = 0
	assert.NoError(t, cfg.Validate(), "a disabled limit needs no window")
}
