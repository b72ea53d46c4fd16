package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "coupon_rush.db", cfg.DBPath)
	require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 1000, cfg.BuyRateLimit)
	require.Equal(t, time.Second, cfg.BuyRateWindow)
	require.Equal(t, 30*time.Minute, cfg.ShopCacheTTL)
	require.Equal(t, 10, cfg.RebuildWorkers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("BUY_RATE_LIMIT", "5")
	t.Setenv("SHOP_CACHE_TTL_MIN", "10")
	t.Setenv("REBUILD_WORKERS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 5, cfg.BuyRateLimit)
	require.Equal(t, 10*time.Minute, cfg.ShopCacheTTL)
	require.Equal(t, 3, cfg.RebuildWorkers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("non-numeric", func(t *testing.T) {
		t.Setenv("REDIS_DB", "not-a-number")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("non-positive rate limit", func(t *testing.T) {
		t.Setenv("BUY_RATE_LIMIT", "0")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("non-positive workers", func(t *testing.T) {
		t.Setenv("REBUILD_WORKERS", "-1")
		_, err := Load()
		require.Error(t, err)
	})
}
