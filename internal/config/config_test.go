package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("DISTRIBUTION_ROUND_ROBIN_LOCK", "")
		t.Setenv("DISTRIBUTION_DEFAULT_COUNT", "")

		cfg, err := Load()

		require.NoError(t, err)
		require.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
		require.Equal(t, 10, cfg.Distribution.DefaultCount)
		require.Equal(t, LockModeNone, cfg.Distribution.RoundRobinLock)
		require.Equal(t, 30*time.Second, cfg.Distribution.LockTTL())
		require.False(t, cfg.Distribution.ReseedOnDrift)
		require.Equal(t, "crm", cfg.NATS.SubjectPrefix)
	})

	t.Run("reads distribution overrides", func(t *testing.T) {
		t.Setenv("DISTRIBUTION_ROUND_ROBIN_LOCK", "REDIS")
		t.Setenv("DISTRIBUTION_DEFAULT_COUNT", "25")
		t.Setenv("DISTRIBUTION_LOCK_TTL_SECONDS", "5")
		t.Setenv("DISTRIBUTION_RESEED_ON_DRIFT", "true")

		cfg, err := Load()

		require.NoError(t, err)
		require.Equal(t, LockModeRedis, cfg.Distribution.RoundRobinLock)
		require.Equal(t, 25, cfg.Distribution.DefaultCount)
		require.Equal(t, 5*time.Second, cfg.Distribution.LockTTL())
		require.True(t, cfg.Distribution.ReseedOnDrift)
	})

	t.Run("rejects unknown lock mode", func(t *testing.T) {
		t.Setenv("DISTRIBUTION_ROUND_ROBIN_LOCK", "zookeeper")

		_, err := Load()

		require.Error(t, err)
		require.Contains(t, err.Error(), "DISTRIBUTION_ROUND_ROBIN_LOCK")
	})

	t.Run("rejects default count out of range", func(t *testing.T) {
		t.Setenv("DISTRIBUTION_DEFAULT_COUNT", "101")

		_, err := Load()

		require.Error(t, err)
	})

	t.Run("rejects non numeric redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "zero")

		_, err := Load()

		require.Error(t, err)
		require.Contains(t, err.Error(), "REDIS_DB")
	})
}
