package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-distribution/internal/config"
)

func TestNewRedis(t *testing.T) {
	t.Run("connects and pings", func(t *testing.T) {
		mr := miniredis.RunT(t)

		r, err := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, true, zap.NewNop())

		require.NoError(t, err)
		t.Cleanup(r.Close)
		require.NoError(t, r.Ping(context.Background()))
	})

	t.Run("unreachable server fails only when required", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := NewRedis(context.Background(), config.RedisConfig{Addr: addr}, true, zap.NewNop())
		require.Error(t, err)

		r, err := NewRedis(context.Background(), config.RedisConfig{Addr: addr}, false, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(r.Close)
		require.Error(t, r.Ping(context.Background()))
	})

	t.Run("nil client is not ready", func(t *testing.T) {
		var r *Redis
		require.Error(t, r.Ping(context.Background()))
	})
}
