package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yield-indexer/internal/config"
)

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		Host:           mr.Host(),
		Port:           mr.Port(),
		MaxConnections: 4,
	}

	cache, err := NewRedisCache(cfg)
	require.NoError(t, err)
	defer func() {
		if err := cache.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	ctx := testContext(t)
	assert.NoError(t, cache.Ping(ctx))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.RedisConfig{Host: mr.Host(), Port: mr.Port(), MaxConnections: 1}
	mr.Close()

	_, err := NewRedisCache(cfg)
	assert.Error(t, err)
}

func TestRedisCache_InvalidateTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer func() { _ = cache.Close() }()

	ctx := testContext(t)
	for _, key := range []string{"token:1:0xa:name", "token:1:0xa:symbol", "token:10:0xa:name"} {
		require.NoError(t, cache.Client().Set(ctx, key, "v", time.Minute).Err())
	}

	removed, err := cache.InvalidateTokens(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.True(t, mr.Exists("token:10:0xa:name"))
	assert.False(t, mr.Exists("token:1:0xa:name"))
}
