package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRedisAddr(t *testing.T) {
	cfg := &RedisConfig{Host: "localhost", Port: 6379}
	WithRedisAddr("redis.internal:6380")(cfg)
	assert.Equal(t, "redis.internal", cfg.Host)
	assert.Equal(t, 6380, cfg.Port)

	WithRedisAddr("not-an-addr")(cfg)
	assert.Equal(t, "redis.internal", cfg.Host)
	assert.Equal(t, 6380, cfg.Port)
}

func TestWithRedisPoolKeepsDefaultsForZeroValues(t *testing.T) {
	cfg := &RedisConfig{PoolSize: 10, MinIdleConns: 2, PoolTimeout: 30 * time.Second}
	WithRedisPool(32, 4, 5*time.Second)(cfg)
	assert.Equal(t, 32, cfg.PoolSize)
	assert.Equal(t, 4, cfg.MinIdleConns)
	assert.Equal(t, 5*time.Second, cfg.PoolTimeout)

	WithRedisPool(0, -1, 0)(cfg)
	assert.Equal(t, 32, cfg.PoolSize)
	assert.Equal(t, 4, cfg.MinIdleConns)
	assert.Equal(t, 5*time.Second, cfg.PoolTimeout)
}

func TestMemoryAndLayeredSizing(t *testing.T) {
	mc := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	WithMemoryMaxSize(64)(mc)
	WithMemoryCleanup(time.Second)(mc)
	assert.Equal(t, 64, mc.MaxSize)
	assert.Equal(t, time.Second, mc.CleanupInterval)

	WithMemoryCleanup(0)(mc)
	assert.Equal(t, time.Second, mc.CleanupInterval, "a zero interval would panic the ticker")

	lc := &LayeredConfig{MemoryMaxSize: 1000}
	WithLayeredMemorySize(128)(lc)
	assert.Equal(t, 128, lc.MemoryMaxSize)
	WithLayeredMemorySize(0)(lc)
	assert.Equal(t, 128, lc.MemoryMaxSize)
}
