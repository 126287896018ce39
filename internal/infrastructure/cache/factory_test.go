package cache

import (
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/catalogsync/internal/infrastructure/auth"
	"github.com/erp/catalogsync/internal/infrastructure/config"
)

func unreachable(config.RedisConfig) (*redis.Client, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestStoreFactory_RedisDisabled(t *testing.T) {
	f := NewStoreFactory(config.RedisConfig{Enabled: false})
	f.connect = func(config.RedisConfig) (*redis.Client, error) {
		t.Fatal("redis must not be dialed when disabled")
		return nil, nil
	}

	stores, err := f.Create()
	require.NoError(t, err)
	defer stores.Close()
	assert.False(t, stores.Redis)
	assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Idempotency)
	assert.NotNil(t, stores.LatestRun)
	assert.IsType(t, &auth.InMemoryTokenBlacklist{}, stores.TokenBlacklist)
}

func TestStoreFactory_FallsBackToMemory(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := NewStoreFactory(config.RedisConfig{Enabled: true, Host: "localhost", Port: 6379}, WithLogger(zap.New(core)))
	f.connect = unreachable

	stores, err := f.Create()
	require.NoError(t, err)
	defer stores.Close()
	assert.False(t, stores.Redis)
	assert.Equal(t, 1, logs.FilterMessageSnippet("falling back").Len())
}

func TestStoreFactory_FallbackDisabled(t *testing.T) {
	f := NewStoreFactory(config.RedisConfig{Enabled: true}, WithInMemoryFallback(false))
	f.connect = unreachable

	_, err := f.Create()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis required")
}
