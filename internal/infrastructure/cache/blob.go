package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// BlobStore is a byte-value cache with per-key expiration.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisBlobStore stores values as Redis strings.
type RedisBlobStore struct {
	client *redis.Client
}

// NewRedisBlobStore creates a BlobStore on client
func NewRedisBlobStore(client *redis.Client) *RedisBlobStore {
	return &RedisBlobStore{client: client}
}

// Get returns the value of key or ErrCacheMiss
func (s *RedisBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Set stores value under key. A zero ttl never expires.
func (s *RedisBlobStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

type blob struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryBlobStore is a process-local BlobStore.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	items map[string]blob
}

// NewInMemoryBlobStore creates an empty store
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{items: make(map[string]blob)}
}

// Get returns the value of key or ErrCacheMiss
func (s *InMemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.items[key]
	if !ok || (!b.expiresAt.IsZero() && time.Now().After(b.expiresAt)) {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), b.value...), nil
}

// Set stores value under key. A zero ttl never expires.
func (s *InMemoryBlobStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := blob{value: append([]byte(nil), value...)}
	if ttl > 0 {
		b.expiresAt = time.Now().Add(ttl)
	}
	s.items[key] = b
	return nil
}
