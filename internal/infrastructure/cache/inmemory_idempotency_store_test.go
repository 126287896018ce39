package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	isNew, err := store.MarkProcessed(ctx, "algolia:evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "algolia:evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew, "second mark is a duplicate")

	isNew, err = store.MarkProcessed(ctx, "contentful:evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "keys of different handlers are independent")
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "short", 10*time.Millisecond)
	require.NoError(t, err)
	_, err = store.MarkProcessed(ctx, "long", time.Hour)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	processed, err := store.IsProcessed(ctx, "short")
	require.NoError(t, err)
	assert.False(t, processed, "expired key reads as unprocessed")

	store.cleanup()
	assert.Equal(t, 1, store.Size())

	isNew, err := store.MarkProcessed(ctx, "short", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "expired key can be marked again")
}

func TestInMemoryIdempotencyStore_Remove(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "k", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Remove(ctx, "k"))
	require.NoError(t, store.Remove(ctx, "unknown"))

	processed, err := store.IsProcessed(ctx, "k")
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, 0, store.Size())
}

func TestInMemoryIdempotencyStore_ConcurrentMark(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	const workers = 64
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		newCount int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(context.Background(), "same", time.Hour)
			if err == nil && isNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, newCount, "exactly one caller wins")
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "close is idempotent")
}
