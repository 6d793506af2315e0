package tokenstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SingleUse(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "wh_abc", time.Minute))

	ok, err := store.Exists(ctx, "wh_abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Consume(ctx, "wh_abc")
	require.NoError(t, err)
	assert.True(t, ok)

	// Second consume of the same token must fail.
	ok, err = store.Consume(ctx, "wh_abc")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Exists(ctx, "wh_abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_UnknownToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.Consume(ctx, "wh_never_minted")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "wh_short", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	ok, err := store.Exists(ctx, "wh_short")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "wh_short2", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	ok, err = store.Consume(ctx, "wh_short2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "wh_race", time.Minute))

	const goroutines = 16
	var wg sync.WaitGroup
	wins := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Consume(ctx, "wh_race")
			assert.NoError(t, err)
			if ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one consumer must win")
}
