// Package quotatest holds the behavioural contract every QuotaStorePort must satisfy.
package quotatest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popgraph/server/internal/port/outbound"
)

// Harness builds a fresh store and a way to move its notion of time forward.
type Harness func(t *testing.T) (store outbound.QuotaStorePort, advance func(time.Duration))

// RunStoreContract runs the shared store contract against h.
func RunStoreContract(t *testing.T, h Harness) {
	t.Run("get on missing key is a cache miss", func(t *testing.T) {
		store, _ := h(t)
		_, err := store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, outbound.ErrCacheMiss)
	})

	t.Run("incr starts at one and counts up", func(t *testing.T) {
		store, _ := h(t)
		ctx := context.Background()

		for want := int64(1); want <= 3; want++ {
			got, err := store.Incr(ctx, "user:day")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		raw, err := store.Get(ctx, "user:day")
		require.NoError(t, err)
		assert.Equal(t, "3", raw)
	})

	t.Run("keys are independent", func(t *testing.T) {
		store, _ := h(t)
		ctx := context.Background()

		_, err := store.Incr(ctx, "a")
		require.NoError(t, err)
		got, err := store.Incr(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("expire drops the key after ttl", func(t *testing.T) {
		store, advance := h(t)
		ctx := context.Background()

		_, err := store.Incr(ctx, "k")
		require.NoError(t, err)
		require.NoError(t, store.Expire(ctx, "k", time.Hour))

		advance(59 * time.Minute)
		raw, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "1", raw)

		advance(2 * time.Minute)
		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, outbound.ErrCacheMiss)

		got, err := store.Incr(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("delete removes the key", func(t *testing.T) {
		store, _ := h(t)
		ctx := context.Background()

		_, err := store.Incr(ctx, "k")
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "k"))

		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, outbound.ErrCacheMiss)
		assert.NoError(t, store.Delete(ctx, "k"))
	})

	t.Run("concurrent increments are atomic", func(t *testing.T) {
		store, _ := h(t)
		ctx := context.Background()

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Incr(ctx, "hot")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		raw, err := store.Get(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, "50", raw)
	})
}
