package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStateCacheContract exercises the StateCache contract against any backend.
func testStateCacheContract(t *testing.T, svc StateCache) {
	ctx := context.Background()

	t.Run("Set_And_Get_Works", func(t *testing.T) {
		require.NoError(t, svc.Set(ctx, "k1", []byte("v1"), time.Hour))

		val, ok, err := svc.Get(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v1"), val)
	})

	t.Run("Get_NonexistentKey_ReturnsAbsent", func(t *testing.T) {
		val, ok, err := svc.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("Set_OverwritesExisting", func(t *testing.T) {
		require.NoError(t, svc.Set(ctx, "k2", []byte("original"), time.Hour))
		require.NoError(t, svc.Set(ctx, "k2", []byte("updated"), time.Hour))

		val, _, err := svc.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Equal(t, []byte("updated"), val)
	})

	t.Run("SetNX_RejectsExistingKey", func(t *testing.T) {
		created, err := svc.SetNX(ctx, "nx", []byte("first"), time.Hour)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = svc.SetNX(ctx, "nx", []byte("second"), time.Hour)
		require.NoError(t, err)
		assert.False(t, created)

		val, _, err := svc.Get(ctx, "nx")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), val)
	})

	t.Run("Delete_RemovesKeys", func(t *testing.T) {
		require.NoError(t, svc.Set(ctx, "d1", []byte("1"), time.Hour))
		require.NoError(t, svc.Set(ctx, "d2", []byte("2"), time.Hour))

		require.NoError(t, svc.Delete(ctx, "d1", "d2", "never-existed"))

		_, ok, err := svc.Get(ctx, "d1")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = svc.Get(ctx, "d2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Incr_IsMonotonic", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := svc.Incr(ctx, "counter", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("Incr_ConcurrentCallsNeverCollide", func(t *testing.T) {
		const workers = 50
		var wg sync.WaitGroup
		seen := make(chan int64, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := svc.Incr(ctx, "concurrent-counter", time.Hour)
				assert.NoError(t, err)
				seen <- n
			}()
		}
		wg.Wait()
		close(seen)

		unique := make(map[int64]bool)
		for n := range seen {
			unique[n] = true
		}
		assert.Len(t, unique, workers)
	})
}
