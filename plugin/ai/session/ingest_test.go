package session

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Momena-akhtar/classfellow-sub000/store/cache"
)

func TestManager_AddChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("fifth chunk triggers", func(t *testing.T) {
		env := newTestEnv(t, nil)
		id := env.start(t)

		for i := 1; i <= 4; i++ {
			res, err := env.manager.AddChunk(ctx, id, "chunk "+strconv.Itoa(i), int64(i))
			require.NoError(t, err)
			assert.False(t, res.Triggered, "chunk %d", i)
			assert.Equal(t, int64(i), res.ChunkCount)
			assert.Equal(t, 0, res.AIProcessed)
		}

		env.clock.Advance(time.Second)
		res, err := env.manager.AddChunk(ctx, id, "chunk 5", 5)
		require.NoError(t, err)
		assert.True(t, res.Triggered)
		assert.Equal(t, int64(5), res.ChunkCount)
		assert.Equal(t, 1, res.AIProcessed)

		status, err := env.manager.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, env.clock.Now().UnixMilli(), status.LastAICall)
	})

	t.Run("count is never reset", func(t *testing.T) {
		env := newTestEnv(t, nil)
		id := env.start(t)

		for i := 1; i <= 5; i++ {
			_, err := env.manager.AddChunk(ctx, id, "x", 0)
			require.NoError(t, err)
		}
		res, err := env.manager.AddChunk(ctx, id, "x", 0)
		require.NoError(t, err)
		assert.True(t, res.Triggered)
		assert.Equal(t, int64(6), res.ChunkCount)
	})

	t.Run("mid window with three chunks", func(t *testing.T) {
		env := newTestEnv(t, nil)
		id := env.start(t)

		for i := 1; i <= 2; i++ {
			res, err := env.manager.AddChunk(ctx, id, "x", 0)
			require.NoError(t, err)
			assert.False(t, res.Triggered)
		}

		env.clock.Advance(121 * time.Second)
		res, err := env.manager.AddChunk(ctx, id, "x", 0)
		require.NoError(t, err)
		assert.True(t, res.Triggered)
		assert.Equal(t, int64(3), res.ChunkCount)
	})

	t.Run("mid window with two chunks", func(t *testing.T) {
		env := newTestEnv(t, nil)
		id := env.start(t)

		_, err := env.manager.AddChunk(ctx, id, "x", 0)
		require.NoError(t, err)
		env.clock.Advance(121 * time.Second)
		res, err := env.manager.AddChunk(ctx, id, "x", 0)
		require.NoError(t, err)
		assert.False(t, res.Triggered)
	})

	t.Run("max elapsed with one chunk", func(t *testing.T) {
		env := newTestEnv(t, nil)
		id := env.start(t)

		env.clock.Advance(180 * time.Second)
		res, err := env.manager.AddChunk(ctx, id, "x", 0)
		require.NoError(t, err)
		assert.True(t, res.Triggered)
	})

	t.Run("transcript round trip", func(t *testing.T) {
		env := newTestEnv(t, nil)
		id := env.start(t)

		for _, text := range []string{"a", " b ", "c"} {
			_, err := env.manager.AddChunk(ctx, id, text, 0)
			require.NoError(t, err)
		}
		res, err := env.manager.End(ctx, id, EndOptions{})
		require.NoError(t, err)
		assert.Equal(t, "a b c", res.Transcription)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		env := newTestEnv(t, nil)
		id := env.start(t)

		_, err := env.manager.AddChunk(ctx, id, "   ", 0)
		assert.True(t, IsCode(err, ErrCodeInvalidInput))

		status, err := env.manager.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(0), status.ChunkCount)
	})

	t.Run("unknown session", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, err := env.manager.AddChunk(ctx, "missing", "x", 0)
		assert.True(t, IsCode(err, ErrCodeNotFound))
	})

	t.Run("ephemeral store down reports not found", func(t *testing.T) {
		env := newTestEnv(t, downCache{})
		_, err := env.manager.AddChunk(ctx, "s1", "x", 0)
		assert.True(t, IsCode(err, ErrCodeNotFound))
		assert.False(t, IsRetryable(err))
	})
}

func TestManager_AddChunkAtCapacity(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(cache.Config{MaxItems: 4, CleanupInterval: time.Hour})
	t.Cleanup(func() { _ = mc.Close() })
	env := newTestEnv(t, mc)

	a := env.start(t)
	for i := 0; i < 2; i++ {
		_, err := env.manager.AddChunk(ctx, a, "a", int64(i))
		require.NoError(t, err)
	}
	b := env.start(t)
	_, err := env.manager.AddChunk(ctx, b, "b", 0)
	require.NoError(t, err)

	// Both sessions hold their state and counter; a third session cannot fit.
	_, err = env.manager.Start(ctx, "bio-101", "student-3")
	assert.True(t, IsCode(err, ErrCodeStoreUnavailable))

	res, err := env.manager.AddChunk(ctx, a, "a", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.ChunkCount)

	state, ok, err := env.manager.states.Load(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, state.TranscriptChunks, 3)
}

func TestManager_AddChunkConcurrent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	id := env.start(t)

	const n = 50
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.manager.AddChunk(ctx, id, "chunk-"+strconv.Itoa(i), int64(i))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			counts = append(counts, res.ChunkCount)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, counts, n)
	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })
	for i, c := range counts {
		assert.Equal(t, int64(i+1), c)
	}

	state, ok, err := env.manager.states.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, state.TranscriptChunks, n)
	assert.Equal(t, int64(n), state.ChunkCount)
}

type recordingObserver struct {
	mu        sync.Mutex
	chunks    int
	triggered []bool
	summaries int
	failures  []string
}

func (o *recordingObserver) ChunkIngested(string, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.chunks++
}

func (o *recordingObserver) Triggered(_ string, manual bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.triggered = append(o.triggered, manual)
}

func (o *recordingObserver) SummaryStored(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summaries++
}

func (o *recordingObserver) StoreFailure(op string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, op)
}

func TestManager_Observer(t *testing.T) {
	ctx := context.Background()

	t.Run("ingestion and triggers", func(t *testing.T) {
		obs := &recordingObserver{}
		env := newTestEnv(t, nil, WithObserver(obs))
		id := env.start(t)

		for i := 0; i < 5; i++ {
			_, err := env.manager.AddChunk(ctx, id, "x", 0)
			require.NoError(t, err)
		}
		_, err := env.manager.TriggerAI(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, 5, obs.chunks)
		assert.Equal(t, []bool{false, true}, obs.triggered)
	})

	t.Run("store failures", func(t *testing.T) {
		obs := &recordingObserver{}
		env := newTestEnv(t, downCache{}, WithObserver(obs))

		_, _ = env.manager.AddChunk(ctx, "s1", "x", 0)
		_, _ = env.manager.TriggerAI(ctx, "s1")
		assert.Equal(t, []string{"add_chunk", "trigger"}, obs.failures)
	})
}
