package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Momena-akhtar/classfellow-sub000/store"
)

func TestNewSessionCleanupJob(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		job := NewSessionCleanupJob(nil, CleanupConfig{})
		assert.Equal(t, DefaultStateTTL, job.config.MaxAge)
		assert.Equal(t, DefaultCleanupInterval, job.config.CleanupInterval)
		assert.Equal(t, DefaultCleanupBatch, job.config.BatchSize)
	})

	t.Run("custom config", func(t *testing.T) {
		job := NewSessionCleanupJob(nil, CleanupConfig{MaxAge: time.Hour, CleanupInterval: time.Minute, BatchSize: 10})
		assert.Equal(t, time.Hour, job.config.MaxAge)
		assert.Equal(t, time.Minute, job.config.CleanupInterval)
		assert.Equal(t, 10, job.config.BatchSize)
	})
}

func TestManager_CloseStale(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	now := env.clock.Now().Unix()

	// Old and never ended, live state expired.
	env.records.Put(&store.StudySession{ID: 1, UID: "stale", CourseID: "c", StudentID: "s", StartedTs: now - 2*86400, IsActive: true})
	// Recent, live state expired: not old enough.
	env.records.Put(&store.StudySession{ID: 2, UID: "recent", CourseID: "c", StudentID: "s", StartedTs: now - 60, IsActive: true})
	// Old but already closed.
	ended := now - 86400
	env.records.Put(&store.StudySession{ID: 3, UID: "closed", CourseID: "c", StudentID: "s", StartedTs: now - 3*86400, EndedTs: &ended, IsActive: false})
	// Old but still live.
	env.records.Put(&store.StudySession{ID: 4, UID: "live", CourseID: "c", StudentID: "s", StartedTs: now - 2*86400, IsActive: true})
	created, err := env.manager.states.Create(ctx, "live", NewSessionState(env.clock.Now()))
	require.NoError(t, err)
	require.True(t, created)

	closed, err := env.manager.CloseStale(ctx, DefaultStateTTL, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	stale := env.records.Get("stale")
	assert.False(t, stale.IsActive)
	require.NotNil(t, stale.EndedTs)
	assert.Equal(t, now, *stale.EndedTs)
	require.NotNil(t, stale.Meta)
	assert.Equal(t, "", stale.Meta.Transcription)
	assert.Equal(t, "[]", stale.Meta.AISummary)

	assert.True(t, env.records.Get("recent").IsActive)
	assert.True(t, env.records.Get("live").IsActive)
	assert.Equal(t, &ended, env.records.Get("closed").EndedTs)

	closed, err = env.manager.CloseStale(ctx, DefaultStateTTL, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), closed)
}

func TestManager_CloseStaleErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("list failure", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.records.GetErr = errors.New("timeout")
		_, err := env.manager.CloseStale(ctx, time.Hour, 0)
		assert.True(t, IsCode(err, ErrCodePersistenceError))
	})

	t.Run("ephemeral store down leaves records alone", func(t *testing.T) {
		env := newTestEnv(t, downCache{})
		env.records.Put(&store.StudySession{ID: 1, UID: "s1", StartedTs: 0, IsActive: true})

		closed, err := env.manager.CloseStale(ctx, time.Hour, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), closed)
		assert.True(t, env.records.Get("s1").IsActive)
	})
}

type countingCloser struct {
	runs atomic.Int32
}

func (c *countingCloser) CloseStale(context.Context, time.Duration, int) (int64, error) {
	c.runs.Add(1)
	return 0, nil
}

func TestSessionCleanupJob_StartStop(t *testing.T) {
	closer := &countingCloser{}
	job := NewSessionCleanupJob(closer, CleanupConfig{CleanupInterval: 10 * time.Millisecond})

	job.Start(context.Background())
	job.Start(context.Background())
	assert.True(t, job.IsRunning())

	require.Eventually(t, func() bool { return closer.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	job.Stop()
	assert.False(t, job.IsRunning())
	runs := closer.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, runs, closer.runs.Load())

	job.Stop()
}

func TestSessionCleanupJob_RunOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	env.records.Put(&store.StudySession{ID: 1, UID: "stale", StartedTs: 0, IsActive: true})

	job := NewSessionCleanupJob(env.manager, CleanupConfig{})
	closed, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)
}
