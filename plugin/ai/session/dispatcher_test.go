package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSummarizer echoes its input. When gate is set, each call blocks until
// a value is sent on it or the context ends.
type stubSummarizer struct {
	mu     sync.Mutex
	inputs []string
	gate   chan struct{}
	err    error
}

func (s *stubSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, text)
	s.mu.Unlock()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return "summary of: " + text, nil
}

func (s *stubSummarizer) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.inputs...)
}

func waitIdle(t *testing.T, m *Manager, sessionID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !m.dispatcher.InFlight(sessionID)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_AppendsSummary(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{}
	obs := &recordingObserver{}
	env := newTestEnv(t, nil, WithSummarizer(summarizer, DefaultDispatcherConfig()), WithObserver(obs))
	id := env.start(t)

	for _, text := range []string{"a", "b", "c", "d", "e"} {
		_, err := env.manager.AddChunk(ctx, id, text, 0)
		require.NoError(t, err)
	}
	waitIdle(t, env.manager, id)

	status, err := env.manager.Status(ctx, id)
	require.NoError(t, err)
	require.Len(t, status.Summaries, 1)
	assert.Equal(t, "summary of: a b c d e", status.Summaries[0].Text)
	assert.Equal(t, 5, status.Summaries[0].ThroughChunk)
	assert.Equal(t, 1, obs.summaries)

	// Only the new chunk is summarized next time.
	res, err := env.manager.AddChunk(ctx, id, "f", 0)
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	waitIdle(t, env.manager, id)

	status, err = env.manager.Status(ctx, id)
	require.NoError(t, err)
	require.Len(t, status.Summaries, 2)
	assert.Equal(t, "summary of: f", status.Summaries[1].Text)

	end, err := env.manager.End(ctx, id, EndOptions{})
	require.NoError(t, err)
	assert.Len(t, end.Summaries, 2)
	assert.Contains(t, env.records.Get(id).Meta.AISummary, "summary of: f")
}

func TestDispatcher_OneJobPerSession(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{gate: make(chan struct{})}
	env := newTestEnv(t, nil, WithSummarizer(summarizer, DefaultDispatcherConfig()))
	id := env.start(t)

	for i := 0; i < 5; i++ {
		_, err := env.manager.AddChunk(ctx, id, "x", 0)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(summarizer.calls()) == 1 }, time.Second, 5*time.Millisecond)

	res, err := env.manager.TriggerAI(ctx, id)
	require.NoError(t, err)
	assert.False(t, res.Queued)

	summarizer.gate <- struct{}{}
	waitIdle(t, env.manager, id)
	assert.Len(t, summarizer.calls(), 1)
}

func TestDispatcher_DropsSummaryAfterEnd(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{gate: make(chan struct{})}
	env := newTestEnv(t, nil, WithSummarizer(summarizer, DefaultDispatcherConfig()))
	id := env.start(t)

	_, err := env.manager.AddChunk(ctx, id, "lecture", 0)
	require.NoError(t, err)
	res, err := env.manager.TriggerAI(ctx, id)
	require.NoError(t, err)
	require.True(t, res.Queued)
	require.Eventually(t, func() bool { return len(summarizer.calls()) == 1 }, time.Second, 5*time.Millisecond)

	end, err := env.manager.End(ctx, id, EndOptions{})
	require.NoError(t, err)
	assert.Empty(t, end.Summaries)

	summarizer.gate <- struct{}{}
	waitIdle(t, env.manager, id)

	_, ok, err := env.cache.Get(ctx, StateKey(id))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "[]", env.records.Get(id).Meta.AISummary)
}

func TestDispatcher_SummarizerError(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{err: errors.New("rate limited")}
	env := newTestEnv(t, nil, WithSummarizer(summarizer, DefaultDispatcherConfig()))
	id := env.start(t)

	_, err := env.manager.AddChunk(ctx, id, "x", 0)
	require.NoError(t, err)
	_, err = env.manager.TriggerAI(ctx, id)
	require.NoError(t, err)
	waitIdle(t, env.manager, id)

	status, err := env.manager.Status(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, status.Summaries)
	assert.Equal(t, int64(1), status.ChunkCount)
}

func TestDispatcher_NothingPending(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{}
	env := newTestEnv(t, nil, WithSummarizer(summarizer, DefaultDispatcherConfig()))
	id := env.start(t)

	res, err := env.manager.TriggerAI(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	waitIdle(t, env.manager, id)
	assert.Empty(t, summarizer.calls())
}

func TestDispatcher_CloseCancelsJobs(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{gate: make(chan struct{})}
	env := newTestEnv(t, nil, WithSummarizer(summarizer, DispatcherConfig{MaxConcurrent: 1, JobTimeout: time.Minute}))
	id := env.start(t)

	_, err := env.manager.AddChunk(ctx, id, "x", 0)
	require.NoError(t, err)
	_, err = env.manager.TriggerAI(ctx, id)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(summarizer.calls()) == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		env.manager.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	assert.False(t, env.manager.dispatcher.Enqueue(id))
	status, err := env.manager.Status(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, status.Summaries)
}

func TestDispatcher_ShutdownDrainsJobs(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{gate: make(chan struct{})}
	env := newTestEnv(t, nil, WithSummarizer(summarizer, DispatcherConfig{MaxConcurrent: 1, JobTimeout: time.Minute}))
	id := env.start(t)

	_, err := env.manager.AddChunk(ctx, id, "x", 0)
	require.NoError(t, err)
	_, err = env.manager.TriggerAI(ctx, id)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(summarizer.calls()) == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		env.manager.Shutdown(shutdownCtx)
		close(done)
	}()

	// New work is refused while the running job drains.
	require.Eventually(t, func() bool { return !env.manager.dispatcher.Enqueue("other") }, time.Second, 5*time.Millisecond)
	summarizer.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	status, err := env.manager.Status(ctx, id)
	require.NoError(t, err)
	require.Len(t, status.Summaries, 1)
	assert.Equal(t, "summary of: x", status.Summaries[0].Text)
}

func TestDispatcher_ShutdownDeadlineCancels(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{gate: make(chan struct{})}
	env := newTestEnv(t, nil, WithSummarizer(summarizer, DispatcherConfig{MaxConcurrent: 1, JobTimeout: time.Minute}))
	id := env.start(t)

	_, err := env.manager.AddChunk(ctx, id, "x", 0)
	require.NoError(t, err)
	_, err = env.manager.TriggerAI(ctx, id)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(summarizer.calls()) == 1 }, time.Second, 5*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	env.manager.Shutdown(shutdownCtx)

	status, err := env.manager.Status(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, status.Summaries)
}
