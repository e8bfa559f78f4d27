package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai"
	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/timeout"
)

// DispatcherConfig configures asynchronous summarization.
type DispatcherConfig struct {
	MaxConcurrent int64         // concurrent summarizer calls across all sessions (default: 4)
	JobTimeout    time.Duration // per job, summarizer retries included (default: timeout.SummarizeTimeout)
}

// DefaultDispatcherConfig returns the default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxConcurrent: 4,
		JobTimeout:    timeout.SummarizeTimeout,
	}
}

// Dispatcher runs summarization jobs in the background, at most one per session.
//
// A job snapshots the chunks not yet summarized under the session lock, calls
// the summarizer without holding the lock, then re-locks, re-reads the state
// and appends the summary. If the session ended in between, the summary is dropped.
type Dispatcher struct {
	manager    *Manager
	summarizer ai.Summarizer
	sem        *semaphore.Weighted
	jobTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]bool
	closed   bool
}

func newDispatcher(m *Manager, s ai.Summarizer, cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = timeout.SummarizeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		manager:    m,
		summarizer: s,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrent),
		jobTimeout: cfg.JobTimeout,
		ctx:        ctx,
		cancel:     cancel,
		inflight:   make(map[string]bool),
	}
}

// Enqueue schedules a summarization job for the session. It returns false if
// a job for the session is already in flight or the dispatcher is closed.
func (d *Dispatcher) Enqueue(sessionID string) bool {
	d.mu.Lock()
	if d.closed || d.inflight[sessionID] {
		d.mu.Unlock()
		return false
	}
	d.inflight[sessionID] = true
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer d.finish(sessionID)

		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			slog.Debug("summarization cancelled before start", "session_id", sessionID)
			return
		}
		defer d.sem.Release(1)

		d.run(sessionID)
	}()
	return true
}

// InFlight reports whether a job for the session is queued or running.
func (d *Dispatcher) InFlight(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inflight[sessionID]
}

// Close stops accepting jobs, cancels outstanding ones and waits for them to return.
func (d *Dispatcher) Close() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Shutdown(ctx)
}

// Shutdown stops accepting jobs and lets outstanding ones finish until ctx is
// done. Jobs still running then are cancelled and their summaries dropped.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		slog.Warn("summarization jobs still running at shutdown, cancelling them")
	}
	d.cancel()
	<-drained
}

func (d *Dispatcher) finish(sessionID string) {
	d.mu.Lock()
	delete(d.inflight, sessionID)
	d.mu.Unlock()
}

func (d *Dispatcher) run(sessionID string) {
	ctx, cancel := context.WithTimeout(d.ctx, d.jobTimeout)
	defer cancel()

	text, through, ok := d.snapshot(ctx, sessionID)
	if !ok {
		return
	}

	summary, err := d.summarizer.Summarize(ctx, text)
	if err != nil {
		slog.Warn("summarization failed", "session_id", sessionID, "through_chunk", through, "error", err)
		return
	}
	if summary == "" {
		return
	}

	d.store(ctx, sessionID, summary, through)
}

// snapshot returns the unsummarized transcript. ok is false when there is nothing to do.
func (d *Dispatcher) snapshot(ctx context.Context, sessionID string) (string, int, bool) {
	unlock := d.manager.locks.Lock(sessionID)
	defer unlock()

	state, ok, err := d.manager.states.Load(ctx, sessionID)
	if err != nil {
		d.manager.observer.StoreFailure("summarize", err)
		slog.Warn("failed to load session state for summarization", "session_id", sessionID, "error", err)
		return "", 0, false
	}
	if !ok {
		return "", 0, false
	}

	text, through := state.PendingTranscript()
	if through <= state.SummarizedThrough || text == "" {
		return "", 0, false
	}
	return text, through, true
}

func (d *Dispatcher) store(ctx context.Context, sessionID, summary string, through int) {
	unlock := d.manager.locks.Lock(sessionID)
	defer unlock()

	state, ok, err := d.manager.states.Load(ctx, sessionID)
	if err != nil {
		d.manager.observer.StoreFailure("summarize", err)
		slog.Warn("failed to reload session state, dropping summary", "session_id", sessionID, "error", err)
		return
	}
	if !ok {
		slog.Info("session ended before summary was stored, dropping it", "session_id", sessionID, "through_chunk", through)
		return
	}
	if through <= state.SummarizedThrough {
		return
	}

	state.AppendSummary(d.manager.now(), summary, through)
	if err := d.manager.states.Save(ctx, sessionID, state); err != nil {
		d.manager.observer.StoreFailure("summarize", err)
		slog.Warn("failed to store summary", "session_id", sessionID, "error", err)
		return
	}

	d.manager.observer.SummaryStored(sessionID)
	slog.Info("summary stored", "session_id", sessionID, "through_chunk", through, "summaries", len(state.SummaryArray))
}
