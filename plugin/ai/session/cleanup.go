package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Momena-akhtar/classfellow-sub000/store"
)

const (
	// DefaultCleanupInterval is the default interval between cleanup runs.
	DefaultCleanupInterval = time.Hour
	// DefaultCleanupBatch bounds the records inspected per run.
	DefaultCleanupBatch = 200
)

// CleanupConfig holds configuration for the cleanup job.
type CleanupConfig struct {
	MaxAge          time.Duration // active records older than this are candidates (default: DefaultStateTTL)
	CleanupInterval time.Duration // interval between cleanup runs (default: 1h)
	BatchSize       int           // records inspected per run (default: 200)
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		MaxAge:          DefaultStateTTL,
		CleanupInterval: DefaultCleanupInterval,
		BatchSize:       DefaultCleanupBatch,
	}
}

// StaleCloser closes durable sessions whose live state has expired.
type StaleCloser interface {
	CloseStale(ctx context.Context, olderThan time.Duration, limit int) (int64, error)
}

// SessionCleanupJob periodically closes durable sessions that were never
// ended and whose live state expired, so they stop reporting isActive.
type SessionCleanupJob struct {
	closer StaleCloser
	config CleanupConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewSessionCleanupJob creates a new cleanup job.
func NewSessionCleanupJob(closer StaleCloser, config CleanupConfig) *SessionCleanupJob {
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultStateTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultCleanupBatch
	}

	return &SessionCleanupJob{
		closer: closer,
		config: config,
	}
}

// Start begins the periodic cleanup in a goroutine. It is a no-op if already running.
func (j *SessionCleanupJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return
	}

	j.running = true
	j.stopChan = make(chan struct{})
	j.done = make(chan struct{})

	go j.run(ctx, j.stopChan, j.done)

	slog.Info("session cleanup job started",
		"max_age", j.config.MaxAge,
		"interval", j.config.CleanupInterval)
}

// Stop stops the cleanup job and waits for the current run to return.
func (j *SessionCleanupJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopChan)
	done := j.done
	j.running = false
	j.mu.Unlock()

	<-done
	slog.Info("session cleanup job stopped")
}

// RunOnce executes a single cleanup run immediately.
func (j *SessionCleanupJob) RunOnce(ctx context.Context) (int64, error) {
	return j.closer.CloseStale(ctx, j.config.MaxAge, j.config.BatchSize)
}

// IsRunning returns whether the cleanup job is currently running.
func (j *SessionCleanupJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *SessionCleanupJob) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.config.CleanupInterval)
	defer ticker.Stop()

	j.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *SessionCleanupJob) runLogged(ctx context.Context) {
	closed, err := j.RunOnce(ctx)
	if err != nil {
		slog.Error("session cleanup failed", "error", err)
		return
	}
	if closed > 0 {
		slog.Info("session cleanup completed", "closed", closed)
	}
}

// CloseStale closes active durable sessions started more than olderThan ago
// that have no live state. Sessions whose live state is still present, or
// whose state cannot be read, are left alone. The closing meta is empty:
// the transcript expired with the live state.
func (m *Manager) CloseStale(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	active := true
	before := m.now().Add(-olderThan).Unix()
	find := &store.FindStudySession{IsActive: &active, StartedBefore: &before}
	if limit > 0 {
		find.Limit = &limit
	}

	lctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	candidates, err := m.records.ListStudySessions(lctx, find)
	cancel()
	if err != nil {
		return 0, PersistenceError("failed to list stale sessions", err)
	}

	var closed int64
	for _, record := range candidates {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		ok, err := m.closeIfOrphaned(ctx, record)
		if err != nil {
			slog.Warn("failed to close stale session", "session_id", record.UID, "error", err)
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

func (m *Manager) closeIfOrphaned(ctx context.Context, record *store.StudySession) (bool, error) {
	unlock := m.locks.Lock(record.UID)
	defer unlock()

	_, live, err := m.states.Load(ctx, record.UID)
	if err != nil {
		m.observer.StoreFailure("cleanup", err)
		return false, err
	}
	if live {
		return false, nil
	}

	err = m.closeEmpty(ctx, record.UID)
	if errors.Is(err, store.ErrStudySessionNotActive) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	slog.Info("closed stale session", "session_id", record.UID, "started_ts", record.StartedTs)
	return true, nil
}

// closeEmpty closes an active durable session whose transcript is lost,
// recording an empty meta.
func (m *Manager) closeEmpty(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	return m.records.CloseStudySession(ctx, &store.CloseStudySession{
		UID:     sessionID,
		EndedTs: m.now().Unix(),
		Meta: &store.StudySessionMeta{
			AISummary:          emptySummaryLog,
			Keywords:           []string{},
			AdditionalLinks:    []string{},
			ReferenceMaterials: []string{},
		},
	})
}
