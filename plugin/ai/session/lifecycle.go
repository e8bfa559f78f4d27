package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai"
	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/timeout"
	"github.com/Momena-akhtar/classfellow-sub000/store"
)

// Manager implements Service.
//
// Ordering between the two stores is fixed: the durable record is written
// before live state is created (Start) and before live state is deleted (End).
// The stores never share a transaction.
//
// Concurrency: every read-modify-write of a session's state blob runs under a
// per-session in-process lock, so concurrent calls for one session within a
// process never lose chunks. The chunk counter is an independent atomic
// increment. Processes sharing one Redis do not share the lock; across them
// the blob is last-writer-wins.
type Manager struct {
	states       *StateStore
	records      RecordStore
	locks        *KeyedMutex
	policy       TriggerPolicy
	dispatcher   *Dispatcher
	observer     Observer
	now          func() time.Time
	storeTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTriggerPolicy overrides the default trigger policy.
func WithTriggerPolicy(policy TriggerPolicy) Option {
	return func(m *Manager) { m.policy = policy }
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithSummarizer enables asynchronous summarization of triggered sessions.
func WithSummarizer(s ai.Summarizer, cfg DispatcherConfig) Option {
	return func(m *Manager) {
		m.dispatcher = newDispatcher(m, s, cfg)
	}
}

// WithStoreTimeout bounds each durable store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.storeTimeout = d
		}
	}
}

// NewManager creates a session Manager.
func NewManager(states *StateStore, records RecordStore, opts ...Option) *Manager {
	m := &Manager{
		states:       states,
		records:      records,
		locks:        NewKeyedMutex(),
		policy:       DefaultTriggerPolicy(),
		observer:     nopObserver{},
		now:          time.Now,
		storeTimeout: timeout.StoreTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close cancels in-flight summarization jobs and waits for them to return.
func (m *Manager) Close() {
	if m.dispatcher != nil {
		m.dispatcher.Close()
	}
}

// Shutdown lets in-flight summarization jobs land until ctx is done, then
// cancels the rest.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.dispatcher != nil {
		m.dispatcher.Shutdown(ctx)
	}
}

func (m *Manager) Start(ctx context.Context, courseID, studentID string) (*StartResult, error) {
	courseID, studentID = strings.TrimSpace(courseID), strings.TrimSpace(studentID)
	if courseID == "" || studentID == "" {
		return nil, InvalidInput("courseId and studentId are required")
	}

	now := m.now()
	dctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	record, err := m.records.CreateStudySession(dctx, &store.StudySession{
		CourseID:  courseID,
		StudentID: studentID,
		StartedTs: now.Unix(),
	})
	cancel()
	if err != nil {
		slog.Error("failed to create durable session", "course_id", courseID, "student_id", studentID, "error", err)
		return nil, PersistenceError("failed to create session", err)
	}

	created, err := m.states.Create(ctx, record.UID, NewSessionState(now))
	if err != nil {
		m.observer.StoreFailure("start", err)
		slog.Error("failed to create live session state", "session_id", record.UID, "error", err)
		m.abandon(ctx, record.UID)
		return nil, StoreUnavailable("failed to initialize live session state", err)
	}
	if !created {
		slog.Warn("live session state already exists", "session_id", record.UID)
		m.abandon(ctx, record.UID)
		return nil, AlreadyExists(record.UID)
	}

	slog.Info("session started", "session_id", record.UID, "course_id", courseID, "student_id", studentID)
	return &StartResult{
		SessionID: record.UID,
		CourseID:  record.CourseID,
		StudentID: record.StudentID,
		StartedAt: record.StartedTs,
	}, nil
}

// abandon closes the durable record of a session that never got live state.
// On failure the record is left for the stale session janitor.
func (m *Manager) abandon(ctx context.Context, sessionID string) {
	if err := m.closeEmpty(ctx, sessionID); err != nil {
		slog.Error("orphaned durable session left active", "session_id", sessionID, "error", err)
		return
	}
	slog.Warn("closed durable session without live state", "session_id", sessionID)
}

func (m *Manager) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, InvalidInput("session id is required")
	}

	record, err := m.getRecord(ctx, sessionID)
	if err != nil {
		return nil, StoreUnavailable("failed to fetch session", err)
	}
	if record == nil {
		return nil, NotFound(sessionID)
	}

	status := &SessionStatus{
		SessionID:  record.UID,
		CourseID:   record.CourseID,
		StudentID:  record.StudentID,
		IsActive:   record.IsActive,
		StartedAt:  record.StartedTs,
		EndedAt:    record.EndedTs,
		LastAICall: record.StartedTs * 1000,
		Summaries:  []SummaryEntry{},
	}

	state, ok, err := m.states.Load(ctx, sessionID)
	if err != nil {
		m.observer.StoreFailure("status", err)
		slog.Warn("live session state unavailable, reporting durable view only", "session_id", sessionID, "error", err)
	}
	if ok {
		status.HasLive = true
		status.ChunkCount = state.ChunkCount
		status.LastAICall = state.LastAICall
		status.Summaries = state.Summaries()
	}
	return status, nil
}

func (m *Manager) End(ctx context.Context, sessionID string, opts EndOptions) (*EndResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, InvalidInput("session id is required")
	}
	if opts.DurationMs != nil && *opts.DurationMs < 0 {
		return nil, InvalidInput("duration must not be negative")
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	state, ok, err := m.states.Load(ctx, sessionID)
	if err != nil {
		m.observer.StoreFailure("end", err)
		slog.Error("failed to load live session state", "session_id", sessionID, "error", err)
		return nil, StoreUnavailable("live session state unavailable", err)
	}
	if !ok {
		return nil, NotFound(sessionID)
	}

	now := m.now()
	transcription := state.Transcript()
	if opts.Transcription != nil {
		transcription = *opts.Transcription
	}
	duration := now.UnixMilli() - state.SessionStart
	if opts.DurationMs != nil {
		duration = *opts.DurationMs
	}
	if duration < 0 {
		duration = 0
	}
	summaries := state.Summaries()
	aiSummary, err := encodeSummaries(summaries)
	if err != nil {
		return nil, PersistenceError("failed to encode summaries", err)
	}

	dctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	err = m.records.CloseStudySession(dctx, &store.CloseStudySession{
		UID:     sessionID,
		EndedTs: now.Unix(),
		Meta: &store.StudySessionMeta{
			Transcription:      transcription,
			AISummary:          aiSummary,
			Duration:           duration,
			Keywords:           []string{},
			AdditionalLinks:    []string{},
			ReferenceMaterials: []string{},
		},
	})
	cancel()
	if errors.Is(err, store.ErrStudySessionNotActive) {
		// The durable record is gone or already closed; the live state is an orphan.
		slog.Warn("live state without an active durable session, discarding", "session_id", sessionID)
		if delErr := m.states.Delete(ctx, sessionID); delErr != nil {
			m.observer.StoreFailure("end", delErr)
		}
		return nil, NotFound(sessionID)
	}
	if err != nil {
		slog.Error("failed to close durable session, live state kept for retry", "session_id", sessionID, "error", err)
		return nil, PersistenceError("failed to close session", err)
	}

	if err := m.states.Delete(ctx, sessionID); err != nil {
		// The durable copy is written; the live entry will expire on its own.
		m.observer.StoreFailure("end", err)
		slog.Warn("failed to delete live session state after close", "session_id", sessionID, "error", err)
	}

	slog.Info("session ended",
		"session_id", sessionID,
		"chunk_count", len(state.TranscriptChunks),
		"summaries", len(summaries),
		"duration_ms", duration)
	return &EndResult{
		SessionID:     sessionID,
		EndedAt:       now.Unix(),
		Transcription: transcription,
		DurationMs:    duration,
		Summaries:     summaries,
	}, nil
}

func (m *Manager) TriggerAI(ctx context.Context, sessionID string) (*TriggerResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, InvalidInput("session id is required")
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	state, ok, err := m.states.Load(ctx, sessionID)
	if err != nil {
		m.storeFailure("trigger", sessionID, err)
		return nil, NotFound(sessionID)
	}
	if !ok {
		return nil, NotFound(sessionID)
	}

	state.LastAICall = m.now().UnixMilli()
	if err := m.states.Save(ctx, sessionID, state); err != nil {
		m.storeFailure("trigger", sessionID, err)
		return nil, NotFound(sessionID)
	}
	m.observer.Triggered(sessionID, true)

	queued := false
	if m.dispatcher != nil {
		queued = m.dispatcher.Enqueue(sessionID)
	}

	return &TriggerResult{
		SessionID:  sessionID,
		LastAICall: state.LastAICall,
		Queued:     queued,
		Summaries:  state.Summaries(),
	}, nil
}

func (m *Manager) getRecord(ctx context.Context, sessionID string) (*store.StudySession, error) {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	return m.records.GetStudySession(ctx, &store.FindStudySession{UID: &sessionID})
}

var _ Service = (*Manager)(nil)
