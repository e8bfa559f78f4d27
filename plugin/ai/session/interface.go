// Package session implements the live recording session core: the ephemeral
// session state, the summarization trigger policy, chunk ingestion and the
// start/status/end lifecycle that reconciles live state into the durable record.
package session

import (
	"context"

	"github.com/Momena-akhtar/classfellow-sub000/store"
)

// Service is the session API consumed by the HTTP layer.
type Service interface {
	// Start creates the durable record, then the live state.
	Start(ctx context.Context, courseID, studentID string) (*StartResult, error)

	// Status merges the durable record with the live state, if any. Read-only.
	Status(ctx context.Context, sessionID string) (*SessionStatus, error)

	// AddChunk appends a transcript fragment and evaluates the trigger policy.
	AddChunk(ctx context.Context, sessionID, text string, timestamp int64) (*ChunkResult, error)

	// End folds live state into the durable record, then deletes the live state.
	End(ctx context.Context, sessionID string, opts EndOptions) (*EndResult, error)

	// TriggerAI forces a summarization checkpoint without consulting the policy.
	TriggerAI(ctx context.Context, sessionID string) (*TriggerResult, error)
}

// RecordStore is the durable record collaborator. *store.Store implements it.
type RecordStore interface {
	CreateStudySession(ctx context.Context, create *store.StudySession) (*store.StudySession, error)
	GetStudySession(ctx context.Context, find *store.FindStudySession) (*store.StudySession, error)
	ListStudySessions(ctx context.Context, find *store.FindStudySession) ([]*store.StudySession, error)
	CloseStudySession(ctx context.Context, close *store.CloseStudySession) error
}

// StartResult is returned by Start.
type StartResult struct {
	SessionID string `json:"sessionId"`
	CourseID  string `json:"courseId"`
	StudentID string `json:"studentId"`
	StartedAt int64  `json:"startedAt"` // unix seconds
}

// SessionStatus is the merged view returned by Status.
type SessionStatus struct {
	SessionID  string         `json:"sessionId"`
	CourseID   string         `json:"courseId"`
	StudentID  string         `json:"studentId"`
	IsActive   bool           `json:"isActive"`
	StartedAt  int64          `json:"startedAt"`         // unix seconds
	EndedAt    *int64         `json:"endedAt,omitempty"` // unix seconds
	HasLive    bool           `json:"hasLiveState"`
	ChunkCount int64          `json:"chunkCount"`
	LastAICall int64          `json:"lastAICall"` // unix milliseconds
	Summaries  []SummaryEntry `json:"summaries"`
}

// ChunkResult is returned by AddChunk.
type ChunkResult struct {
	Triggered        bool           `json:"triggered"`
	ChunkCount       int64          `json:"chunkCount"`
	AIProcessed      int            `json:"aiProcessed"`
	CurrentSummaries []SummaryEntry `json:"currentSummaries"`
}

// EndOptions carries the optional caller overrides for End.
type EndOptions struct {
	Transcription *string
	DurationMs    *int64
}

// EndResult is returned by End.
type EndResult struct {
	SessionID     string         `json:"sessionId"`
	EndedAt       int64          `json:"endedAt"` // unix seconds
	Transcription string         `json:"transcription"`
	DurationMs    int64          `json:"duration"`
	Summaries     []SummaryEntry `json:"summaries"`
}

// TriggerResult is returned by TriggerAI.
type TriggerResult struct {
	SessionID  string         `json:"sessionId"`
	LastAICall int64          `json:"lastAICall"` // unix milliseconds
	Queued     bool           `json:"queued"`
	Summaries  []SummaryEntry `json:"summaries"`
}

// Observer receives session events for metrics. All methods must be cheap and non-blocking.
type Observer interface {
	ChunkIngested(sessionID string, chunkCount int64)
	Triggered(sessionID string, manual bool)
	SummaryStored(sessionID string)
	StoreFailure(op string, err error)
}

type nopObserver struct{}

func (nopObserver) ChunkIngested(string, int64) {}
func (nopObserver) Triggered(string, bool)      {}
func (nopObserver) SummaryStored(string)        {}
func (nopObserver) StoreFailure(string, error)  {}

var _ RecordStore = (*store.Store)(nil)
