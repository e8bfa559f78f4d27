package session

import (
	"context"
	"log/slog"
	"strings"
)

// AddChunk appends a transcript fragment to live state.
//
// The chunk count used for the trigger decision is the value returned by the
// atomic counter, not the buffer length. Ephemeral store failures are logged
// and reported as NotFound so ingestion never surfaces a distinct outage error.
func (m *Manager) AddChunk(ctx context.Context, sessionID, text string, timestamp int64) (*ChunkResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, InvalidInput("session id is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, InvalidInput("text must not be empty")
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	state, ok, err := m.states.Load(ctx, sessionID)
	if err != nil {
		m.storeFailure("add_chunk", sessionID, err)
		return nil, NotFound(sessionID)
	}
	if !ok {
		return nil, NotFound(sessionID)
	}

	state.AppendChunk(timestamp, text)

	count, err := m.states.IncrChunks(ctx, sessionID)
	if err != nil {
		m.storeFailure("add_chunk", sessionID, err)
		return nil, NotFound(sessionID)
	}
	state.ChunkCount = count

	now := m.now()
	triggered := m.policy.ShouldTrigger(now, state.LastAICallTime(), count)
	aiProcessed := 0
	if triggered {
		state.LastAICall = now.UnixMilli()
		aiProcessed = 1
	}

	if err := m.states.Save(ctx, sessionID, state); err != nil {
		m.storeFailure("add_chunk", sessionID, err)
		return nil, NotFound(sessionID)
	}

	m.observer.ChunkIngested(sessionID, count)
	if triggered {
		m.observer.Triggered(sessionID, false)
		slog.Debug("summarization due", "session_id", sessionID, "chunk_count", count)
		if m.dispatcher != nil {
			m.dispatcher.Enqueue(sessionID)
		}
	}

	return &ChunkResult{
		Triggered:        triggered,
		ChunkCount:       count,
		AIProcessed:      aiProcessed,
		CurrentSummaries: state.Summaries(),
	}, nil
}

func (m *Manager) storeFailure(op, sessionID string, err error) {
	m.observer.StoreFailure(op, err)
	slog.Warn("ephemeral store failure, reporting session as not found",
		"op", op,
		"session_id", sessionID,
		"error", err)
}
