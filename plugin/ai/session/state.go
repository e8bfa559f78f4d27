package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Chunk is one timestamped transcript fragment from the capture client.
type Chunk struct {
	Timestamp int64  `json:"timestamp"` // capture time, unix seconds, not validated
	Text      string `json:"text"`
}

// SummaryEntry is one summary fragment in the session's summary log.
type SummaryEntry struct {
	TriggeredAt  int64  `json:"triggeredAt"` // unix milliseconds
	Text         string `json:"text"`
	ThroughChunk int    `json:"throughChunk"` // number of chunks covered by this and earlier entries
}

// SessionState is the live, ephemeral state of one active session.
// It is stored as a single JSON blob and rewritten on every mutation.
type SessionState struct {
	TranscriptChunks  []Chunk        `json:"transcriptChunks"`
	ChunkCount        int64          `json:"chunkCount"`
	SummaryArray      []SummaryEntry `json:"summaryArray"`
	LastAICall        int64          `json:"lastAICall"`   // unix milliseconds
	SessionStart      int64          `json:"sessionStart"` // unix milliseconds
	SummarizedThrough int            `json:"summarizedThrough"`
}

// NewSessionState returns empty state with sessionStart and lastAICall set to now.
func NewSessionState(now time.Time) *SessionState {
	ms := now.UnixMilli()
	return &SessionState{
		TranscriptChunks: []Chunk{},
		SummaryArray:     []SummaryEntry{},
		LastAICall:       ms,
		SessionStart:     ms,
	}
}

// AppendChunk adds a fragment in arrival order.
func (s *SessionState) AppendChunk(timestamp int64, text string) {
	s.TranscriptChunks = append(s.TranscriptChunks, Chunk{Timestamp: timestamp, Text: text})
}

// Transcript joins all buffered chunk texts in buffer order with a single space.
func (s *SessionState) Transcript() string {
	texts := make([]string, len(s.TranscriptChunks))
	for i, c := range s.TranscriptChunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, " ")
}

// PendingTranscript returns the text of chunks not yet covered by a summary,
// and the chunk count a summary of that text would cover.
func (s *SessionState) PendingTranscript() (string, int) {
	from := s.SummarizedThrough
	if from < 0 || from > len(s.TranscriptChunks) {
		from = 0
	}
	texts := make([]string, 0, len(s.TranscriptChunks)-from)
	for _, c := range s.TranscriptChunks[from:] {
		texts = append(texts, c.Text)
	}
	return strings.Join(texts, " "), len(s.TranscriptChunks)
}

// AppendSummary records a summary covering the first throughChunk chunks.
func (s *SessionState) AppendSummary(at time.Time, text string, throughChunk int) {
	s.SummaryArray = append(s.SummaryArray, SummaryEntry{
		TriggeredAt:  at.UnixMilli(),
		Text:         text,
		ThroughChunk: throughChunk,
	})
	if throughChunk > s.SummarizedThrough {
		s.SummarizedThrough = throughChunk
	}
}

// Summaries returns a copy of the summary log.
func (s *SessionState) Summaries() []SummaryEntry {
	out := make([]SummaryEntry, len(s.SummaryArray))
	copy(out, s.SummaryArray)
	return out
}

// LastAICallTime returns lastAICall as a time.Time.
func (s *SessionState) LastAICallTime() time.Time {
	return time.UnixMilli(s.LastAICall)
}

func (s *SessionState) encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session state: %w", err)
	}
	return data, nil
}

func decodeSessionState(data []byte) (*SessionState, error) {
	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	if state.TranscriptChunks == nil {
		state.TranscriptChunks = []Chunk{}
	}
	if state.SummaryArray == nil {
		state.SummaryArray = []SummaryEntry{}
	}
	return state, nil
}

// emptySummaryLog is the durable aiSummary of a session with no summaries.
const emptySummaryLog = "[]"

// encodeSummaries serializes the summary log for the durable aiSummary field.
func encodeSummaries(entries []SummaryEntry) (string, error) {
	if len(entries) == 0 {
		return emptySummaryLog, nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summaries: %w", err)
	}
	return string(data), nil
}
