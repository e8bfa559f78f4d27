package store

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrStudySessionNotActive is returned by CloseStudySession when no active
// session matches, either because it never existed or because it was already closed.
var ErrStudySessionNotActive = errors.New("study session not found or already closed")

// StudySession is the durable record of one recording session.
type StudySession struct {
	ID        int32
	UID       string
	CourseID  string
	StudentID string
	StartedTs int64
	EndedTs   *int64
	IsActive  bool
	// Meta is nil until the session is closed.
	Meta *StudySessionMeta
}

// StudySessionMeta is written exactly once, when the session is closed.
type StudySessionMeta struct {
	Transcription      string   `json:"transcription"`
	AISummary          string   `json:"aiSummary"`
	Duration           int64    `json:"duration"` // milliseconds
	Keywords           []string `json:"keywords"`
	AdditionalLinks    []string `json:"additionalLinks"`
	ReferenceMaterials []string `json:"referenceMaterials"`
}

type FindStudySession struct {
	ID        *int32
	UID       *string
	CourseID  *string
	StudentID *string
	IsActive  *bool
	// StartedBefore matches sessions with started_ts strictly below it, unix seconds.
	StartedBefore *int64
	Limit         *int
}

// CloseStudySession finalizes an active session.
type CloseStudySession struct {
	UID     string
	EndedTs int64
	Meta    *StudySessionMeta
}

// MarshalStudySessionMeta encodes meta for the meta column. A nil meta encodes as "".
func MarshalStudySessionMeta(meta *StudySessionMeta) (string, error) {
	if meta == nil {
		return "", nil
	}
	normalized := *meta
	if normalized.Keywords == nil {
		normalized.Keywords = []string{}
	}
	if normalized.AdditionalLinks == nil {
		normalized.AdditionalLinks = []string{}
	}
	if normalized.ReferenceMaterials == nil {
		normalized.ReferenceMaterials = []string{}
	}
	data, err := json.Marshal(&normalized)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal study session meta")
	}
	return string(data), nil
}

// UnmarshalStudySessionMeta decodes the meta column. An empty value decodes as nil.
func UnmarshalStudySessionMeta(raw string) (*StudySessionMeta, error) {
	if raw == "" {
		return nil, nil
	}
	meta := &StudySessionMeta{}
	if err := json.Unmarshal([]byte(raw), meta); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal study session meta")
	}
	return meta, nil
}
