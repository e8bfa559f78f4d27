package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/timeout"
	"github.com/Momena-akhtar/classfellow-sub000/store/cache"
)

const (
	stateKeyPrefix   = "session:state:"
	counterKeyPrefix = "session:chunks:"

	// DefaultStateTTL is how long live state survives without activity.
	DefaultStateTTL = 24 * time.Hour
)

// StateKey returns the ephemeral key of a session's state blob.
func StateKey(sessionID string) string {
	return stateKeyPrefix + sessionID
}

// CounterKey returns the ephemeral key of a session's chunk counter.
func CounterKey(sessionID string) string {
	return counterKeyPrefix + sessionID
}

// StateStore reads and writes SessionState in the ephemeral store.
// Every call is bounded by the configured timeout. Load separates an absent
// entry (ok == false, nil error) from an unreachable store (non-nil error);
// callers decide how to surface each.
type StateStore struct {
	cache   cache.StateCache
	ttl     time.Duration
	timeout time.Duration
}

// NewStateStore wraps an ephemeral cache. Non-positive ttl or callTimeout fall back to defaults.
func NewStateStore(c cache.StateCache, ttl, callTimeout time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if callTimeout <= 0 {
		callTimeout = timeout.StoreTimeout
	}
	return &StateStore{
		cache:   c,
		ttl:     ttl,
		timeout: callTimeout,
	}
}

// TTL returns the lifetime applied on every write.
func (s *StateStore) TTL() time.Duration {
	return s.ttl
}

// Load fetches the state of a session.
func (s *StateStore) Load(ctx context.Context, sessionID string) (*SessionState, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, ok, err := s.cache.Get(ctx, StateKey(sessionID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session state: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	state, err := decodeSessionState(data)
	if err != nil {
		return nil, false, err
	}
	return state, true, nil
}

// Create stores fresh state only if none exists. It returns false when the key is taken.
func (s *StateStore) Create(ctx context.Context, sessionID string, state *SessionState) (bool, error) {
	data, err := state.encode()
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.cache.SetNX(ctx, StateKey(sessionID), data, s.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to create session state: %w", err)
	}
	return created, nil
}

// Save overwrites the state blob and refreshes its TTL.
func (s *StateStore) Save(ctx context.Context, sessionID string, state *SessionState) error {
	data, err := state.encode()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.cache.Set(ctx, StateKey(sessionID), data, s.ttl); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// IncrChunks atomically increments the session's chunk counter and refreshes its TTL.
func (s *StateStore) IncrChunks(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.cache.Incr(ctx, CounterKey(sessionID), s.ttl)
	if err != nil {
		return 0, fmt.Errorf("failed to increment chunk counter: %w", err)
	}
	return n, nil
}

// Delete removes both the state blob and the chunk counter.
func (s *StateStore) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.cache.Delete(ctx, StateKey(sessionID), CounterKey(sessionID)); err != nil {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}
