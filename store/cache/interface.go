// Package cache provides the ephemeral key-value store that holds live session state.
package cache

import (
	"context"
	"time"
)

// StateCache is the contract shared by the in-memory and Redis backends.
//
// A missing key is reported as (nil, false, nil). A non-nil error always
// means the backend could not be reached or answered garbage; callers decide
// whether that is fatal.
type StateCache interface {
	// Get retrieves a value. Returns: value, whether it exists, backend error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL (0 means no expiry).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores a value only if the key does not exist yet.
	// Returns false when the key was already present.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Incr atomically increments an integer counter and refreshes its TTL.
	// A missing counter starts at zero.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Close releases the backend.
	Close() error
}
