package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrCapacityExceeded is returned when every slot holds a live entry.
// Live entries are never evicted; they end only when their TTL lapses or they are deleted.
var ErrCapacityExceeded = errors.New("memory cache is full of live entries")

// Config configures the in-memory cache.
type Config struct {
	MaxItems        int           // Maximum number of entries (default: 100000)
	CleanupInterval time.Duration // Interval for expired entry cleanup (default: 1 minute)
}

// DefaultConfig returns the default in-memory cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxItems:        100000,
		CleanupInterval: time.Minute,
	}
}

// MemoryCache is a single-process StateCache with per-entry TTL and a hard
// entry cap. It is the default backend when Redis is not configured.
type MemoryCache struct {
	capacity int
	mu       sync.Mutex

	items map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache creates a new in-memory cache and starts its cleanup loop.
func NewMemoryCache(cfg Config) *MemoryCache {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 100000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &MemoryCache{
		capacity: cfg.MaxItems,
		items:    make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
	}

	c.wg.Add(1)
	go c.cleanupLoop(cfg.CleanupInterval)

	return c
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		return nil, false, nil
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a value in the cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.put(key, value, ttl)
}

// SetNX stores a value only if the key is absent or expired.
func (c *MemoryCache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lookup(key); ok {
		return false, nil
	}
	if err := c.put(key, value, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes keys from the cache.
func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.items, key)
	}
	return nil
}

// Incr atomically increments the counter stored at key.
func (c *MemoryCache) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	if e, ok := c.lookup(key); ok {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "value at %s is not an integer", key)
		}
		current = n
	}

	current++
	if err := c.put(key, []byte(strconv.FormatInt(current, 10)), ttl); err != nil {
		return 0, err
	}
	return current, nil
}

// Size returns the number of entries in the cache, including expired ones not yet swept.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the cleanup loop.
func (c *MemoryCache) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

// CleanupExpired removes all expired entries.
// Returns the number of entries removed.
func (c *MemoryCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep(time.Now())
}

// lookup returns a live entry, dropping it if expired.
// Must be called with lock held.
func (c *MemoryCache) lookup(key string) (*entry, bool) {
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.items, key)
		return nil, false
	}
	return e, true
}

// put inserts or replaces an entry. A new key is refused with
// ErrCapacityExceeded when the cache is full even after sweeping expired entries.
// Must be called with lock held.
func (c *MemoryCache) put(key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if e, ok := c.items[key]; ok {
		e.value = stored
		e.expiresAt = expiresAt
		return nil
	}

	if len(c.items) >= c.capacity && c.sweep(time.Now()) == 0 {
		slog.Warn("memory cache at capacity, refusing new entry", "key", key, "capacity", c.capacity)
		return errors.Wrapf(ErrCapacityExceeded, "set %s", key)
	}

	c.items[key] = &entry{value: stored, expiresAt: expiresAt}
	return nil
}

// sweep removes expired entries and returns how many were removed.
// Must be called with lock held.
func (c *MemoryCache) sweep(now time.Time) int {
	removed := 0
	for key, e := range c.items {
		if e.expired(now) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// cleanupLoop periodically removes expired entries.
func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CleanupExpired()
		}
	}
}

// Ensure MemoryCache implements StateCache
var _ StateCache = (*MemoryCache)(nil)
