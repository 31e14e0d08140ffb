// Package cache provides the SDK response cache: a bounded in-memory LRU
// store with per-entry TTLs, typed events, and a Redis-backed alternative for
// shared deployments. Key construction lives in keys.go.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/CardaLabs/sdk/pkg/logger"
)

// Cache is the store contract consumed by the SDK facade. The interface is
// context-aware so out-of-process backends can implement it.
type Cache interface {
	// Get returns the value for key. The bool reports presence, so stored
	// nil values round-trip exactly.
	Get(ctx context.Context, key string) (interface{}, bool, error)

	// Set stores value under key with the configured default TTL.
	Set(ctx context.Context, key string, value interface{}) error

	// SetTTL stores value with an explicit TTL. A zero TTL is immediately
	// expired.
	SetTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes key, reporting whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Has reports whether key is present and unexpired without touching
	// recency order or hit/miss counters.
	Has(ctx context.Context, key string) (bool, error)

	// Stats returns a snapshot of cache statistics.
	Stats() Stats

	// Close releases background resources.
	Close() error
}

// Stats is a point-in-time view of cache performance.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	Evictions   int64   `json:"evictions"`
	MemoryUsage int64   `json:"memory_usage"`
}

// Options configures the in-memory cache.
type Options struct {
	// MaxSize bounds the number of entries. 0 uses the default of 1000.
	MaxSize int
	// DefaultTTL applies when Set is called without an explicit TTL.
	// 0 uses the default of 5 minutes.
	DefaultTTL time.Duration
	// SweepInterval enables a background sweep removing expired entries
	// without waiting for access. 0 disables the sweep.
	SweepInterval time.Duration
	Logger        *logger.Logger
}

type entry struct {
	key          string
	value        interface{}
	createdAt    time.Time
	expiresAt    time.Time
	accessCount  int64
	lastAccessed time.Time
	element      *list.Element
}

// Memory is the default in-process Cache: a map plus a doubly linked list
// encoding recency order with the most-recently-used entry at the front.
type Memory struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	entries    map[string]*entry
	recency    *list.List

	hits      int64
	misses    int64
	evictions int64

	notifier *notifier
	log      *logger.Logger

	sweepStop chan struct{}
	closeOnce sync.Once
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache.
func NewMemory(opts Options) *Memory {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("cache")
	}

	c := &Memory{
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		entries:    make(map[string]*entry),
		recency:    list.New(),
		notifier:   newNotifier(log),
		log:        log,
		sweepStop:  make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		go c.sweepLoop(opts.SweepInterval)
	}
	return c
}

// Subscribe registers a cache event listener and returns an unsubscribe
// function. Listener panics are swallowed and logged.
func (c *Memory) Subscribe(fn Listener) func() {
	return c.notifier.subscribe(fn)
}

func (c *Memory) Get(_ context.Context, key string) (interface{}, bool, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.notifier.emit(EventMiss, key)
		return nil, false, nil
	}

	if time.Now().After(e.expiresAt) {
		// Lazy expiry: evict first, then count the miss.
		c.removeLocked(e)
		c.misses++
		c.mu.Unlock()
		c.notifier.emit(EventExpired, key)
		c.notifier.emit(EventMiss, key)
		return nil, false, nil
	}

	e.accessCount++
	e.lastAccessed = time.Now()
	c.recency.MoveToFront(e.element)
	c.hits++
	value := e.value
	c.mu.Unlock()

	c.notifier.emit(EventHit, key)
	return value, true, nil
}

func (c *Memory) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetTTL(ctx, key, value, c.defaultTTL)
}

func (c *Memory) SetTTL(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		// Overwrite refreshes the entry's lifecycle.
		e.value = value
		e.createdAt = now
		e.expiresAt = now.Add(ttl)
		e.lastAccessed = now
		c.recency.MoveToFront(e.element)
		c.mu.Unlock()
		c.notifier.emit(EventSet, key)
		return nil
	}

	var evictedKey string
	if len(c.entries) >= c.maxSize {
		if tail := c.recency.Back(); tail != nil {
			victim := tail.Value.(*entry)
			evictedKey = victim.key
			c.removeLocked(victim)
			c.evictions++
		}
	}

	e := &entry{
		key:          key,
		value:        value,
		createdAt:    now,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
	}
	e.element = c.recency.PushFront(e)
	c.entries[key] = e
	c.mu.Unlock()

	if evictedKey != "" {
		c.notifier.emit(EventEvicted, evictedKey)
	}
	c.notifier.emit(EventSet, key)
	return nil
}

func (c *Memory) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.removeLocked(e)
	}
	c.mu.Unlock()

	if ok {
		c.notifier.emit(EventDelete, key)
	}
	return ok, nil
}

func (c *Memory) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.recency.Init()
	c.mu.Unlock()

	c.notifier.emit(EventClear, "")
	return nil
}

func (c *Memory) Has(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return !time.Now().After(e.expiresAt), nil
}

func (c *Memory) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      len(c.entries),
		MaxSize:   c.maxSize,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	for _, e := range c.entries {
		stats.MemoryUsage += approxSize(e.key, e.value)
	}
	return stats
}

func (c *Memory) Close() error {
	c.closeOnce.Do(func() {
		close(c.sweepStop)
	})
	return nil
}

// removeLocked deletes the entry from both the map and recency list.
// Callers must hold c.mu.
func (c *Memory) removeLocked(e *entry) {
	delete(c.entries, e.key)
	c.recency.Remove(e.element)
}

func (c *Memory) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sweepStop:
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *Memory) sweepExpired() {
	now := time.Now()

	c.mu.Lock()
	var expired []string
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeLocked(c.entries[key])
	}
	c.mu.Unlock()

	for _, key := range expired {
		c.notifier.emit(EventExpired, key)
	}
}

// approxSize estimates the memory footprint of one entry. Exact accounting is
// not worth the reflection cost; the stat exists for dashboards only.
func approxSize(key string, value interface{}) int64 {
	const entryOverhead = 96

	size := int64(len(key)) + entryOverhead
	switch v := value.(type) {
	case string:
		size += int64(len(v))
	case []byte:
		size += int64(len(v))
	default:
		size += 64
	}
	return size
}
