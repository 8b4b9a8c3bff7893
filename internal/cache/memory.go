package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize bounds the in-process cache when no size is configured.
const DefaultMemorySize = 1024

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryProvider implements Provider with a size-bounded in-process LRU.
// Entries carry their own TTL.
type MemoryProvider struct {
	mu    sync.Mutex
	cache *lru.Cache[string, memoryEntry]
	now   func() time.Time
}

// NewMemoryProvider creates an LRU provider holding at most size entries.
func NewMemoryProvider(size int) (*MemoryProvider, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	c, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{cache: c, now: time.Now}, nil
}

// Get returns a copy of the stored value or ErrCacheMiss.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if entry.expired(p.now()) {
		p.cache.Remove(key)
		return nil, ErrCacheMiss
	}
	return slices.Clone(entry.value), nil
}

// Set stores value, evicting the least recently used entry when full.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Add(key, p.entry(value, ttl))
	return nil
}

// Del removes key.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Remove(key)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (p *MemoryProvider) Len() int {
	return p.cache.Len()
}

// Close drops every entry.
func (p *MemoryProvider) Close() error {
	p.cache.Purge()
	return nil
}

func (p *MemoryProvider) entry(value []byte, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = p.now().Add(ttl)
	}
	return e
}
