package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("cache: not found")

// Store is a byte-oriented TTL cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Close() error
}

type entry struct {
	val     []byte
	expires time.Time
}

// MemoryStore keeps entries in a map and sweeps expired ones in the background.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	cleaner *time.Ticker
	done    chan struct{}
	once    sync.Once
}

func NewMemoryStore(sweep time.Duration) *MemoryStore {
	if sweep <= 0 {
		sweep = 10 * time.Second
	}
	m := &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	m.cleaner = time.NewTicker(sweep)
	go m.backgroundCleaner()
	return m
}

func (m *MemoryStore) backgroundCleaner() {
	for {
		select {
		case <-m.cleaner.C:
			m.TrimExpired()
		case <-m.done:
			m.cleaner.Stop()
			return
		}
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expires) {
		return nil, ErrNotFound
	}
	return e.val, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{val: append([]byte(nil), val...), expires: m.now().Add(ttl)}
	return nil
}

// TrimExpired drops every entry past its deadline.
func (m *MemoryStore) TrimExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
