package kvstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory keeps values in process memory. With a quota it refuses writes that
// would grow a namespace past the limit, the way browser storage limits each
// origin. The namespace of a key is the part before its first ':', which is
// the prefix applied by Namespace. Keys without one share the root namespace.
//
// With an idle TTL, entries not written for that long read as missing and are
// swept on later writes, releasing their bytes.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	used    map[string]int
	quota   int
	ttl     time.Duration
	now     func() time.Time
	swept   time.Time
}

type memoryEntry struct {
	value     string
	writtenAt time.Time
}

// MemoryOption customises a Memory store.
type MemoryOption func(*Memory)

// WithQuota limits the size of keys plus values in bytes for each namespace.
// Zero disables the limit.
func WithQuota(bytes int) MemoryOption {
	return func(m *Memory) {
		if bytes > 0 {
			m.quota = bytes
		}
	}
}

// WithIdleTTL expires entries that have not been written for ttl. Zero keeps entries forever.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMemoryClock overrides the clock used for idle expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory constructs an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		used:    make(map[string]int),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.swept = m.now()
	return m
}

// Get returns the stored value or ErrNotFound.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || m.expired(entry, now) {
		return "", ErrNotFound
	}
	return entry.value, nil
}

// Set stores value under key, replacing any previous value.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)

	ns := namespaceOf(key)
	delta := len(value)
	if old, ok := m.entries[key]; ok {
		delta -= len(old.value)
	} else {
		delta += len(key)
	}
	if m.quota > 0 && m.used[ns]+delta > m.quota {
		return ErrQuotaExceeded
	}
	m.entries[key] = memoryEntry{value: value, writtenAt: now}
	m.used[ns] += delta
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Len reports the number of live keys.
func (m *Memory) Len() int {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, entry := range m.entries {
		if !m.expired(entry, now) {
			n++
		}
	}
	return n
}

func (m *Memory) expired(entry memoryEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(entry.writtenAt) >= m.ttl
}

// sweep drops expired entries at most once per ttl. Callers hold the write lock.
func (m *Memory) sweep(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.swept) < m.ttl {
		return
	}
	m.swept = now
	for key, entry := range m.entries {
		if !m.expired(entry, now) {
			continue
		}
		ns := namespaceOf(key)
		m.used[ns] -= len(key) + len(entry.value)
		if m.used[ns] <= 0 {
			delete(m.used, ns)
		}
		delete(m.entries, key)
	}
}

func namespaceOf(key string) string {
	if ns, _, ok := strings.Cut(key, ":"); ok {
		return ns
	}
	return ""
}
