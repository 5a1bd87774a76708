// Package checkpoint persists conversation state between turns so a
// dialogue can resume where it left off. Stores are keyed by conversation
// id; two conversations never observe each other's state.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hearthlabs/scheduler/internal/metrics"
	"github.com/hearthlabs/scheduler/internal/state"
)

// ErrNotFound is returned when no checkpoint exists for a conversation.
var ErrNotFound = errors.New("checkpoint: not found")

// Store is the persistence boundary the workflow engine writes through.
type Store interface {
	Get(ctx context.Context, conversationID string) (*state.State, error)
	Put(ctx context.Context, st *state.State) error
}

const (
	// DefaultTTL bounds how long an idle conversation survives. No
	// policy is inherent to the workflow; this store picks an explicit
	// one rather than growing without bound.
	DefaultTTL = 24 * time.Hour

	// DefaultMaxEntries caps the in-memory store before LRU eviction.
	DefaultMaxEntries = 10000
)

type memoryEntry struct {
	data       []byte
	expiresAt  time.Time
	lastAccess time.Time
}

// MemoryStore is a process-local Store with TTL and LRU size-cap
// eviction. States are stored serialized so callers never share pointers
// with the store.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryStore returns a memory store with the given TTL and size cap;
// zero values select the defaults.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, conversationID string) (*state.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[conversationID]
	if !ok {
		metrics.CheckpointMisses.Inc()
		return nil, ErrNotFound
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, conversationID)
		metrics.CheckpointMisses.Inc()
		return nil, ErrNotFound
	}
	entry.lastAccess = m.now()
	metrics.CheckpointHits.Inc()

	var st state.State
	if err := json.Unmarshal(entry.data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *MemoryStore) Put(ctx context.Context, st *state.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[st.ConversationID] = &memoryEntry{
		data:       data,
		expiresAt:  now.Add(m.ttl),
		lastAccess: now,
	}
	m.evictLocked()
	metrics.CheckpointStoreSize.Set(float64(len(m.entries)))
	return nil
}

// evictLocked drops expired entries first, then the least recently used
// until under the cap.
func (m *MemoryStore) evictLocked() {
	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
			metrics.CheckpointEvictions.Inc()
		}
	}
	for len(m.entries) > m.maxEntries {
		oldestID := ""
		var oldest time.Time
		for id, e := range m.entries {
			if oldestID == "" || e.lastAccess.Before(oldest) {
				oldestID, oldest = id, e.lastAccess
			}
		}
		delete(m.entries, oldestID)
		metrics.CheckpointEvictions.Inc()
	}
}

// Len reports the number of live entries, for tests and health checks.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
