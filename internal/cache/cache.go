// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores search envelopes keyed by normalized query
// fingerprint. Two backends exist: an in-process memory cache with bounded
// capacity, and Redis for deployments that share results across processes.
// A cache failure is never fatal to a search; callers treat it as a miss.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/grant-engine/pkg/types"
)

const (
	// DefaultTTL bounds how stale a cached envelope may get.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries bounds the memory backend's footprint.
	DefaultMaxEntries = 256
)

// timeNow is swapped out by tests to control expiry.
var timeNow = time.Now

// Error wraps a cache backend failure. It is distinguishable from upstream
// source errors so the orchestrator can degrade to a miss instead of
// failing the search.
type Error struct {
	Op  string // "get" or "put"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cache is the envelope store. Get returns (nil, false, nil) on a miss and
// a *Error only when the backend itself failed. Implementations return
// copies; mutating a returned envelope never affects the stored one.
type Cache interface {
	Get(ctx context.Context, key string) (*types.Envelope, bool, error)
	Put(ctx context.Context, key string, env *types.Envelope) error
}

// Memory is an in-process cache with lazy TTL expiry and insertion-order
// eviction: when full, the entry that has been resident longest is dropped,
// regardless of how recently it was read.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]memoryEntry
	order   []string
}

type memoryEntry struct {
	env     *types.Envelope
	expires time.Time
}

// NewMemory builds a memory cache. Non-positive ttl and max fall back to
// the defaults.
func NewMemory(ttl time.Duration, max int) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Memory{
		ttl:     ttl,
		max:     max,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns a copy of the cached envelope, expiring it lazily.
func (m *Memory) Get(_ context.Context, key string) (*types.Envelope, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if timeNow().After(e.expires) {
		m.remove(key)
		return nil, false, nil
	}
	c := e.env.Clone()
	return &c, true, nil
}

// Put stores a copy of the envelope, evicting the oldest insertion when the
// cache is full. Re-inserting an existing key refreshes its insertion slot.
func (m *Memory) Put(_ context.Context, key string, env *types.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		m.remove(key)
	}
	c := env.Clone()
	m.entries[key] = memoryEntry{env: &c, expires: timeNow().Add(m.ttl)}
	m.order = append(m.order, key)

	for len(m.order) > m.max {
		m.remove(m.order[0])
	}
	return nil
}

// Len reports the number of resident entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// remove deletes an entry and its insertion slot. Callers hold the lock.
func (m *Memory) remove(key string) {
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
