package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/design"
)

type entry struct {
	payload  []byte
	storedAt time.Time
}

// Memory is a Store held in process memory.
type Memory struct {
	opts options

	mu      sync.RWMutex
	entries map[string]entry // by Key(id)
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		opts:    buildOptions(opts),
		entries: make(map[string]entry),
	}
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, id string, s *design.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encodeFor(id, s)
	if err != nil {
		return err
	}
	now := m.opts.now()
	key := Key(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !expired(now, e.storedAt, m.opts.maxAge) {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	m.entries[key] = entry{payload: payload, storedAt: now}
	return nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, id string) (*design.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !codec.ValidID(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	key := Key(id)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if expired(m.opts.now(), e.storedAt, m.opts.maxAge) {
		m.remove(key, e)
		return nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}
	s, err := decodeEntry(id, e.payload)
	if err != nil {
		m.remove(key, e)
		return nil, err
	}
	return s, nil
}

// remove deletes key if it still holds e.
func (m *Memory) remove(key string, e entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
		delete(m.entries, key)
	}
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(id))
	return nil
}

// Sweep implements Store.
func (m *Memory) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if maxAge <= 0 {
		maxAge = m.opts.maxAge
	}
	now := m.opts.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, e := range m.entries {
		if expired(now, e.storedAt, maxAge) {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries, live or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close implements Store. It drops every entry.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
	return nil
}
