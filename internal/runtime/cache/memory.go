package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
	timer     *time.Timer
}

// Memory is an in-process Store. Each item carries its own timer so it is
// removed ttl after the write even if nobody reads it again.
type Memory struct {
	mu     sync.Mutex
	items  map[string]*memoryItem
	closed bool
}

// NewMemory returns an empty store owned by the caller.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*memoryItem)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && !time.Now().Before(item.expiresAt) {
		m.removeLocked(key, item)
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

// Set replaces key. A non-positive ttl keeps the item until it is invalidated.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storeError("memory", OpSet, key, errStoreClosed)
	}
	if old, ok := m.items[key]; ok {
		m.removeLocked(key, old)
	}
	item := &memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
		item.timer = time.AfterFunc(ttl, func() { m.expire(key, item) })
	}
	m.items[key] = item
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[key]; ok {
		m.removeLocked(key, item)
	}
	return nil
}

// Len reports the number of live items.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close stops every pending expiry timer and drops all items.
func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, item := range m.items {
		m.removeLocked(key, item)
	}
	m.closed = true
	return nil
}

// expire only removes the item it was scheduled for; a newer write under the
// same key owns its own timer.
func (m *Memory) expire(key string, item *memoryItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.items[key]; ok && current == item {
		delete(m.items, key)
	}
}

func (m *Memory) removeLocked(key string, item *memoryItem) {
	if item.timer != nil {
		item.timer.Stop()
	}
	delete(m.items, key)
}
