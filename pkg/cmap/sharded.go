package cmap

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the default number of shards.
const DefaultShardCount = 32

// Action tells Compute what to do with the value returned by its callback.
type Action int

const (
	// Keep leaves the stored value unchanged.
	Keep Action = iota
	// Store replaces (or inserts) the value.
	Store
	// Remove deletes the key.
	Remove
)

// Map is a concurrent-safe sharded map.
type Map[V any] struct {
	shards    []*shard[V]
	shardMask uint32
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// New creates a new sharded map with the default shard count.
func New[V any]() *Map[V] {
	return NewWithShards[V](DefaultShardCount)
}

// NewWithShards creates a map with shardCount shards. Values that are not a
// positive power of two fall back to DefaultShardCount.
func NewWithShards[V any](shardCount int) *Map[V] {
	if shardCount <= 0 || shardCount&(shardCount-1) != 0 {
		shardCount = DefaultShardCount
	}

	m := &Map[V]{
		shards:    make([]*shard[V], shardCount),
		shardMask: uint32(shardCount - 1),
	}
	for i := range m.shards {
		m.shards[i] = &shard[V]{items: make(map[string]V)}
	}
	return m
}

func (m *Map[V]) shardFor(key string) *shard[V] {
	return m.shards[murmur3.Sum32([]byte(key))&m.shardMask]
}

// Get retrieves a value by key.
func (m *Map[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// SetIfAbsent stores value only if key is not present and reports whether it
// did.
func (m *Map[V]) SetIfAbsent(key string, value V) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = value
	return true
}

// Compute runs fn on the current value of key while holding the shard
// write lock, then applies the returned Action. No other operation on the
// same key can interleave with fn. fn must not call back into the map.
func (m *Map[V]) Compute(key string, fn func(value V, exists bool) (V, Action)) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.items[key]
	next, action := fn(current, exists)
	switch action {
	case Store:
		s.items[key] = next
	case Remove:
		delete(s.items, key)
	}
}

// DeleteFunc removes every entry for which pred returns true and returns the
// number removed. Each shard is locked for the duration of its own scan.
func (m *Map[V]) DeleteFunc(pred func(key string, value V) bool) int {
	deleted := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.items {
			if pred(k, v) {
				delete(s.items, k)
				deleted++
			}
		}
		s.mu.Unlock()
	}
	return deleted
}

// Count returns the total number of items.
func (m *Map[V]) Count() int {
	count := 0
	for _, s := range m.shards {
		s.mu.RLock()
		count += len(s.items)
		s.mu.RUnlock()
	}
	return count
}

// ShardCount returns the number of shards.
func (m *Map[V]) ShardCount() int {
	return len(m.shards)
}
