// Package cmap provides a sharded concurrent map keyed by string.
//
// Keys are spread over a power-of-two number of shards with murmur3, each
// shard guarded by its own RWMutex.
//
//   - Compute: read-modify-write of one key under its shard lock
//   - DeleteFunc: conditional bulk delete, one shard locked at a time
//   - Range: iteration holding one shard read lock at a time
//
// Usage:
//
//	m := cmap.New[*Entry]()
//	m.SetIfAbsent("key", e)
//	m.Compute("key", func(e *Entry, ok bool) (*Entry, cmap.Action) { ... })
package cmap
