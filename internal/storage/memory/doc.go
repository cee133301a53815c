// Package memory provides in-memory link storage for FileLink.
//
// Entries live in a sharded concurrent map. A consume runs entirely under
// the lock of the shard owning the token, so concurrent consumes of one
// token are serialized while unrelated tokens proceed in parallel.
//
// Contents are lost on restart; the store is meant for tests and
// single-process deployments that accept that.
package memory
