// Package sqlite provides a SQLite link backend built on gorm.
//
// The pool is capped at one connection, so every statement is serialized
// by database/sql. Consume is a conditional UPDATE of the use counter
// followed by a read of the reference, both inside one transaction.
//
// created_at is stored as Unix microseconds to keep range comparisons
// exact.
package sqlite
