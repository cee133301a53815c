// Package postgres provides a PostgreSQL link backend on pgx.
//
// The schema is managed by embedded golang-migrate migrations. Consume is a
// single UPDATE ... RETURNING whose WHERE clause carries the expiry and
// use-budget checks; row locking makes concurrent consumes of one token
// re-evaluate that clause in turn.
package postgres
