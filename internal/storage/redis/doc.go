// Package redis provides a Redis link backend on go-redis.
//
// Layout:
//
//	<prefix>link:<token>  hash {chat, msg, created, max, uses}
//	<prefix>created       sorted set of tokens scored by created (Unix µs)
//
// Insert, consume and sweep are Lua scripts, so each runs atomically on the
// server. The sorted set lets a sweep find expired tokens without a SCAN.
package redis
