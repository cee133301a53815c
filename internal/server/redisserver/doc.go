// Package redisserver exposes the link store over the Redis wire protocol
// (RESP2), so any Redis client can create and redeem links.
//
// Commands:
//
//	PING [message]
//	AUTH [username] admin-token
//	QUIT
//	LINK.CREATE chat_id message_id [max_uses]   -> bulk token
//	LINK.CONSUME token                          -> [chat_id, message_id] or nil
//	LINK.DEEPLINK token                         -> bulk t.me URL
//	LINK.SWEEP [ttl_seconds]                    -> integer (requires AUTH)
//
// Domain failures are returned as "ERR <code> <message>".
package redisserver
