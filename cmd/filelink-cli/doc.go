// Package main provides the entry point for filelink-cli.
//
// The CLI manages a running filelink-server over its HTTP API:
//
//	filelink-cli link create --chat-id -1001234567890 --message-id 42
//	filelink-cli link consume TOKEN
//	filelink-cli link qr TOKEN -f link.png
//	filelink-cli --admin-token $TOKEN admin sweep --ttl 72h
//	filelink-cli system ready
package main
