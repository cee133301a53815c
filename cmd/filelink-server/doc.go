// Package main provides the entry point for filelink-server.
//
// The server hosts the link store and its front ends:
//
//   - HTTP/HTTPS API for creating and consuming links, QR codes and the
//     manual sweep
//   - the Telegram bot (when telegram.enabled is set)
//   - the hourly sweeper that deletes expired links
//
// Usage:
//
//	filelink-server [flags]
//	filelink-server -config /etc/filelink/server.yaml
//
// Configuration is read from the file, then FILELINK_* environment
// variables. Changing log.level in the file takes effect without restart.
package main
