// Package connection provides the HTTP client filelink-cli uses to talk to
// filelink-server. Responses are unwrapped from the server's JSON envelope.
package connection
