// Package handler provides the HTTP request handlers for FileLink.
//
// Handlers are plain http.HandlerFunc methods on Handler; routing,
// authentication and rate limiting live in the parent httpserver package.
// Every JSON response uses the Response envelope.
package handler
