package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics and the QR image).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CreateLinkRequest is the request body for POST /api/v1/links.
type CreateLinkRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
	MaxUses   int   `json:"max_uses"`
}

// CreateLinkResponse is the response body for POST /api/v1/links.
type CreateLinkResponse struct {
	Token    string `json:"token"`
	DeepLink string `json:"deep_link"`
	MaxUses  int    `json:"max_uses"`
}

// ConsumeLinkResponse is the response body for
// POST /api/v1/links/{token}/consume.
type ConsumeLinkResponse struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// SweepRequest is the optional request body for POST /admin/v1/sweep.
// A zero TTLSeconds sweeps with the configured link TTL.
type SweepRequest struct {
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

// SweepResponse is the response body for POST /admin/v1/sweep.
type SweepResponse struct {
	Deleted    int    `json:"deleted"`
	TTLSeconds int64  `json:"ttl_seconds"`
	SweptAt    string `json:"swept_at"`
}

// HealthResponse is the response body for GET /health and GET /ready.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}
