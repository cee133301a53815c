// Package domain defines the core domain models for FileLink.
package domain

import (
	"fmt"
	"math"
	"net/url"
	"time"
)

// Link constraints.
const (
	// DefaultTTL is how long a link stays redeemable (7 days).
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultBotUsername is used to build deep links when none is configured.
	DefaultBotUsername = "smxfilesbot"

	// Unlimited is the MaxUses value that never exhausts.
	Unlimited = 0
)

// EntryState is the lifecycle state of a LinkEntry.
//
// Only StateActive entries can be consumed. The remaining states are
// bookkeeping; to callers they all look like ErrLinkNotFound.
type EntryState int

const (
	StateActive EntryState = iota
	StateExhausted
	StateExpired
)

// String implements fmt.Stringer.
func (s EntryState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Reference identifies the message a token redirects to.
type Reference struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// Validate reports whether the reference can point at a real message.
func (r Reference) Validate() error {
	if r.ChatID == 0 {
		return ErrInvalidArgument.WithDetails("chat_id must be non-zero")
	}
	if r.MessageID <= 0 {
		return ErrInvalidArgument.WithDetails("message_id must be positive")
	}
	return nil
}

// String implements fmt.Stringer.
func (r Reference) String() string {
	return fmt.Sprintf("%d/%d", r.ChatID, r.MessageID)
}

// LinkEntry is a persisted redirection from a token to a Reference.
type LinkEntry struct {
	// Token is the primary key. Immutable.
	Token string `json:"token"`

	// Reference is the redirect target. Immutable.
	Reference Reference `json:"reference"`

	// CreatedAt is stored in UTC with microsecond precision so every backend
	// round-trips it exactly.
	CreatedAt time.Time `json:"created_at"`

	// MaxUses bounds successful consumes; 0 means unlimited.
	MaxUses int `json:"max_uses"`

	// Uses counts successful consumes.
	Uses int `json:"uses"`
}

// NewLinkEntry builds a fresh entry with zero uses.
func NewLinkEntry(token string, ref Reference, maxUses int, now time.Time) *LinkEntry {
	return &LinkEntry{
		Token:     token,
		Reference: ref,
		CreatedAt: NormalizeTime(now),
		MaxUses:   maxUses,
	}
}

// Validate checks the entry invariants before it is persisted.
func (e *LinkEntry) Validate() error {
	if e.Token == "" {
		return ErrMissingArgument.WithDetails("token is required")
	}
	if e.MaxUses < 0 {
		return ErrInvalidArgument.WithDetails("max_uses must not be negative")
	}
	if e.Uses < 0 {
		return ErrInvalidArgument.WithDetails("uses must not be negative")
	}
	if e.CreatedAt.IsZero() {
		return ErrMissingArgument.WithDetails("created_at is required")
	}
	return e.Reference.Validate()
}

// IsExhausted reports whether the use budget is spent.
func (e *LinkEntry) IsExhausted() bool {
	return e.MaxUses > 0 && e.Uses >= e.MaxUses
}

// IsExpired reports whether the entry was created before cutoff.
func (e *LinkEntry) IsExpired(cutoff time.Time) bool {
	return e.CreatedAt.Before(cutoff)
}

// State returns the lifecycle state relative to cutoff.
func (e *LinkEntry) State(cutoff time.Time) EntryState {
	switch {
	case e.IsExpired(cutoff):
		return StateExpired
	case e.IsExhausted():
		return StateExhausted
	default:
		return StateActive
	}
}

// Consumable reports whether a consume at cutoff may succeed.
func (e *LinkEntry) Consumable(cutoff time.Time) bool {
	return e.State(cutoff) == StateActive
}

// Clone returns a deep copy of the entry.
func (e *LinkEntry) Clone() *LinkEntry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// ExpiryCutoff returns the oldest CreatedAt still considered live.
// Entries created strictly before the cutoff are expired.
func ExpiryCutoff(now time.Time, ttl time.Duration) time.Time {
	return NormalizeTime(now.Add(-ttl))
}

// MaxTTLSeconds is the largest TTL in seconds a time.Duration can hold.
const MaxTTLSeconds = math.MaxInt64 / int64(time.Second)

// TTLFromSeconds converts a caller-supplied TTL. Values that would
// overflow time.Duration are rejected.
func TTLFromSeconds(secs int64) (time.Duration, error) {
	if secs > MaxTTLSeconds {
		return 0, ErrInvalidArgument.WithDetails(fmt.Sprintf("ttl_seconds must be at most %d", MaxTTLSeconds))
	}
	return time.Duration(secs) * time.Second, nil
}

// NormalizeTime converts t to UTC and truncates it to microseconds.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// DeepLink builds the Telegram start link for a token.
func DeepLink(botUsername, token string) string {
	if botUsername == "" {
		botUsername = DefaultBotUsername
	}
	return "https://t.me/" + url.PathEscape(botUsername) + "?start=" + url.QueryEscape(token)
}
