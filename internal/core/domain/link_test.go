package domain

import (
	"errors"
	"testing"
	"time"
)

func TestReference_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ref     Reference
		wantErr bool
	}{
		{"channel message", Reference{ChatID: -100123456789, MessageID: 42}, false},
		{"positive chat", Reference{ChatID: 777, MessageID: 1}, false},
		{"zero chat", Reference{ChatID: 0, MessageID: 1}, true},
		{"zero message", Reference{ChatID: -100999, MessageID: 0}, true},
		{"negative message", Reference{ChatID: -100999, MessageID: -7}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Validate() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestNewLinkEntry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	e := NewLinkEntry("tok", Reference{ChatID: -1, MessageID: 2}, 3, now)

	if e.Uses != 0 {
		t.Errorf("Uses = %d, want 0", e.Uses)
	}
	if e.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt location = %v, want UTC", e.CreatedAt.Location())
	}
	if e.CreatedAt.Nanosecond() != 123456000 {
		t.Errorf("CreatedAt not truncated to microseconds: %d", e.CreatedAt.Nanosecond())
	}
	if !e.CreatedAt.Equal(now.Truncate(time.Microsecond)) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, now)
	}
	if err := e.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLinkEntry_Validate(t *testing.T) {
	now := time.Now()
	valid := NewLinkEntry("tok", Reference{ChatID: -1, MessageID: 2}, 0, now)

	tests := []struct {
		name   string
		mutate func(e *LinkEntry)
	}{
		{"missing token", func(e *LinkEntry) { e.Token = "" }},
		{"negative max uses", func(e *LinkEntry) { e.MaxUses = -1 }},
		{"negative uses", func(e *LinkEntry) { e.Uses = -1 }},
		{"zero created at", func(e *LinkEntry) { e.CreatedAt = time.Time{} }},
		{"bad reference", func(e *LinkEntry) { e.Reference.MessageID = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid.Clone()
			tt.mutate(e)
			if err := e.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestLinkEntry_State(t *testing.T) {
	now := time.Now()
	ttl := 7 * 24 * time.Hour
	cutoff := ExpiryCutoff(now, ttl)

	tests := []struct {
		name    string
		age     time.Duration
		maxUses int
		uses    int
		want    EntryState
	}{
		{"fresh unlimited", time.Hour, 0, 1000, StateActive},
		{"fresh with budget", time.Hour, 3, 2, StateActive},
		{"exhausted", time.Hour, 3, 3, StateExhausted},
		{"just inside ttl", ttl - time.Second, 1, 0, StateActive},
		{"just past ttl", ttl + time.Second, 1, 0, StateExpired},
		{"expired and exhausted", ttl + time.Hour, 1, 1, StateExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewLinkEntry("tok", Reference{ChatID: 1, MessageID: 1}, tt.maxUses, now.Add(-tt.age))
			e.Uses = tt.uses
			if got := e.State(cutoff); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
			if got := e.Consumable(cutoff); got != (tt.want == StateActive) {
				t.Errorf("Consumable() = %v", got)
			}
		})
	}
}

func TestLinkEntry_Clone(t *testing.T) {
	e := NewLinkEntry("tok", Reference{ChatID: 1, MessageID: 1}, 1, time.Now())
	c := e.Clone()
	c.Uses = 5
	if e.Uses != 0 {
		t.Error("Clone() must not share state")
	}
	var nilEntry *LinkEntry
	if nilEntry.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestDeepLink(t *testing.T) {
	if got := DeepLink("mybot", "abc_-1"); got != "https://t.me/mybot?start=abc_-1" {
		t.Errorf("DeepLink() = %q", got)
	}
	if got := DeepLink("", "x"); got != "https://t.me/smxfilesbot?start=x" {
		t.Errorf("DeepLink() default = %q", got)
	}
}

func TestEntryState_String(t *testing.T) {
	if StateExhausted.String() != "exhausted" || EntryState(42).String() != "unknown" {
		t.Error("unexpected EntryState strings")
	}
}

func TestTTLFromSeconds(t *testing.T) {
	tests := []struct {
		secs    int64
		want    time.Duration
		wantErr bool
	}{
		{3600, time.Hour, false},
		{MaxTTLSeconds, time.Duration(MaxTTLSeconds) * time.Second, false},
		{MaxTTLSeconds + 1, 0, true},
		{18446744074, 0, true},
	}

	for _, tt := range tests {
		got, err := TTLFromSeconds(tt.secs)
		if (err != nil) != tt.wantErr {
			t.Fatalf("TTLFromSeconds(%d) error = %v, wantErr %v", tt.secs, err, tt.wantErr)
		}
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("TTLFromSeconds(%d) error = %v, want ErrInvalidArgument", tt.secs, err)
			}
			continue
		}
		if got != tt.want || got <= 0 {
			t.Errorf("TTLFromSeconds(%d) = %v, want %v", tt.secs, got, tt.want)
		}
	}
}
