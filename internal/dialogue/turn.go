// Package dialogue is the stateful core of the engine: a closed-set state
// machine that reconciles free-text understanding with deterministic
// button-driven transitions, one inbound turn at a time.
package dialogue

import (
	"strings"
	"time"

	"github.com/nestiq/lead-engine/internal/leads"
)

// TurnKind distinguishes the two inbound payload shapes.
type TurnKind string

const (
	TurnButton TurnKind = "button"
	TurnText   TurnKind = "text"
)

// Turn is one inbound user action.
type Turn struct {
	Kind     TurnKind `json:"kind"`
	ButtonID string   `json:"button_id,omitempty"`
	Text     string   `json:"text,omitempty"`
}

// Empty reports whether a text turn carries no content after trimming.
// Empty turns are no-ops that re-send the last prompt.
func (t Turn) Empty() bool {
	return t.Kind == TurnText && strings.TrimSpace(t.Text) == ""
}

// Inbound is the turn event handed over by a channel adapter.
type Inbound struct {
	TenantID   string    `json:"tenant_id"`
	ExternalID string    `json:"external_identity"`
	Channel    string    `json:"channel_kind"`
	Turn       Turn      `json:"payload"`
	LocaleHint string    `json:"locale_hint,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Button is one quick-reply option offered to the user.
type Button struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// Response is the outbound payload returned to the channel adapter. The
// engine never delivers messages itself.
type Response struct {
	Message   string      `json:"message_text"`
	Buttons   []Button    `json:"buttons,omitempty"`
	NextState leads.State `json:"next_state"`

	// CancelFollowUp is set on every user-initiated turn so a stale nudge
	// is never sent moments after the user re-engaged on their own.
	CancelFollowUp bool `json:"cancel_follow_up"`

	NotifyAdmin  bool   `json:"notify_admin"`
	AdminMessage string `json:"admin_message,omitempty"`
}
