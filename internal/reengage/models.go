// Package reengage schedules and delivers re-engagement nudges to leads
// that went quiet mid-conversation.
package reengage

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of one follow-up record.
type Status string

const (
	// StatusPending is scheduled and waiting for its due time.
	StatusPending Status = "pending"
	// StatusSending marks a record claimed by a scheduler replica.
	StatusSending Status = "sending"
	// StatusSent is delivered.
	StatusSent Status = "sent"
	// StatusCanceled is superseded by inbound activity.
	StatusCanceled Status = "canceled"
	// StatusFailed exhausted its delivery retries.
	StatusFailed Status = "failed"
)

// FollowUp is one scheduled nudge. A lead has at most one pending record
// at a time, enforced by a partial unique index.
type FollowUp struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  string     `json:"tenant_id"`
	LeadID    uuid.UUID  `json:"lead_id"`
	Attempt   int        `json:"attempt"`
	DueAt     time.Time  `json:"due_at"`
	Status    Status     `json:"status"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Candidate is an idle lead eligible for a new follow-up. LastNudgeAt is
// nil before the first nudge.
type Candidate struct {
	LeadID         uuid.UUID
	TenantID       string
	FollowUpCount  int
	LastActivityAt time.Time
	LastNudgeAt    *time.Time
}

// Nudge is a claimed follow-up joined with the lead fields needed to
// address and phrase the outbound message.
type Nudge struct {
	FollowUp

	ExternalID string
	Channel    string
	Language   string
}
