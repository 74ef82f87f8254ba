package leads

import (
	"time"

	"github.com/google/uuid"
)

// State is a member of the closed dialogue state set. Every lead is always
// in exactly one of these states; transitions happen only through the
// dialogue engine.
type State string

const (
	StateInit              State = "INIT"
	StateLanguageSelect    State = "LANGUAGE_SELECT"
	StateWarmup            State = "WARMUP"
	StateContactCapture    State = "CONTACT_CAPTURE"
	StateSlotFilling       State = "SLOT_FILLING"
	StateOfferPresentation State = "OFFER_PRESENTATION"
	StateContactGate       State = "CONTACT_GATE"
	StateFreeformEngage    State = "FREEFORM_ENGAGEMENT"
	StateScheduleHandoff   State = "SCHEDULE_HANDOFF"
	StateUrgentHandoff     State = "URGENT_HANDOFF"
	StateDone              State = "DONE"
)

// AllStates returns the closed state set. Transition-table completeness
// checks iterate over this.
func AllStates() []State {
	return []State{
		StateInit,
		StateLanguageSelect,
		StateWarmup,
		StateContactCapture,
		StateSlotFilling,
		StateOfferPresentation,
		StateContactGate,
		StateFreeformEngage,
		StateScheduleHandoff,
		StateUrgentHandoff,
		StateDone,
	}
}

// Valid reports whether s is a member of the closed set.
func (s State) Valid() bool {
	for _, st := range AllStates() {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends the conversation.
func (s State) Terminal() bool {
	return s == StateDone
}

// Temperature is the coarse four-tier label derived from the score.
type Temperature string

const (
	TempBurning Temperature = "burning"
	TempHot     Temperature = "hot"
	TempWarm    Temperature = "warm"
	TempCold    Temperature = "cold"
)

// SlotSource records how a slot value was obtained. Merge policy uses it
// together with confidence.
type SlotSource string

const (
	SourceButton   SlotSource = "button"
	SourceNLU      SlotSource = "nlu"
	SourceFallback SlotSource = "fallback"
)

// SlotValue is one captured piece of structured information.
type SlotValue struct {
	Value      any        `json:"value"`
	Confidence float64    `json:"confidence"`
	Source     SlotSource `json:"source"`
	CapturedAt time.Time  `json:"captured_at"`
}

// ConversationContext caches recent-turn metadata so the engine avoids
// redundant prompts. Rebuildable from the lead and slot map if lost.
type ConversationContext struct {
	PendingSlot    string    `json:"pending_slot,omitempty"`
	LastPrompt     string    `json:"last_prompt,omitempty"`
	QuestionsAsked int       `json:"questions_asked"`
	LastTurnAt     time.Time `json:"last_turn_at"`
}

// Lead is one conversation partner, unique per (tenant, external identity).
// TenantID is immutable after creation. Score and Temperature are always
// recomputed from attributes, never set directly by callers.
type Lead struct {
	ID         uuid.UUID `json:"id"`
	TenantID   string    `json:"tenant_id"`
	ExternalID string    `json:"external_id"`
	Channel    string    `json:"channel"`
	Language   string    `json:"language"`

	State State                `json:"state"`
	Slots map[string]SlotValue `json:"slots"`

	Score       int         `json:"score"`
	Temperature Temperature `json:"temperature"`

	ContactName     string `json:"contact_name,omitempty"`
	ContactPhone    string `json:"contact_phone,omitempty"`
	ContactCaptured bool   `json:"contact_captured"`
	AppointmentSet  bool   `json:"appointment_set"`

	MessageCount   int       `json:"message_count"`
	FollowUpCount  int       `json:"follow_up_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Terminal       bool      `json:"terminal"`

	Context *ConversationContext `json:"context,omitempty"`

	// Version guards concurrent writes; Upsert rejects stale versions.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a lead in the initial state for a first inbound turn.
func New(tenantID, externalID, channel, language string) *Lead {
	now := time.Now().UTC()
	return &Lead{
		ID:             uuid.New(),
		TenantID:       tenantID,
		ExternalID:     externalID,
		Channel:        channel,
		Language:       language,
		State:          StateInit,
		Slots:          make(map[string]SlotValue),
		Temperature:    TempCold,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Slot returns the value for a slot name if captured.
func (l *Lead) Slot(name string) (SlotValue, bool) {
	v, ok := l.Slots[name]
	return v, ok
}

// SetSlot records a slot value, allocating the map on first use.
func (l *Lead) SetSlot(name string, v SlotValue) {
	if l.Slots == nil {
		l.Slots = make(map[string]SlotValue)
	}
	l.Slots[name] = v
}

// Ctx returns the conversation context, allocating it on first use.
func (l *Lead) Ctx() *ConversationContext {
	if l.Context == nil {
		l.Context = &ConversationContext{}
	}
	return l.Context
}

// Touch records activity on the lead.
func (l *Lead) Touch(at time.Time) {
	l.LastActivityAt = at.UTC()
	l.UpdatedAt = at.UTC()
}
