package dialogue

import (
	"fmt"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/tenancy"
	"github.com/nestiq/lead-engine/pkg/logging"
)

// stepInput carries one turn through the transition table. Slot extraction
// and merging happen before Advance, so handlers only consult the lead's
// current slot map and the list of names merged this turn.
type stepInput struct {
	tenant *tenancy.Tenant
	lead   *leads.Lead
	turn   Turn
	merged []string
	now    time.Time
}

type handler func(m *Machine, in *stepInput) *Response

// Machine is the dialogue transition table. It is pure over the lead: it
// mutates the in-memory lead (slots, contact fields, context) and returns
// the outbound response, but never persists or performs I/O.
type Machine struct {
	log *logging.Logger
}

func NewMachine(log *logging.Logger) *Machine {
	return &Machine{log: log}
}

// transitions covers every (state, turn kind) pair. Completeness over the
// closed state set is asserted in tests; the runtime fallback in Advance
// exists only to keep a table bug from crashing a conversation.
var transitions = map[leads.State]map[TurnKind]handler{
	leads.StateInit: {
		TurnButton: handleInit,
		TurnText:   handleInit,
	},
	leads.StateLanguageSelect: {
		TurnButton: handleLanguageButton,
		TurnText:   handleLanguageText,
	},
	leads.StateWarmup: {
		TurnButton: handleWarmup,
		TurnText:   handleWarmup,
	},
	leads.StateContactCapture: {
		TurnButton: handleContactCaptureButton,
		TurnText:   handleContactCaptureText,
	},
	leads.StateSlotFilling: {
		TurnButton: handleSlotFilling,
		TurnText:   handleSlotFilling,
	},
	leads.StateOfferPresentation: {
		TurnButton: handleOfferButton,
		TurnText:   handleOfferText,
	},
	leads.StateContactGate: {
		TurnButton: handleContactGateButton,
		TurnText:   handleContactGateText,
	},
	leads.StateFreeformEngage: {
		TurnButton: handleFreeformButton,
		TurnText:   handleFreeformText,
	},
	leads.StateScheduleHandoff: {
		TurnButton: handleScheduleHandoff,
		TurnText:   handleScheduleHandoff,
	},
	leads.StateUrgentHandoff: {
		TurnButton: handleUrgentHandoff,
		TurnText:   handleUrgentHandoff,
	},
	leads.StateDone: {
		TurnButton: handleDone,
		TurnText:   handleDone,
	},
}

// Advance applies one turn. It is total: every state and turn kind maps to
// a handler, empty turns re-send the last prompt, and opt-out text ends the
// conversation from any non-terminal state.
func (m *Machine) Advance(in *stepInput) *Response {
	p := promptsFor(in.lead.Language)

	if in.turn.Empty() {
		msg := in.lead.Ctx().LastPrompt
		if msg == "" {
			msg = p.clarify
		}
		return &Response{Message: msg, NextState: in.lead.State}
	}

	if in.turn.Kind == TurnText && !in.lead.State.Terminal() && isOptOut(in.turn.Text, in.lead.Language) {
		return &Response{
			Message:        p.optOutConfirm,
			NextState:      leads.StateDone,
			CancelFollowUp: true,
		}
	}

	byKind, ok := transitions[in.lead.State]
	if ok {
		if h, ok := byKind[in.turn.Kind]; ok {
			return h(m, in)
		}
	}
	m.log.Warn("unmapped dialogue transition",
		"state", string(in.lead.State),
		"turn_kind", string(in.turn.Kind),
		"lead_id", in.lead.ID.String())
	return &Response{Message: p.clarify, NextState: in.lead.State}
}

func handleInit(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	greeting := fmt.Sprintf(p.greeting, in.tenant.Name)

	if in.lead.Language == "" && len(in.tenant.Languages) > 1 {
		pEn := promptsFor(in.tenant.DefaultLanguage)
		return &Response{
			Message:   fmt.Sprintf(pEn.greeting, in.tenant.Name) + " " + pEn.askLanguage,
			Buttons:   pEn.languageBtns,
			NextState: leads.StateLanguageSelect,
		}
	}
	if in.lead.Language == "" {
		in.lead.Language = in.tenant.DefaultLanguage
		p = promptsFor(in.lead.Language)
		greeting = fmt.Sprintf(p.greeting, in.tenant.Name)
	}
	return &Response{
		Message:   greeting + " " + p.warmup,
		NextState: leads.StateWarmup,
	}
}

func handleLanguageButton(m *Machine, in *stepInput) *Response {
	switch in.turn.ButtonID {
	case "lang_en":
		return setLanguage(in, "en")
	case "lang_es":
		return setLanguage(in, "es")
	}
	p := promptsFor(in.tenant.DefaultLanguage)
	return &Response{Message: p.askLanguage, Buttons: p.languageBtns, NextState: leads.StateLanguageSelect}
}

func handleLanguageText(m *Machine, in *stepInput) *Response {
	if lang, ok := detectLanguageChoice(in.turn.Text); ok && in.tenant.SupportsLanguage(lang) {
		return setLanguage(in, lang)
	}
	p := promptsFor(in.tenant.DefaultLanguage)
	return &Response{Message: p.askLanguage, Buttons: p.languageBtns, NextState: leads.StateLanguageSelect}
}

func setLanguage(in *stepInput, lang string) *Response {
	in.lead.Language = lang
	p := promptsFor(lang)
	return &Response{Message: p.warmup, NextState: leads.StateWarmup}
}

func handleWarmup(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	return &Response{
		Message:   p.askContact,
		Buttons:   []Button{p.contactSkipBtn},
		NextState: leads.StateContactCapture,
	}
}

func handleContactCaptureButton(m *Machine, in *stepInput) *Response {
	if in.turn.ButtonID == "contact_skip" {
		return promptNextSlot(in, "")
	}
	p := promptsFor(in.lead.Language)
	return &Response{
		Message:   p.askContact,
		Buttons:   []Button{p.contactSkipBtn},
		NextState: leads.StateContactCapture,
	}
}

func handleContactCaptureText(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	phone, ok := normalizePhone(in.turn.Text, in.lead.Language)
	if !ok {
		return &Response{
			Message:   p.contactInvalid,
			Buttons:   []Button{p.contactSkipBtn},
			NextState: leads.StateContactCapture,
		}
	}
	in.lead.ContactPhone = phone
	in.lead.ContactCaptured = true
	resp := promptNextSlot(in, p.contactThanks+" ")
	resp.NotifyAdmin = true
	resp.AdminMessage = fmt.Sprintf("new lead contact captured: %s via %s", phone, in.lead.Channel)
	return resp
}

func handleSlotFilling(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)

	unfilled := in.lead.UnfilledRequired()
	if len(unfilled) == 0 {
		return presentOffer(in)
	}

	// Nothing new this turn and the pending question is still open: clarify
	// and repeat it rather than moving on.
	pending := in.lead.Ctx().PendingSlot
	if len(in.merged) == 0 && pending != "" {
		if _, filled := in.lead.Slot(pending); !filled {
			return &Response{
				Message:   p.clarify + " " + p.slotPrompts[pending],
				Buttons:   p.slotButtons[pending],
				NextState: leads.StateSlotFilling,
			}
		}
	}
	return promptNextSlot(in, "")
}

// promptNextSlot asks for the first unfilled required slot, or presents the
// offer when everything is captured.
func promptNextSlot(in *stepInput, prefix string) *Response {
	unfilled := in.lead.UnfilledRequired()
	if len(unfilled) == 0 {
		resp := presentOffer(in)
		resp.Message = prefix + resp.Message
		return resp
	}
	p := promptsFor(in.lead.Language)
	slot := unfilled[0]
	ctx := in.lead.Ctx()
	ctx.PendingSlot = slot
	ctx.QuestionsAsked++
	return &Response{
		Message:   prefix + p.slotPrompts[slot],
		Buttons:   p.slotButtons[slot],
		NextState: leads.StateSlotFilling,
	}
}

func presentOffer(in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	in.lead.Ctx().PendingSlot = ""
	return &Response{
		Message:   fmt.Sprintf(p.offerIntro, criteriaSummary(in.lead)),
		Buttons:   p.offerBtns,
		NextState: leads.StateOfferPresentation,
	}
}

func handleOfferButton(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	switch in.turn.ButtonID {
	case "offer_book":
		return bookViewing(in)
	case "offer_more":
		return &Response{Message: p.offerMore, Buttons: p.offerBtns, NextState: leads.StateOfferPresentation}
	case "offer_question":
		return &Response{Message: p.freeform, Buttons: p.freeformBtns, NextState: leads.StateFreeformEngage}
	}
	return &Response{Message: p.clarify, Buttons: p.offerBtns, NextState: leads.StateOfferPresentation}
}

func handleOfferText(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	switch {
	case isAffirmative(in.turn.Text, in.lead.Language):
		return bookViewing(in)
	case isNegative(in.turn.Text, in.lead.Language):
		return &Response{Message: p.freeform, Buttons: p.freeformBtns, NextState: leads.StateFreeformEngage}
	}
	return &Response{Message: p.clarify, Buttons: p.offerBtns, NextState: leads.StateOfferPresentation}
}

// bookViewing routes a booking intent: straight to handoff when we already
// hold contact details, otherwise through the contact gate.
func bookViewing(in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	if in.lead.ContactCaptured {
		in.lead.AppointmentSet = true
		return &Response{
			Message:      p.scheduleOK,
			NextState:    leads.StateScheduleHandoff,
			NotifyAdmin:  true,
			AdminMessage: fmt.Sprintf("viewing requested by %s (%s)", in.lead.ExternalID, in.lead.ContactPhone),
		}
	}
	return &Response{Message: p.askContactGate, Buttons: p.gateBtns, NextState: leads.StateContactGate}
}

func handleContactGateButton(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	if in.turn.ButtonID == "gate_later" {
		return &Response{Message: p.freeform, Buttons: p.freeformBtns, NextState: leads.StateFreeformEngage}
	}
	return &Response{Message: p.askContactGate, Buttons: p.gateBtns, NextState: leads.StateContactGate}
}

func handleContactGateText(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	phone, ok := normalizePhone(in.turn.Text, in.lead.Language)
	if !ok {
		return &Response{Message: p.contactInvalid, Buttons: p.gateBtns, NextState: leads.StateContactGate}
	}
	in.lead.ContactPhone = phone
	in.lead.ContactCaptured = true
	in.lead.AppointmentSet = true
	return &Response{
		Message:      p.contactThanks + " " + p.scheduleOK,
		NextState:    leads.StateScheduleHandoff,
		NotifyAdmin:  true,
		AdminMessage: fmt.Sprintf("viewing requested by %s (%s)", in.lead.ExternalID, phone),
	}
}

func handleFreeformButton(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	switch in.turn.ButtonID {
	case "free_offers":
		if len(in.lead.UnfilledRequired()) > 0 {
			return promptNextSlot(in, "")
		}
		return presentOffer(in)
	case "offer_book":
		return bookViewing(in)
	}
	return &Response{Message: p.freeform, Buttons: p.freeformBtns, NextState: leads.StateFreeformEngage}
}

func handleFreeformText(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	if hasGoalKeyword(in.turn.Text, in.lead.Language) || len(in.merged) > 0 {
		if len(in.lead.UnfilledRequired()) > 0 {
			return promptNextSlot(in, "")
		}
		return presentOffer(in)
	}
	return &Response{Message: p.freeform, Buttons: p.freeformBtns, NextState: leads.StateFreeformEngage}
}

func handleScheduleHandoff(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	return &Response{Message: p.goodbye, NextState: leads.StateDone}
}

// handleUrgentHandoff keeps the bot quiet while a human takes over: every
// inbound turn gets the same short acknowledgment and the state holds.
func handleUrgentHandoff(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	return &Response{Message: p.urgentHandoff, NextState: leads.StateUrgentHandoff}
}

func handleDone(m *Machine, in *stepInput) *Response {
	p := promptsFor(in.lead.Language)
	return &Response{Message: p.goodbye, NextState: leads.StateDone}
}

// phoneRegions maps the conversation language to the default dialing region
// used when the number lacks a country prefix.
var phoneRegions = map[string]string{
	"en": "US",
	"es": "ES",
}

func normalizePhone(raw, language string) (string, bool) {
	region := phoneRegions[language]
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}
