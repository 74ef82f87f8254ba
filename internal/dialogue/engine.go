package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/nlu"
	"github.com/nestiq/lead-engine/internal/notify"
	"github.com/nestiq/lead-engine/internal/observability/metrics"
	"github.com/nestiq/lead-engine/internal/scoring"
	"github.com/nestiq/lead-engine/internal/sentiment"
	"github.com/nestiq/lead-engine/internal/slots"
	"github.com/nestiq/lead-engine/internal/tenancy"
	"github.com/nestiq/lead-engine/pkg/logging"
)

var (
	ErrInvalidInbound = errors.New("dialogue: invalid inbound turn")
)

// FollowUpCanceler cancels any pending re-engagement nudge for a lead.
// Inbound activity always supersedes a scheduled nudge.
type FollowUpCanceler interface {
	CancelPending(ctx context.Context, tenantID string, leadID string) error
}

// Deps are the engine's collaborators. Extractor is the primary NLU path
// and Fallback the in-process pattern extractor used when it yields nothing.
type Deps struct {
	Tenants    tenancy.Repository
	Leads      leads.Repository
	Classifier *sentiment.Classifier
	Extractor  nlu.Extractor
	Fallback   nlu.Extractor
	Catalog    *slots.Catalog
	FollowUps  FollowUpCanceler
	Notifier   notify.AdminNotifier
	Metrics    *metrics.Metrics
	Logger     *logging.Logger

	// PersistMaxRetries bounds reload-and-retry on version conflicts.
	PersistMaxRetries int
}

// Engine drives one inbound turn end to end: load, classify, extract,
// advance, score, persist. Turns for the same lead are serialized in
// arrival order; distinct leads proceed concurrently.
type Engine struct {
	deps    Deps
	machine *Machine
	locks   *keyedMutex
	tracer  trace.Tracer
}

func NewEngine(deps Deps) *Engine {
	if deps.PersistMaxRetries <= 0 {
		deps.PersistMaxRetries = 3
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Engine{
		deps:    deps,
		machine: NewMachine(deps.Logger),
		locks:   newKeyedMutex(),
		tracer:  otel.Tracer("dialogue.engine"),
	}
}

// ProcessTurn applies one inbound turn and returns the outbound response.
// Unknown tenants and storage failures return an error; NLU trouble never
// does, the turn just proceeds without extracted slots.
func (e *Engine) ProcessTurn(ctx context.Context, in Inbound) (*Response, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "dialogue.process_turn",
		trace.WithAttributes(attribute.String("tenant_id", in.TenantID)))
	defer span.End()

	if in.TenantID == "" || in.ExternalID == "" {
		return nil, ErrInvalidInbound
	}
	if in.Turn.Kind != TurnButton && in.Turn.Kind != TurnText {
		return nil, ErrInvalidInbound
	}
	// The ingestion seam stamps the authenticated tenant into context;
	// a payload naming a different tenant is rejected.
	if ctxTenant, ok := tenancy.TenantIDFromContext(ctx); ok && ctxTenant != in.TenantID {
		return nil, fmt.Errorf("dialogue: tenant mismatch: %w", ErrInvalidInbound)
	}
	now := in.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	unlock := e.locks.Lock(in.TenantID + "/" + in.ExternalID)
	defer unlock()

	tenant, err := e.deps.Tenants.Get(ctx, in.TenantID)
	if err != nil {
		return nil, fmt.Errorf("dialogue: load tenant: %w", err)
	}

	lead, created, err := e.loadOrCreate(ctx, tenant, in)
	if err != nil {
		return nil, err
	}

	resp := e.advance(ctx, tenant, lead, in, now)

	lead.State = resp.NextState
	lead.Terminal = resp.NextState.Terminal()
	lead.MessageCount++
	lead.Touch(now)
	lctx := lead.Ctx()
	lctx.LastPrompt = resp.Message
	lctx.LastTurnAt = now
	scoring.Apply(lead)

	if err := e.persist(ctx, lead); err != nil {
		return nil, err
	}

	// Any inbound activity supersedes a scheduled nudge. Cancellation is
	// best effort on new leads too, where it is a no-op.
	if !created || resp.CancelFollowUp {
		if err := e.deps.FollowUps.CancelPending(ctx, lead.TenantID, lead.ID.String()); err != nil {
			e.deps.Logger.Warn("cancel pending follow-up", "lead_id", lead.ID.String(), "error", err)
		}
	}
	resp.CancelFollowUp = true

	if resp.NotifyAdmin && e.deps.Notifier != nil {
		if err := e.deps.Notifier.Notify(ctx, lead.TenantID, resp.AdminMessage); err != nil {
			e.deps.Logger.Warn("admin notification failed", "tenant_id", lead.TenantID, "error", err)
		}
	}

	e.deps.Metrics.TurnProcessed(lead.TenantID, string(lead.State), time.Since(start))
	return resp, nil
}

func (e *Engine) loadOrCreate(ctx context.Context, tenant *tenancy.Tenant, in Inbound) (*leads.Lead, bool, error) {
	lead, err := e.deps.Leads.GetByExternalID(ctx, in.TenantID, in.ExternalID)
	switch {
	case err == nil:
		return lead, false, nil
	case errors.Is(err, leads.ErrLeadNotFound):
		return leads.New(in.TenantID, in.ExternalID, in.Channel, initialLanguage(tenant, in.LocaleHint)), true, nil
	default:
		return nil, false, fmt.Errorf("dialogue: load lead: %w", err)
	}
}

// initialLanguage resolves the conversation language at lead creation. An
// empty result means the machine will ask explicitly.
func initialLanguage(tenant *tenancy.Tenant, hint string) string {
	if hint != "" && tenant.SupportsLanguage(hint) {
		return hint
	}
	if len(tenant.Languages) == 1 {
		return tenant.Languages[0]
	}
	return ""
}

// advance runs the frustration gate, slot extraction and the transition
// table against the in-memory lead.
func (e *Engine) advance(ctx context.Context, tenant *tenancy.Tenant, lead *leads.Lead, in Inbound, now time.Time) *Response {
	if in.Turn.Kind == TurnText && !lead.State.Terminal() && lead.State != leads.StateUrgentHandoff {
		cls := e.deps.Classifier
		if len(tenant.FrustrationPhrases) > 0 {
			cls = cls.WithOverrides(tenant.FrustrationPhrases)
		}
		if res := cls.Classify(ctx, in.Turn.Text, lead.Language); res.Frustrated {
			p := promptsFor(lead.Language)
			return &Response{
				Message:        p.urgentHandoff,
				NextState:      leads.StateUrgentHandoff,
				CancelFollowUp: true,
				NotifyAdmin:    true,
				AdminMessage:   fmt.Sprintf("frustrated lead %s needs a human (matched %q)", lead.ExternalID, res.MatchedPattern),
			}
		}
	}

	merged := e.captureSlots(ctx, lead, in.Turn, now)
	return e.machine.Advance(&stepInput{
		tenant: tenant,
		lead:   lead,
		turn:   in.Turn,
		merged: merged,
		now:    now,
	})
}

// captureSlots turns the inbound payload into slot candidates and merges
// them. Contact states are skipped so phone digits are never misread as
// budgets, and terminal states capture nothing.
func (e *Engine) captureSlots(ctx context.Context, lead *leads.Lead, turn Turn, now time.Time) []string {
	switch lead.State {
	case leads.StateContactCapture, leads.StateContactGate, leads.StateLanguageSelect,
		leads.StateUrgentHandoff, leads.StateDone:
		return nil
	}

	if turn.Kind == TurnButton {
		slot, value, ok := slots.ResolveButton(turn.ButtonID)
		if !ok {
			return nil
		}
		cand := map[string]nlu.Extraction{slot: {Value: value, Confidence: 1}}
		return e.deps.Catalog.Merge(lead, cand, leads.SourceButton, now)
	}
	if turn.Text == "" {
		return nil
	}

	// Extraction requests carry only the slots still open. Filled slots
	// keep their captured value; corrections arrive through buttons, which
	// resolve independently of this set.
	names := e.deps.Catalog.Unfilled(lead)
	if len(names) == 0 {
		return nil
	}
	source := leads.SourceNLU
	cands, err := e.deps.Extractor.Extract(ctx, turn.Text, lead.Language, names)
	if err != nil || len(cands) == 0 {
		if err != nil {
			e.deps.Metrics.NLUFailure()
		}
		fb, fberr := e.deps.Fallback.Extract(ctx, turn.Text, lead.Language, names)
		if fberr != nil {
			return nil
		}
		if len(fb) > 0 {
			e.deps.Metrics.NLUFallback()
		}
		cands, source = fb, leads.SourceFallback
	}
	return e.deps.Catalog.Merge(lead, cands, source, now)
}

func (e *Engine) persist(ctx context.Context, lead *leads.Lead) error {
	for attempt := 0; ; attempt++ {
		saved, err := e.deps.Leads.Upsert(ctx, lead)
		if err == nil {
			lead.Version = saved.Version
			return nil
		}
		if !errors.Is(err, leads.ErrVersionConflict) || attempt+1 >= e.deps.PersistMaxRetries {
			return fmt.Errorf("dialogue: persist lead: %w", err)
		}
		// A concurrent writer (the nudge scheduler) bumped the version.
		// Reload its counters and retry with the fresh version.
		fresh, lerr := e.deps.Leads.GetByExternalID(ctx, lead.TenantID, lead.ExternalID)
		if lerr != nil {
			return fmt.Errorf("dialogue: reload after conflict: %w", lerr)
		}
		lead.Version = fresh.Version
		lead.FollowUpCount = fresh.FollowUpCount
	}
}
