package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/nlu"
	"github.com/nestiq/lead-engine/internal/sentiment"
	"github.com/nestiq/lead-engine/internal/slots"
	"github.com/nestiq/lead-engine/internal/tenancy"
	"github.com/nestiq/lead-engine/pkg/logging"
)

type fakeTenants struct {
	tenants map[string]*tenancy.Tenant
}

func (f *fakeTenants) Get(_ context.Context, tenantID string) (*tenancy.Tenant, error) {
	t, ok := f.tenants[tenantID]
	if !ok {
		return nil, tenancy.ErrTenantNotFound
	}
	return t, nil
}

// fakeLeads is an in-memory version-checked lead store. conflictsLeft
// injects version conflicts on the next N upserts.
type fakeLeads struct {
	mu            sync.Mutex
	byExternal    map[string]*leads.Lead
	conflictsLeft int
	upserts       int
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{byExternal: make(map[string]*leads.Lead)}
}

func (f *fakeLeads) key(tenantID, externalID string) string { return tenantID + "/" + externalID }

func (f *fakeLeads) GetByExternalID(_ context.Context, tenantID, externalID string) (*leads.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byExternal[f.key(tenantID, externalID)]
	if !ok {
		return nil, leads.ErrLeadNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeLeads) Get(_ context.Context, tenantID string, id uuid.UUID) (*leads.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.byExternal {
		if l.TenantID == tenantID && l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, leads.ErrLeadNotFound
}

func (f *fakeLeads) Upsert(_ context.Context, lead *leads.Lead) (*leads.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return nil, leads.ErrVersionConflict
	}
	k := f.key(lead.TenantID, lead.ExternalID)
	if existing, ok := f.byExternal[k]; ok && existing.Version != lead.Version {
		return nil, leads.ErrVersionConflict
	}
	cp := *lead
	cp.Version++
	f.byExternal[k] = &cp
	out := cp
	return &out, nil
}

type fakeCanceler struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeCanceler) CancelPending(_ context.Context, tenantID, leadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tenantID+"/"+leadID)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, _, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func emptyExtractor() nlu.Extractor {
	return nlu.ExtractorFunc(func(context.Context, string, string, []string) (map[string]nlu.Extraction, error) {
		return nil, nil
	})
}

func newTestEngine(t *testing.T, tenant *tenancy.Tenant) (*Engine, *fakeLeads, *fakeCanceler, *fakeNotifier) {
	t.Helper()
	store := newFakeLeads()
	canceler := &fakeCanceler{}
	notifier := &fakeNotifier{}
	catalog := slots.DefaultCatalog()
	log := logging.New("error")
	eng := NewEngine(Deps{
		Tenants:           &fakeTenants{tenants: map[string]*tenancy.Tenant{tenant.ID: tenant}},
		Leads:             store,
		Classifier:        sentiment.Default(log),
		Extractor:         emptyExtractor(),
		Fallback:          slots.NewFallbackExtractor(catalog),
		Catalog:           catalog,
		FollowUps:         canceler,
		Notifier:          notifier,
		Logger:            log,
		PersistMaxRetries: 3,
	})
	return eng, store, canceler, notifier
}

func inboundText(text string) Inbound {
	return Inbound{
		TenantID:   "tenant-1",
		ExternalID: "wa:34600111222",
		Channel:    "whatsapp",
		Turn:       Turn{Kind: TurnText, Text: text},
		LocaleHint: "en",
		Timestamp:  time.Now().UTC(),
	}
}

func inboundButton(id string) Inbound {
	in := inboundText("")
	in.Turn = Turn{Kind: TurnButton, ButtonID: id}
	return in
}

func TestProcessTurnCreatesLead(t *testing.T) {
	eng, store, _, _ := newTestEngine(t, testTenant())

	resp, err := eng.ProcessTurn(context.Background(), inboundText("hi"))
	require.NoError(t, err)
	assert.Equal(t, leads.StateWarmup, resp.NextState)

	lead, err := store.GetByExternalID(context.Background(), "tenant-1", "wa:34600111222")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", lead.TenantID)
	assert.Equal(t, 1, lead.MessageCount)
	assert.Equal(t, leads.StateWarmup, lead.State)
	assert.Equal(t, resp.Message, lead.Context.LastPrompt)
}

func TestProcessTurnRejectsBadInbound(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, testTenant())

	_, err := eng.ProcessTurn(context.Background(), Inbound{TenantID: "tenant-1"})
	assert.ErrorIs(t, err, ErrInvalidInbound)

	in := inboundText("hi")
	in.Turn.Kind = "gesture"
	_, err = eng.ProcessTurn(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInbound)
}

func TestProcessTurnUnknownTenant(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, testTenant())

	in := inboundText("hi")
	in.TenantID = "nobody"
	_, err := eng.ProcessTurn(context.Background(), in)
	assert.ErrorIs(t, err, tenancy.ErrTenantNotFound)
}

// Full qualification flow: greeting, contact skip, single multi-slot
// message, offer. The NLU collaborator returns nothing so extraction runs
// entirely on the deterministic fallback.
func TestProcessTurnQualificationFlow(t *testing.T) {
	eng, store, _, _ := newTestEngine(t, testTenant())
	ctx := context.Background()

	resp, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)
	require.Equal(t, leads.StateWarmup, resp.NextState)

	resp, err = eng.ProcessTurn(ctx, inboundText("I want to buy a property"))
	require.NoError(t, err)
	require.Equal(t, leads.StateContactCapture, resp.NextState)

	resp, err = eng.ProcessTurn(ctx, inboundButton("contact_skip"))
	require.NoError(t, err)
	require.Equal(t, leads.StateSlotFilling, resp.NextState)

	resp, err = eng.ProcessTurn(ctx, inboundText("3 bedroom villa near the beach with a pool, budget 3 million"))
	require.NoError(t, err)
	assert.Equal(t, leads.StateOfferPresentation, resp.NextState)

	lead, err := store.GetByExternalID(ctx, "tenant-1", "wa:34600111222")
	require.NoError(t, err)
	cat, _ := lead.Slot(leads.SlotCategory)
	assert.Equal(t, "villa", cat.Value)
	assert.Equal(t, leads.SourceFallback, cat.Source)
	loc, _ := lead.Slot(leads.SlotLocation)
	assert.Equal(t, "beach-area", loc.Value)
	beds, _ := lead.Slot(leads.SlotBedrooms)
	assert.Equal(t, float64(3), beds.Value)
	ceiling, ok := lead.BudgetCeiling()
	require.True(t, ok)
	assert.Equal(t, float64(3000000), ceiling)
	assert.Empty(t, lead.UnfilledRequired())
	assert.Greater(t, lead.Score, 0)
}

func TestProcessTurnFrustrationDiverts(t *testing.T) {
	eng, store, _, notifier := newTestEngine(t, testTenant())
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)

	resp, err := eng.ProcessTurn(ctx, inboundText("I'm done, enough of this"))
	require.NoError(t, err)
	assert.Equal(t, leads.StateUrgentHandoff, resp.NextState)
	assert.True(t, resp.CancelFollowUp)

	lead, _ := store.GetByExternalID(ctx, "tenant-1", "wa:34600111222")
	assert.Equal(t, leads.StateUrgentHandoff, lead.State)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.NotEmpty(t, notifier.messages)
	assert.Contains(t, notifier.messages[0], "frustrated")
}

func TestProcessTurnTenantFrustrationOverrides(t *testing.T) {
	tenant := testTenant()
	tenant.FrustrationPhrases = map[string][]string{"en": {"this is hopeless"}}
	eng, _, _, _ := newTestEngine(t, tenant)
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)

	// The override replaces the default English set entirely.
	resp, err := eng.ProcessTurn(ctx, inboundText("I'm done, enough of this"))
	require.NoError(t, err)
	assert.NotEqual(t, leads.StateUrgentHandoff, resp.NextState)

	resp, err = eng.ProcessTurn(ctx, inboundText("honestly this is hopeless"))
	require.NoError(t, err)
	assert.Equal(t, leads.StateUrgentHandoff, resp.NextState)
}

func TestProcessTurnCancelsPendingFollowUp(t *testing.T) {
	eng, _, canceler, _ := newTestEngine(t, testTenant())
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)
	_, err = eng.ProcessTurn(ctx, inboundText("still here"))
	require.NoError(t, err)

	canceler.mu.Lock()
	defer canceler.mu.Unlock()
	assert.NotEmpty(t, canceler.calls)
}

func TestProcessTurnRetriesVersionConflict(t *testing.T) {
	eng, store, _, _ := newTestEngine(t, testTenant())
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)

	store.mu.Lock()
	store.conflictsLeft = 1
	store.mu.Unlock()

	_, err = eng.ProcessTurn(ctx, inboundText("looking for a villa"))
	require.NoError(t, err)

	lead, _ := store.GetByExternalID(ctx, "tenant-1", "wa:34600111222")
	assert.Equal(t, 2, lead.MessageCount)
}

func TestProcessTurnGivesUpAfterMaxConflicts(t *testing.T) {
	eng, store, _, _ := newTestEngine(t, testTenant())
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)

	store.mu.Lock()
	store.conflictsLeft = 10
	store.mu.Unlock()

	_, err = eng.ProcessTurn(ctx, inboundText("anyone?"))
	assert.True(t, errors.Is(err, leads.ErrVersionConflict))
}

// TenantID never changes after creation, whatever the turn does.
func TestProcessTurnTenantIDImmutable(t *testing.T) {
	eng, store, _, _ := newTestEngine(t, testTenant())
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)
	before, _ := store.GetByExternalID(ctx, "tenant-1", "wa:34600111222")

	for _, msg := range []string{"buy a villa", "budget 2 million", "yes"} {
		_, err = eng.ProcessTurn(ctx, inboundText(msg))
		require.NoError(t, err)
	}
	after, _ := store.GetByExternalID(ctx, "tenant-1", "wa:34600111222")
	assert.Equal(t, before.TenantID, after.TenantID)
	assert.Equal(t, before.ID, after.ID)
}

func TestProcessTurnSerializesPerLead(t *testing.T) {
	eng, store, _, _ := newTestEngine(t, testTenant())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.ProcessTurn(ctx, inboundText("hello"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	lead, err := store.GetByExternalID(ctx, "tenant-1", "wa:34600111222")
	require.NoError(t, err)
	assert.Equal(t, 20, lead.MessageCount)
}

func TestProcessTurnOptOutTerminates(t *testing.T) {
	eng, store, _, _ := newTestEngine(t, testTenant())
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)
	resp, err := eng.ProcessTurn(ctx, inboundText("unsubscribe"))
	require.NoError(t, err)
	assert.Equal(t, leads.StateDone, resp.NextState)

	lead, _ := store.GetByExternalID(ctx, "tenant-1", "wa:34600111222")
	assert.True(t, lead.Terminal)
}

// The "No preference" location button must fill the slot and move the
// dialogue forward rather than looping on a clarify.
func TestProcessTurnLocationAnyButton(t *testing.T) {
	eng, store, _, _ := newTestEngine(t, testTenant())
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)
	_, err = eng.ProcessTurn(ctx, inboundText("I want to buy a property"))
	require.NoError(t, err)
	_, err = eng.ProcessTurn(ctx, inboundButton("contact_skip"))
	require.NoError(t, err)
	_, err = eng.ProcessTurn(ctx, inboundButton("cat_villa"))
	require.NoError(t, err)
	_, err = eng.ProcessTurn(ctx, inboundButton("budget_1m_2m"))
	require.NoError(t, err)

	resp, err := eng.ProcessTurn(ctx, inboundButton("loc_any"))
	require.NoError(t, err)
	require.Equal(t, leads.StateSlotFilling, resp.NextState)

	lead, err := store.GetByExternalID(ctx, "tenant-1", "wa:34600111222")
	require.NoError(t, err)
	loc, filled := lead.Slot(leads.SlotLocation)
	require.True(t, filled, "location button press must fill the slot")
	assert.Equal(t, "any", loc.Value)

	resp, err = eng.ProcessTurn(ctx, inboundButton("beds_3"))
	require.NoError(t, err)
	assert.Equal(t, leads.StateOfferPresentation, resp.NextState)
}

func TestProcessTurnExtractsOnlyUnfilledSlots(t *testing.T) {
	var mu sync.Mutex
	var requested [][]string
	rec := nlu.ExtractorFunc(func(_ context.Context, _, _ string, names []string) (map[string]nlu.Extraction, error) {
		mu.Lock()
		requested = append(requested, append([]string(nil), names...))
		mu.Unlock()
		return nil, nil
	})

	tenant := testTenant()
	catalog := slots.DefaultCatalog()
	log := logging.New("error")
	eng := NewEngine(Deps{
		Tenants:           &fakeTenants{tenants: map[string]*tenancy.Tenant{tenant.ID: tenant}},
		Leads:             newFakeLeads(),
		Classifier:        sentiment.Default(log),
		Extractor:         rec,
		Fallback:          slots.NewFallbackExtractor(catalog),
		Catalog:           catalog,
		FollowUps:         &fakeCanceler{},
		Notifier:          &fakeNotifier{},
		Logger:            log,
		PersistMaxRetries: 3,
	})
	ctx := context.Background()

	_, err := eng.ProcessTurn(ctx, inboundText("hello"))
	require.NoError(t, err)
	_, err = eng.ProcessTurn(ctx, inboundText("I want to buy a property"))
	require.NoError(t, err)
	_, err = eng.ProcessTurn(ctx, inboundButton("contact_skip"))
	require.NoError(t, err)
	_, err = eng.ProcessTurn(ctx, inboundButton("cat_villa"))
	require.NoError(t, err)

	_, err = eng.ProcessTurn(ctx, inboundText("somewhere near the beach"))
	require.NoError(t, err)

	mu.Lock()
	last := requested[len(requested)-1]
	mu.Unlock()
	assert.NotContains(t, last, leads.SlotCategory, "filled slot must not be re-requested")
	assert.Contains(t, last, leads.SlotLocation)
	assert.Contains(t, last, leads.SlotBudget)
}

func TestProcessTurnRejectsTenantMismatch(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, testTenant())

	ctx := tenancy.WithTenantID(context.Background(), "tenant-2")
	_, err := eng.ProcessTurn(ctx, inboundText("hi"))
	assert.ErrorIs(t, err, ErrInvalidInbound)

	ctx = tenancy.WithTenantID(context.Background(), "tenant-1")
	resp, err := eng.ProcessTurn(ctx, inboundText("hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Message)
}
