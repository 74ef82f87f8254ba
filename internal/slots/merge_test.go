package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/nlu"
)

func TestMergeLastWriteWins(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")
	now := time.Now()

	changed := c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "apartment", Confidence: 0.7},
	}, leads.SourceNLU, now)
	require.Equal(t, []string{leads.SlotCategory}, changed)

	// A higher-or-equal confidence extraction replaces the value.
	c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "villa", Confidence: 0.9},
	}, leads.SourceNLU, now)

	v, _ := lead.Slot(leads.SlotCategory)
	require.Equal(t, "villa", v.Value)
}

func TestMergeLowerConfidenceDoesNotOverwrite(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")
	now := time.Now()

	c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "villa", Confidence: 0.9},
	}, leads.SourceNLU, now)

	changed := c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "apartment", Confidence: 0.65},
	}, leads.SourceNLU, now)
	require.Empty(t, changed)

	v, _ := lead.Slot(leads.SlotCategory)
	require.Equal(t, "villa", v.Value, "filled slot must survive a weaker extraction")
}

func TestMergeBelowThresholdDropped(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")

	changed := c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "villa", Confidence: 0.3},
	}, leads.SourceNLU, time.Now())
	require.Empty(t, changed)
	_, filled := lead.Slot(leads.SlotCategory)
	require.False(t, filled)
}

func TestMergeButtonAlwaysWins(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")
	now := time.Now()

	c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "villa", Confidence: 0.9},
	}, leads.SourceNLU, now)

	changed := c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "apartment"},
	}, leads.SourceButton, now)
	require.Equal(t, []string{leads.SlotCategory}, changed)

	v, _ := lead.Slot(leads.SlotCategory)
	require.Equal(t, "apartment", v.Value)
	require.Equal(t, leads.SourceButton, v.Source)
}

func TestMergeAmenitiesUnion(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")
	now := time.Now()

	c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotAmenities: {Value: "a pool please", Confidence: 0.8},
	}, leads.SourceNLU, now)
	c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotAmenities: {Value: "and a garden", Confidence: 0.8},
	}, leads.SourceNLU, now)

	v, _ := lead.Slot(leads.SlotAmenities)
	require.ElementsMatch(t, []string{"pool", "garden"}, v.Value)
}

func TestMergeUnknownSlotIgnored(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")

	changed := c.Merge(lead, map[string]nlu.Extraction{
		"shoe_size": {Value: "44", Confidence: 0.99},
	}, leads.SourceNLU, time.Now())
	require.Empty(t, changed)
}

func TestMergeUnnormalizableValueSkipped(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")

	changed := c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotBudget: {Value: "cheap", Confidence: 0.95},
	}, leads.SourceNLU, time.Now())
	require.Empty(t, changed)
}

func TestResolveButton(t *testing.T) {
	slot, value, ok := ResolveButton("cat_villa")
	require.True(t, ok)
	require.Equal(t, leads.SlotCategory, slot)
	require.Equal(t, "villa", value)

	_, _, ok = ResolveButton("lang_en")
	require.False(t, ok, "navigation buttons carry no slot binding")
}

func TestMergeFallbackBypassesThreshold(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")

	changed := c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "villa", Confidence: FallbackConfidence},
		leads.SlotBudget:   {Value: BudgetRange{Max: 3000000}, Confidence: FallbackConfidence},
	}, leads.SourceFallback, time.Now())
	require.ElementsMatch(t, []string{leads.SlotCategory, leads.SlotBudget}, changed)

	v, ok := lead.Slot(leads.SlotCategory)
	require.True(t, ok)
	require.Equal(t, leads.SourceFallback, v.Source)
	require.Equal(t, FallbackConfidence, v.Confidence)
}

func TestMergeFallbackNeverOverwritesNLU(t *testing.T) {
	c := DefaultCatalog()
	lead := leads.New("t-1", "x", "webchat", "en")
	now := time.Now()

	c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "apartment", Confidence: 0.9},
	}, leads.SourceNLU, now)
	c.Merge(lead, map[string]nlu.Extraction{
		leads.SlotCategory: {Value: "villa", Confidence: FallbackConfidence},
	}, leads.SourceFallback, now)

	v, _ := lead.Slot(leads.SlotCategory)
	require.Equal(t, "apartment", v.Value)
}

// Every quick-reply binding must round-trip through Merge: button payloads
// carry already-canonical values, so normalization has to accept them
// verbatim rather than requiring a vocabulary hit.
func TestMergeAcceptsEveryButtonBinding(t *testing.T) {
	c := DefaultCatalog()
	now := time.Now()

	for id, b := range buttonBindings {
		lead := leads.New("t-1", "x", "webchat", "en")
		changed := c.Merge(lead, map[string]nlu.Extraction{
			b.slot: {Value: b.value, Confidence: 1},
		}, leads.SourceButton, now)
		require.Equal(t, []string{b.slot}, changed, "button %q was dropped", id)

		v, filled := lead.Slot(b.slot)
		require.True(t, filled, "button %q did not fill %s", id, b.slot)
		require.Equal(t, leads.SourceButton, v.Source)
		require.EqualValues(t, 1, v.Confidence)
	}
}
