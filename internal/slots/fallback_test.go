package slots

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nestiq/lead-engine/internal/leads"
)

func TestFallbackExtractsFullUtterance(t *testing.T) {
	f := NewFallbackExtractor(nil)
	text := "3 bedroom villa near the beach with a pool, budget 3 million"

	got, err := f.Extract(context.Background(), text, "en", []string{
		leads.SlotCategory, leads.SlotBudget, leads.SlotLocation,
		leads.SlotBedrooms, leads.SlotAmenities,
	})
	require.NoError(t, err)

	require.Equal(t, "villa", got[leads.SlotCategory].Value)
	require.Equal(t, "beach-area", got[leads.SlotLocation].Value)
	require.Equal(t, float64(3), got[leads.SlotBedrooms].Value)
	require.Equal(t, []string{"pool"}, got[leads.SlotAmenities].Value)

	budget, ok := got[leads.SlotBudget].Value.(map[string]any)
	require.True(t, ok, "budget should normalize to a range map")
	require.Equal(t, float64(3_000_000), budget["max"])
}

func TestFallbackOmitsUnfoundSlots(t *testing.T) {
	f := NewFallbackExtractor(nil)
	got, err := f.Extract(context.Background(), "hello there", "en", []string{
		leads.SlotCategory, leads.SlotBudget,
	})
	require.NoError(t, err)
	require.Empty(t, got, "nothing recognizable should yield nothing, not an error")
}

func TestFallbackOnlyReturnsRequestedSlots(t *testing.T) {
	f := NewFallbackExtractor(nil)
	got, err := f.Extract(context.Background(), "a villa with a pool", "en", []string{leads.SlotCategory})
	require.NoError(t, err)
	require.Contains(t, got, leads.SlotCategory)
	require.NotContains(t, got, leads.SlotAmenities)
}

func TestFallbackConfidenceIsFixed(t *testing.T) {
	f := NewFallbackExtractor(nil)
	got, err := f.Extract(context.Background(), "a villa", "en", []string{leads.SlotCategory})
	require.NoError(t, err)
	require.Equal(t, FallbackConfidence, got[leads.SlotCategory].Confidence)
}
