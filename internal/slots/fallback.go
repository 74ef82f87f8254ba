package slots

import (
	"context"

	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/nlu"
)

// FallbackExtractor is the deterministic extraction path used when the NLU
// collaborator times out or errors: numeric-range regexes plus the small
// controlled vocabulary. Everything it produces carries FallbackConfidence.
type FallbackExtractor struct {
	catalog *Catalog
}

// NewFallbackExtractor creates the regex-based extractor.
func NewFallbackExtractor(catalog *Catalog) *FallbackExtractor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &FallbackExtractor{catalog: catalog}
}

var _ nlu.Extractor = (*FallbackExtractor)(nil)

// Extract scans the text for each requested slot. Failure to find an
// optional slot is not an error; the result simply omits it.
func (f *FallbackExtractor) Extract(_ context.Context, text, _ string, slotNames []string) (map[string]nlu.Extraction, error) {
	out := make(map[string]nlu.Extraction)
	for _, name := range slotNames {
		var (
			value any
			found bool
		)
		switch name {
		case leads.SlotBudget:
			if r, ok := NormalizeBudget(text); ok {
				value, found = r.asMap(), true
			}
		case leads.SlotBedrooms:
			if n, ok := NormalizeBedrooms(text); ok {
				value, found = n, true
			}
		case leads.SlotCategory:
			if c, ok := NormalizeCategory(text); ok {
				value, found = c, true
			}
		case leads.SlotLocation:
			if l, ok := NormalizeLocation(text); ok {
				value, found = l, true
			}
		case leads.SlotAmenities:
			if tags, ok := NormalizeAmenities(text); ok {
				value, found = tags, true
			}
		case leads.SlotUrgency:
			if u, ok := NormalizeUrgency(text); ok {
				value, found = u, true
			}
		}
		if found {
			out[name] = nlu.Extraction{Value: value, Confidence: FallbackConfidence}
		}
	}
	return out, nil
}
