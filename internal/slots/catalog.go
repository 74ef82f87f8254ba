// Package slots turns free text or button payloads into the canonical slot
// map the dialogue engine fills. Normalization is deterministic; the NLU
// collaborator only supplies raw candidates.
package slots

import (
	"github.com/nestiq/lead-engine/internal/leads"
)

// Type describes how a slot's raw values are normalized and merged.
type Type string

const (
	TypeBudget Type = "budget"
	TypeEnum   Type = "enum"
	TypeNumber Type = "number"
	TypeTagSet Type = "tagset"
)

// Definition is one entry in the slot catalog.
type Definition struct {
	Name string
	Type Type

	// MinConfidence is the threshold below which an extraction is
	// discarded outright. Tunable per slot type; see Catalog defaults.
	MinConfidence float64

	// Required slots are prompted for explicitly during SLOT_FILLING.
	Required bool
}

// Catalog is the set of slots a tenant's dialogue collects.
type Catalog struct {
	defs map[string]Definition
}

// FallbackConfidence is attached to values produced by the deterministic
// regex extractor when the NLU collaborator is unavailable.
const FallbackConfidence = 0.45

// DefaultCatalog returns the built-in slot catalog. Thresholds are
// deliberately configuration, not constants buried in merge logic.
func DefaultCatalog() *Catalog {
	defs := []Definition{
		{Name: leads.SlotCategory, Type: TypeEnum, MinConfidence: 0.6, Required: true},
		{Name: leads.SlotBudget, Type: TypeBudget, MinConfidence: 0.5, Required: true},
		{Name: leads.SlotLocation, Type: TypeEnum, MinConfidence: 0.6, Required: true},
		{Name: leads.SlotBedrooms, Type: TypeNumber, MinConfidence: 0.5, Required: true},
		{Name: leads.SlotAmenities, Type: TypeTagSet, MinConfidence: 0.4},
		{Name: leads.SlotUrgency, Type: TypeEnum, MinConfidence: 0.6},
	}
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		c.defs[d.Name] = d
	}
	return c
}

// Lookup returns the definition for a slot name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Unfilled returns the names of catalog slots the lead has not filled yet.
func (c *Catalog) Unfilled(lead *leads.Lead) []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		if _, ok := lead.Slot(name); !ok {
			names = append(names, name)
		}
	}
	return names
}

// WithThreshold returns a copy of the catalog with one slot's confidence
// threshold replaced, for per-tenant tuning.
func (c *Catalog) WithThreshold(name string, min float64) *Catalog {
	out := &Catalog{defs: make(map[string]Definition, len(c.defs))}
	for n, d := range c.defs {
		if n == name {
			d.MinConfidence = min
		}
		out.defs[n] = d
	}
	return out
}
