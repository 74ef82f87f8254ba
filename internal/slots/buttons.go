package slots

import (
	"github.com/nestiq/lead-engine/internal/leads"
)

// buttonBinding maps a button id to the slot value it deterministically
// fills. Button turns never call the NLU collaborator.
type buttonBinding struct {
	slot  string
	value any
}

var buttonBindings = map[string]buttonBinding{
	"cat_villa":     {leads.SlotCategory, "villa"},
	"cat_apartment": {leads.SlotCategory, "apartment"},
	"cat_house":     {leads.SlotCategory, "house"},
	"cat_penthouse": {leads.SlotCategory, "penthouse"},
	"cat_land":      {leads.SlotCategory, "land"},

	"budget_lt_500k": {leads.SlotBudget, BudgetRange{Min: 0, Max: 500_000}.asMap()},
	"budget_500k_1m": {leads.SlotBudget, BudgetRange{Min: 500_000, Max: 1_000_000}.asMap()},
	"budget_1m_2m":   {leads.SlotBudget, BudgetRange{Min: 1_000_000, Max: 2_000_000}.asMap()},
	"budget_2m_3m":   {leads.SlotBudget, BudgetRange{Min: 2_000_000, Max: 3_000_000}.asMap()},
	"budget_gt_3m":   {leads.SlotBudget, BudgetRange{Min: 3_000_000, Max: 10_000_000}.asMap()},

	"loc_beach":  {leads.SlotLocation, "beach-area"},
	"loc_center": {leads.SlotLocation, "city-center"},
	"loc_golf":   {leads.SlotLocation, "golf-community"},
	"loc_any":    {leads.SlotLocation, "any"},

	"beds_1": {leads.SlotBedrooms, float64(1)},
	"beds_2": {leads.SlotBedrooms, float64(2)},
	"beds_3": {leads.SlotBedrooms, float64(3)},
	"beds_4": {leads.SlotBedrooms, float64(4)},

	"urgency_now":      {leads.SlotUrgency, "immediate"},
	"urgency_soon":     {leads.SlotUrgency, "soon"},
	"urgency_browsing": {leads.SlotUrgency, "browsing"},
}

// ResolveButton returns the slot binding for a button id, if the id carries
// one. Navigation buttons (language choice, yes/no) have no binding and are
// handled by the dialogue transition table directly.
func ResolveButton(id string) (slot string, value any, ok bool) {
	b, found := buttonBindings[id]
	if !found {
		return "", nil, false
	}
	return b.slot, b.value, true
}
