package leads

// Canonical slot names shared by the extractor, the dialogue engine and
// scoring.
const (
	SlotBudget    = "budget"
	SlotCategory  = "category"
	SlotLocation  = "location"
	SlotBedrooms  = "bedrooms"
	SlotAmenities = "amenities"
	SlotUrgency   = "urgency"
)

// UrgencyImmediate is the highest urgency tier; it earns the score bonus.
const UrgencyImmediate = "immediate"

// RequiredSlots are prompted for in order during SLOT_FILLING.
func RequiredSlots() []string {
	return []string{SlotCategory, SlotBudget, SlotLocation, SlotBedrooms}
}

// UnfilledRequired returns the required slots the lead has not answered yet,
// in prompt order.
func (l *Lead) UnfilledRequired() []string {
	var missing []string
	for _, name := range RequiredSlots() {
		if _, ok := l.Slots[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// BudgetCeiling returns the upper bound of the captured budget range.
// Handles both the freshly-normalized form and the JSON round-tripped form.
func (l *Lead) BudgetCeiling() (float64, bool) {
	v, ok := l.Slots[SlotBudget]
	if !ok {
		return 0, false
	}
	switch val := v.Value.(type) {
	case map[string]any:
		if max, ok := val["max"].(float64); ok {
			return max, true
		}
	case map[string]float64:
		if max, ok := val["max"]; ok {
			return max, true
		}
	case float64:
		return val, true
	}
	return 0, false
}

// UrgencyTier returns the captured urgency value, if any.
func (l *Lead) UrgencyTier() (string, bool) {
	v, ok := l.Slots[SlotUrgency]
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok && s != ""
}
