// Package scoring computes the lead score and temperature label. Both are
// pure functions of the lead's captured attributes; callers never set them
// directly.
package scoring

import (
	"github.com/nestiq/lead-engine/internal/leads"
)

const (
	budgetCap     = 40
	contactPoints = 20
	apptPoints    = 30
	engagementCap = 10
	urgencyPoints = 10
	maxScore      = 100
)

// budgetTiers maps a budget ceiling to banded points, highest band first.
var budgetTiers = []struct {
	floor  float64
	points int
}{
	{3_000_000, 40},
	{1_500_000, 35},
	{1_000_000, 30},
	{500_000, 20},
	{1, 10},
}

// Compute returns the 0-100 score for a lead.
func Compute(lead *leads.Lead) int {
	score := 0

	if ceiling, ok := lead.BudgetCeiling(); ok {
		for _, tier := range budgetTiers {
			if ceiling >= tier.floor {
				score += min(tier.points, budgetCap)
				break
			}
		}
	}

	if lead.ContactCaptured {
		score += contactPoints
	}
	if lead.AppointmentSet {
		score += apptPoints
	}

	score += min(lead.MessageCount, engagementCap)

	if tier, ok := lead.UrgencyTier(); ok && tier == leads.UrgencyImmediate {
		score += urgencyPoints
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

// TemperatureFor maps a score to its four-tier label.
func TemperatureFor(score int) leads.Temperature {
	switch {
	case score >= 90:
		return leads.TempBurning
	case score >= 70:
		return leads.TempHot
	case score >= 40:
		return leads.TempWarm
	default:
		return leads.TempCold
	}
}

// Apply recomputes score and temperature on the lead in one step so the
// pair is never partially updated.
func Apply(lead *leads.Lead) {
	lead.Score = Compute(lead)
	lead.Temperature = TemperatureFor(lead.Score)
}
