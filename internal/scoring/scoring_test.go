package scoring

import (
	"testing"

	"github.com/nestiq/lead-engine/internal/leads"
)

func leadWithBudget(max float64) *leads.Lead {
	l := leads.New("t-1", "x", "webchat", "en")
	l.SetSlot(leads.SlotBudget, leads.SlotValue{
		Value: map[string]any{"min": max * 0.9, "max": max},
	})
	return l
}

func TestScoreBudgetAndContact(t *testing.T) {
	l := leadWithBudget(1_800_000)
	l.ContactCaptured = true

	score := Compute(l)
	if score != 55 {
		t.Fatalf("expected score 55 (35 budget + 20 contact), got %d", score)
	}
	if TemperatureFor(score) != leads.TempWarm {
		t.Fatalf("expected warm at score %d, got %s", score, TemperatureFor(score))
	}
}

func TestScoreWithAppointment(t *testing.T) {
	l := leadWithBudget(1_800_000)
	l.ContactCaptured = true
	l.AppointmentSet = true

	score := Compute(l)
	if score != 85 {
		t.Fatalf("expected score 85 (35 + 20 + 30), got %d", score)
	}
	if TemperatureFor(score) != leads.TempHot {
		t.Fatalf("expected hot at score %d, got %s", score, TemperatureFor(score))
	}
}

func TestScoreClampedAt100(t *testing.T) {
	l := leadWithBudget(5_000_000)
	l.ContactCaptured = true
	l.AppointmentSet = true
	l.MessageCount = 50
	l.SetSlot(leads.SlotUrgency, leads.SlotValue{Value: leads.UrgencyImmediate})

	if got := Compute(l); got != 100 {
		t.Fatalf("expected clamp at 100, got %d", got)
	}
}

func TestUrgencyBonusOnlyForHighestTier(t *testing.T) {
	base := leadWithBudget(1_000_000)
	baseScore := Compute(base)

	relaxed := leadWithBudget(1_000_000)
	relaxed.SetSlot(leads.SlotUrgency, leads.SlotValue{Value: "browsing"})
	if Compute(relaxed) != baseScore {
		t.Error("non-immediate urgency should not add points")
	}

	urgent := leadWithBudget(1_000_000)
	urgent.SetSlot(leads.SlotUrgency, leads.SlotValue{Value: leads.UrgencyImmediate})
	if Compute(urgent) != baseScore+10 {
		t.Error("immediate urgency should add 10 points")
	}
}

func TestEngagementCapped(t *testing.T) {
	l := leads.New("t-1", "x", "webchat", "en")
	l.MessageCount = 3
	if Compute(l) != 3 {
		t.Errorf("expected 3 engagement points, got %d", Compute(l))
	}
	l.MessageCount = 40
	if Compute(l) != 10 {
		t.Errorf("engagement should cap at 10, got %d", Compute(l))
	}
}

func TestTemperatureBoundaries(t *testing.T) {
	cases := []struct {
		score int
		want  leads.Temperature
	}{
		{0, leads.TempCold},
		{39, leads.TempCold},
		{40, leads.TempWarm},
		{69, leads.TempWarm},
		{70, leads.TempHot},
		{89, leads.TempHot},
		{90, leads.TempBurning},
		{100, leads.TempBurning},
	}
	for _, tc := range cases {
		if got := TemperatureFor(tc.score); got != tc.want {
			t.Errorf("score %d: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestTemperatureIdempotent(t *testing.T) {
	for score := 0; score <= 100; score++ {
		first := TemperatureFor(score)
		second := TemperatureFor(score)
		if first != second {
			t.Fatalf("temperature not idempotent at score %d", score)
		}
	}
}

func TestApplySetsBothAtomically(t *testing.T) {
	l := leadWithBudget(1_800_000)
	l.ContactCaptured = true
	Apply(l)

	if l.Score != 55 || l.Temperature != leads.TempWarm {
		t.Fatalf("apply mismatch: score=%d temp=%s", l.Score, l.Temperature)
	}
}
