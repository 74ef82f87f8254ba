package slots

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nestiq/lead-engine/internal/leads"
)

// BudgetRange is the stored form of a budget slot. Tolerance is applied at
// matching time, never stored.
type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// asMap returns the JSON-stable representation stored on the lead.
func (b BudgetRange) asMap() map[string]any {
	return map[string]any{"min": b.Min, "max": b.Max}
}

// Matches reports whether a price falls inside the range widened by the
// given fractional tolerance (0.1 = ±10%).
func (b BudgetRange) Matches(price, tolerance float64) bool {
	lo := b.Min * (1 - tolerance)
	hi := b.Max * (1 + tolerance)
	return price >= lo && price <= hi
}

var (
	millionRE  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:m\b|million|millones|millón|mill\b)`)
	thousandRE = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:k\b|thousand|mil\b)`)
	plainNumRE = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})+|\d{4,}`)
	rangeRE    = regexp.MustCompile(`(?i)(?:between\s+|entre\s+)?([\d.,]+\s*(?:k|m|million|millones|millón|mil)?)\s*(?:-|–|to\b|and\b|y\b)\s*([\d.,]+\s*(?:k|m|million|millones|millón|mil)?)`)
	bedroomsRE = regexp.MustCompile(`(?i)(\d+)\s*(?:-?\s*)(?:bed(?:room)?s?\b|br\b|habitaciones?\b|dormitorios?\b|recámaras?\b|cuartos?\b)`)
)

// parseAmount turns "3 million", "1.8m", "300k", "1,800,000" into a number.
// Returns 0, false if nothing numeric is present.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if m := millionRE.FindStringSubmatch(s); m != nil {
		if n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			return n * 1_000_000, true
		}
	}
	if m := thousandRE.FindStringSubmatch(s); m != nil {
		if n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			return n * 1_000, true
		}
	}
	if m := plainNumRE.FindString(s); m != "" {
		cleaned := strings.NewReplacer(",", "", ".", "").Replace(m)
		// A separator-free number keeps its digits as written.
		if !strings.ContainsAny(m, ",.") {
			cleaned = m
		}
		if n, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// NormalizeBudget parses a raw budget expression into a range. A single
// amount yields a degenerate range (min == max); explicit ranges keep both
// ends, swapped into order if needed.
func NormalizeBudget(raw string) (BudgetRange, bool) {
	if m := rangeRE.FindStringSubmatch(raw); m != nil {
		lo, okLo := parseAmount(m[1])
		hi, okHi := parseAmount(m[2])
		if okLo && okHi && lo > 0 && hi > 0 {
			if lo > hi {
				lo, hi = hi, lo
			}
			return BudgetRange{Min: lo, Max: hi}, true
		}
	}
	if n, ok := parseAmount(raw); ok && n > 0 {
		return BudgetRange{Min: n, Max: n}, true
	}
	return BudgetRange{}, false
}

// NormalizeBedrooms extracts a bedroom count from text like "3 bedroom" or
// "3 habitaciones". Bare digits are accepted when the whole value is a
// number (a button payload or a direct answer).
func NormalizeBedrooms(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if m := bedroomsRE.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n < 30 {
			return float64(n), true
		}
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < 30 {
		return float64(n), true
	}
	return 0, false
}

type vocabEntry struct {
	re    *regexp.Regexp
	canon string
}

// compileVocab builds word-boundary matchers for a term → canonical map.
func compileVocab(pairs []struct{ term, canon string }) []vocabEntry {
	out := make([]vocabEntry, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, vocabEntry{
			re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p.term) + `\b`),
			canon: p.canon,
		})
	}
	return out
}

// categoryVocab maps free-text mentions to canonical categories.
var categoryVocab = compileVocab([]struct{ term, canon string }{
	{"villa", "villa"},
	{"chalet", "villa"},
	{"townhouse", "townhouse"},
	{"town house", "townhouse"},
	{"adosado", "townhouse"},
	{"penthouse", "penthouse"},
	{"ático", "penthouse"},
	{"atico", "penthouse"},
	{"apartment", "apartment"},
	{"apartamento", "apartment"},
	{"departamento", "apartment"},
	{"flat", "apartment"},
	{"condo", "apartment"},
	{"piso", "apartment"},
	{"house", "house"},
	{"casa", "house"},
	{"land", "land"},
	{"plot", "land"},
	{"terreno", "land"},
	{"parcela", "land"},
})

// locationVocab maps free-text mentions to canonical areas.
var locationVocab = compileVocab([]struct{ term, canon string }{
	{"beachfront", "beach-area"},
	{"near the beach", "beach-area"},
	{"by the beach", "beach-area"},
	{"by the sea", "beach-area"},
	{"close to the beach", "beach-area"},
	{"beach", "beach-area"},
	{"playa", "beach-area"},
	{"frente al mar", "beach-area"},
	{"city center", "city-center"},
	{"city centre", "city-center"},
	{"downtown", "city-center"},
	{"centro", "city-center"},
	{"suburb", "suburbs"},
	{"afueras", "suburbs"},
	{"golf", "golf-community"},
	{"marina", "marina"},
	{"puerto", "marina"},
	{"countryside", "countryside"},
	{"campo", "countryside"},
	{"anywhere", "any"},
	{"no preference", "any"},
	{"cualquier zona", "any"},
	{"donde sea", "any"},
	{"me da igual", "any"},
})

// amenityVocab maps free-text mentions to canonical amenity tags.
var amenityVocab = compileVocab([]struct{ term, canon string }{
	{"swimming pool", "pool"},
	{"pool", "pool"},
	{"piscina", "pool"},
	{"alberca", "pool"},
	{"garden", "garden"},
	{"jardín", "garden"},
	{"jardin", "garden"},
	{"garage", "garage"},
	{"garaje", "garage"},
	{"parking", "garage"},
	{"sea view", "sea-view"},
	{"ocean view", "sea-view"},
	{"vista al mar", "sea-view"},
	{"gym", "gym"},
	{"gimnasio", "gym"},
	{"terrace", "terrace"},
	{"terraza", "terrace"},
	{"balcony", "terrace"},
	{"furnished", "furnished"},
	{"amueblado", "furnished"},
	{"elevator", "elevator"},
	{"ascensor", "elevator"},
})

// Canonical value sets per enum slot. Normalize accepts these verbatim so
// button payloads and collaborators that already speak the canonical
// vocabulary round-trip instead of being dropped.
var (
	categoryCanon = canonSet("villa", "apartment", "house", "townhouse", "penthouse", "land")
	locationCanon = canonSet("beach-area", "city-center", "suburbs", "golf-community", "marina", "countryside", "any")
	urgencyCanon  = canonSet("immediate", "soon", "browsing")
)

func canonSet(vals ...string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}

func asCanon(set map[string]bool, raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if set[s] {
		return s, true
	}
	return "", false
}

// urgencyVocab maps free-text mentions to urgency tiers, most urgent first.
var urgencyVocab = compileVocab([]struct{ term, canon string }{
	{"asap", "immediate"},
	{"as soon as possible", "immediate"},
	{"immediately", "immediate"},
	{"right away", "immediate"},
	{"urgent", "immediate"},
	{"this week", "immediate"},
	{"de inmediato", "immediate"},
	{"urgente", "immediate"},
	{"cuanto antes", "immediate"},
	{"this month", "soon"},
	{"next month", "soon"},
	{"soon", "soon"},
	{"pronto", "soon"},
	{"este mes", "soon"},
	{"just looking", "browsing"},
	{"just browsing", "browsing"},
	{"no rush", "browsing"},
	{"sin prisa", "browsing"},
	{"solo viendo", "browsing"},
	{"sólo viendo", "browsing"},
})

// NormalizeCategory maps raw text to a canonical category.
func NormalizeCategory(raw string) (string, bool) {
	if c, ok := asCanon(categoryCanon, raw); ok {
		return c, true
	}
	for _, v := range categoryVocab {
		if v.re.MatchString(raw) {
			return v.canon, true
		}
	}
	return "", false
}

// NormalizeLocation maps raw text to a canonical area tag.
func NormalizeLocation(raw string) (string, bool) {
	if c, ok := asCanon(locationCanon, raw); ok {
		return c, true
	}
	for _, v := range locationVocab {
		if v.re.MatchString(raw) {
			return v.canon, true
		}
	}
	return "", false
}

// NormalizeAmenities collects every canonical amenity tag mentioned in the
// text, deduplicated in vocabulary order.
func NormalizeAmenities(raw string) ([]string, bool) {
	var tags []string
	seen := map[string]bool{}
	for _, v := range amenityVocab {
		if seen[v.canon] {
			continue
		}
		if v.re.MatchString(raw) {
			tags = append(tags, v.canon)
			seen[v.canon] = true
		}
	}
	return tags, len(tags) > 0
}

// NormalizeUrgency maps raw text to an urgency tier.
func NormalizeUrgency(raw string) (string, bool) {
	if c, ok := asCanon(urgencyCanon, raw); ok {
		return c, true
	}
	for _, v := range urgencyVocab {
		if v.re.MatchString(raw) {
			return v.canon, true
		}
	}
	return "", false
}

// Normalize canonicalizes a raw extracted value for the named slot.
// Returns the stored form, or an error if the raw value cannot be made
// canonical.
func (c *Catalog) Normalize(name string, raw any) (any, error) {
	def, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("slots: unknown slot %q", name)
	}

	text := rawAsString(raw)
	switch def.Type {
	case TypeBudget:
		if r, ok := raw.(BudgetRange); ok {
			return r.asMap(), nil
		}
		if m, ok := raw.(map[string]any); ok {
			// Already-normalized form, e.g. from a button binding.
			if _, hasMax := m["max"].(float64); hasMax {
				return m, nil
			}
		}
		if n, ok := raw.(float64); ok && n > 0 {
			return BudgetRange{Min: n, Max: n}.asMap(), nil
		}
		if r, ok := NormalizeBudget(text); ok {
			return r.asMap(), nil
		}
		return nil, fmt.Errorf("slots: unparseable budget %q", text)
	case TypeNumber:
		if n, ok := raw.(float64); ok && n > 0 {
			return n, nil
		}
		if n, ok := NormalizeBedrooms(text); ok {
			return n, nil
		}
		return nil, fmt.Errorf("slots: unparseable number %q", text)
	case TypeTagSet:
		if tags, ok := rawAsStrings(raw); ok {
			var canon []string
			seen := map[string]bool{}
			for _, t := range tags {
				if norm, ok := NormalizeAmenities(t); ok {
					for _, tag := range norm {
						if !seen[tag] {
							canon = append(canon, tag)
							seen[tag] = true
						}
					}
				}
			}
			if len(canon) > 0 {
				return canon, nil
			}
		}
		if tags, ok := NormalizeAmenities(text); ok {
			return tags, nil
		}
		return nil, fmt.Errorf("slots: no recognized tags in %q", text)
	case TypeEnum:
		var canon string
		var found bool
		switch name {
		case leads.SlotCategory:
			canon, found = NormalizeCategory(text)
		case leads.SlotLocation:
			canon, found = NormalizeLocation(text)
		case leads.SlotUrgency:
			canon, found = NormalizeUrgency(text)
		}
		if !found {
			return nil, fmt.Errorf("slots: unrecognized %s value %q", name, text)
		}
		return canon, nil
	}
	return nil, fmt.Errorf("slots: unhandled type %q", def.Type)
}

func rawAsString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", raw)
	}
}

func rawAsStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}
