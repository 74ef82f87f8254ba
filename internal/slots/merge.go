package slots

import (
	"time"

	"github.com/nestiq/lead-engine/internal/leads"
	"github.com/nestiq/lead-engine/internal/nlu"
)

// Merge applies candidate extractions to the lead's slot map.
//
// Policy: last-write-wins per slot, except that a slot already filled is
// never overwritten by a lower-confidence extraction. Candidates below the
// slot's confidence threshold are dropped. Tag-set slots union with the
// existing tags instead of replacing them. Returns the names of slots that
// changed.
func (c *Catalog) Merge(lead *leads.Lead, candidates map[string]nlu.Extraction, source leads.SlotSource, now time.Time) []string {
	var changed []string
	for name, cand := range candidates {
		def, ok := c.Lookup(name)
		if !ok {
			continue
		}
		confidence := cand.Confidence
		if source == leads.SourceButton {
			// Button payloads are deterministic.
			confidence = 1
		}
		// MinConfidence filters probabilistic NLU scores. Buttons and the
		// regex fallback only produce values on exact matches, so their
		// fixed confidences pass through.
		if source == leads.SourceNLU && confidence < def.MinConfidence {
			continue
		}

		normalized, err := c.Normalize(name, cand.Value)
		if err != nil {
			continue
		}

		existing, filled := lead.Slot(name)
		if filled && confidence < existing.Confidence {
			continue
		}

		if def.Type == TypeTagSet && filled {
			normalized = unionTags(existing.Value, normalized)
		}

		lead.SetSlot(name, leads.SlotValue{
			Value:      normalized,
			Confidence: confidence,
			Source:     source,
			CapturedAt: now.UTC(),
		})
		changed = append(changed, name)
	}
	return changed
}

// unionTags merges two tag collections, existing tags first.
func unionTags(existing, incoming any) []string {
	var out []string
	seen := map[string]bool{}
	appendAll := func(v any) {
		tags, ok := rawAsStrings(v)
		if !ok {
			return
		}
		for _, t := range tags {
			if !seen[t] {
				out = append(out, t)
				seen[t] = true
			}
		}
	}
	appendAll(existing)
	appendAll(incoming)
	return out
}
