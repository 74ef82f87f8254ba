// Package nlu is the narrow interface to the external text-understanding
// collaborator. The engine never depends on a vendor SDK; it sees only
// slot-name → extraction maps and fails closed when the collaborator is
// slow or unavailable.
package nlu

import (
	"context"
	"errors"
)

var (
	// ErrTimeout indicates the collaborator did not answer in time.
	ErrTimeout = errors.New("nlu: extraction timed out")

	// ErrUnavailable indicates the collaborator returned an error.
	ErrUnavailable = errors.New("nlu: collaborator unavailable")
)

// Extraction is one candidate slot value with the collaborator's confidence.
type Extraction struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Extractor extracts structured slot values from free text. Implementations
// must only return entries for names in slotNames.
type Extractor interface {
	Extract(ctx context.Context, text, language string, slotNames []string) (map[string]Extraction, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, text, language string, slotNames []string) (map[string]Extraction, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, text, language string, slotNames []string) (map[string]Extraction, error) {
	return f(ctx, text, language, slotNames)
}
