package tenancy

import (
	"errors"
	"time"
)

// ErrTenantNotFound indicates the tenant id has no row.
var ErrTenantNotFound = errors.New("tenancy: tenant not found")

// Tenant is the isolation boundary for leads, vocabulary and scoring state.
// Created at onboarding, read-mostly afterwards.
type Tenant struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Languages       []string `json:"languages"`
	DefaultLanguage string   `json:"default_language"`
	// FrustrationPhrases overrides the built-in per-language phrase sets
	// when non-empty. Keyed by language code.
	FrustrationPhrases map[string][]string `json:"frustration_phrases,omitempty"`
	DailyNudgeQuota    int                 `json:"daily_nudge_quota"`
	CreatedAt          time.Time           `json:"created_at"`
}

// SupportsLanguage reports whether the tenant serves the given language.
func (t *Tenant) SupportsLanguage(lang string) bool {
	for _, l := range t.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Language picks the best language for a locale hint, falling back to the
// tenant default.
func (t *Tenant) Language(hint string) string {
	if t.SupportsLanguage(hint) {
		return hint
	}
	return t.DefaultLanguage
}
