package dialogue

import (
	"regexp"
	"strings"
)

// Per-language intent shortcut sets. All matching is word-boundary
// anchored: a goal keyword must never fire inside an unrelated longer
// word that happens to share a prefix.
type keywordSet struct {
	affirmative *regexp.Regexp
	negative    *regexp.Regexp
	goal        *regexp.Regexp
	optOut      *regexp.Regexp
}

func compileWords(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	// \b is ASCII-only in RE2 and never matches next to accented letters
	// (sí, después), so boundaries are spelled out against Unicode letters.
	return regexp.MustCompile(`(?i)(?:\A|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:[^\p{L}\p{N}]|\z)`)
}

var keywordSets = map[string]keywordSet{
	"en": {
		affirmative: compileWords("yes", "yeah", "yep", "sure", "ok", "okay", "sounds good", "please do"),
		negative:    compileWords("no", "nope", "not now", "not yet", "later"),
		goal:        compileWords("buy", "purchase", "invest", "viewing", "visit", "book", "schedule"),
		optOut:      compileWords("stop", "unsubscribe", "not interested", "no thanks", "no thank you"),
	},
	"es": {
		affirmative: compileWords("sí", "si", "claro", "vale", "dale", "por supuesto", "de acuerdo"),
		negative:    compileWords("no", "todavía no", "todavia no", "luego", "después", "despues"),
		goal:        compileWords("comprar", "compra", "invertir", "visita", "visitar", "agendar", "cita"),
		optOut:      compileWords("baja", "no me interesa", "no gracias", "cancelar"),
	},
}

func keywordsFor(language string) keywordSet {
	if set, ok := keywordSets[language]; ok {
		return set
	}
	return keywordSets["en"]
}

func isAffirmative(text, language string) bool {
	return keywordsFor(language).affirmative.MatchString(text)
}

func isNegative(text, language string) bool {
	return keywordsFor(language).negative.MatchString(text)
}

func hasGoalKeyword(text, language string) bool {
	return keywordsFor(language).goal.MatchString(text)
}

func isOptOut(text, language string) bool {
	return keywordsFor(language).optOut.MatchString(text)
}

// detectLanguageChoice resolves a free-text language selection against the
// known language codes and names.
func detectLanguageChoice(text string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	switch {
	case cleaned == "en" || strings.Contains(cleaned, "english"):
		return "en", true
	case cleaned == "es" || strings.Contains(cleaned, "español") || strings.Contains(cleaned, "espanol") || strings.Contains(cleaned, "spanish"):
		return "es", true
	}
	return "", false
}
