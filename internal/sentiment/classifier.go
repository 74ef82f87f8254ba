// Package sentiment gates inbound text on frustration before any other
// processing. Per-language phrase sets are data, not code branches, so
// tenants can tune them without redeploying logic.
package sentiment

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nestiq/lead-engine/pkg/logging"
)

var tracer = otel.Tracer("leadengine/sentiment")

// PhraseSet is versioned configuration of whole-phrase frustration patterns
// for one language.
type PhraseSet struct {
	Version  int      `json:"version"`
	Language string   `json:"language"`
	Phrases  []string `json:"phrases"`
}

// Result reports the outcome of one classification.
type Result struct {
	Frustrated     bool
	MatchedPattern string
}

// Classifier matches whole phrases with explicit word boundaries. It is
// biased toward false negatives: a missed mild irritation is cheaper than
// derailing a legitimate domain question.
type Classifier struct {
	logger   *logging.Logger
	patterns map[string][]*phrasePattern
}

type phrasePattern struct {
	regex  *regexp.Regexp
	phrase string
}

// DefaultPhraseSets returns the built-in per-language phrase configuration.
func DefaultPhraseSets() []PhraseSet {
	return []PhraseSet{
		{
			Version:  1,
			Language: "en",
			Phrases: []string{
				"i'm done",
				"i am done",
				"enough already",
				"that's enough",
				"done, enough",
				"this is ridiculous",
				"this is useless",
				"this is frustrating",
				"stop asking",
				"you're not listening",
				"you are not listening",
				"waste of time",
				"wasting my time",
				"i give up",
				"fed up",
				"talk to a human",
				"talk to a real person",
				"speak to an agent",
				"speak to a person",
				"get me a person",
				"leave me alone",
			},
		},
		{
			Version:  1,
			Language: "es",
			Phrases: []string{
				"estoy harto",
				"estoy harta",
				"ya basta",
				"basta ya",
				"esto es ridículo",
				"esto no sirve",
				"no me sirves",
				"me rindo",
				"pérdida de tiempo",
				"deja de preguntar",
				"no me estás escuchando",
				"quiero hablar con una persona",
				"quiero hablar con un humano",
				"déjame en paz",
			},
		},
	}
}

// New compiles a classifier from phrase sets. Later sets for the same
// language replace earlier ones, so tenant overrides can be appended after
// the defaults.
func New(sets []PhraseSet, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Classifier{
		logger:   logger,
		patterns: make(map[string][]*phrasePattern),
	}
	for _, set := range sets {
		compiled := make([]*phrasePattern, 0, len(set.Phrases))
		for _, phrase := range set.Phrases {
			re, err := compilePhrase(phrase)
			if err != nil {
				logger.Warn("sentiment: skipping uncompilable phrase",
					"language", set.Language, "phrase", phrase, "error", err)
				continue
			}
			compiled = append(compiled, &phrasePattern{regex: re, phrase: phrase})
		}
		c.patterns[set.Language] = compiled
	}
	return c
}

// Default returns a classifier with the built-in phrase sets.
func Default(logger *logging.Logger) *Classifier {
	return New(DefaultPhraseSets(), logger)
}

// WithOverrides returns a classifier where the given languages use the
// tenant's phrase lists instead of the built-ins. Languages absent from
// overrides keep the base sets.
func (c *Classifier) WithOverrides(overrides map[string][]string) *Classifier {
	if len(overrides) == 0 {
		return c
	}
	sets := make([]PhraseSet, 0, len(overrides))
	for lang, phrases := range overrides {
		sets = append(sets, PhraseSet{Language: lang, Phrases: phrases})
	}
	derived := New(sets, c.logger)
	for lang, compiled := range c.patterns {
		if _, ok := derived.patterns[lang]; !ok {
			derived.patterns[lang] = compiled
		}
	}
	return derived
}

// compilePhrase builds a case-insensitive, word-boundary anchored pattern.
// Whitespace inside the phrase matches any run of whitespace so "i'm done"
// also catches "i'm  done". Boundaries keep domain vocabulary such as
// "pre-purchase" from colliding with any frustration phrase sharing a
// substring.
func compilePhrase(phrase string) (*regexp.Regexp, error) {
	fields := strings.Fields(strings.TrimSpace(phrase))
	if len(fields) == 0 {
		return nil, errors.New("empty phrase")
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.Compile(`(?i)\b` + strings.Join(quoted, `[\s,]+`) + `\b`)
}

// Classify checks one turn's text for the given language. Unknown languages
// return a negative result rather than guessing across languages.
func (c *Classifier) Classify(ctx context.Context, text, language string) Result {
	_, span := tracer.Start(ctx, "sentiment.classify")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}
	}

	for _, p := range c.patterns[language] {
		if p.regex.MatchString(text) {
			span.SetAttributes(
				attribute.Bool("sentiment.frustrated", true),
				attribute.String("sentiment.pattern", p.phrase),
			)
			c.logger.Info("sentiment: frustration detected",
				"language", language, "pattern", p.phrase)
			return Result{Frustrated: true, MatchedPattern: p.phrase}
		}
	}
	return Result{}
}
