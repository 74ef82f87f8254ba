package dialogue

// BuildNudge returns the re-engagement message for a follow-up attempt,
// in the conversation language. Attempts past the copy rotation reuse the
// last variant.
func BuildNudge(language string, attempt int) string {
	p := promptsFor(language)
	if attempt < 1 {
		attempt = 1
	}
	idx := attempt - 1
	if idx >= len(p.nudges) {
		idx = len(p.nudges) - 1
	}
	return p.nudges[idx]
}
