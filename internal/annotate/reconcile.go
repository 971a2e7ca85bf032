package annotate

import "strings"

// Reconcile recomputes correction spans against canonicalText using
// first-occurrence lookup. Use it when upstream indices are absent,
// approximate, or were computed against a different text than the one that
// will be shown.
//
// Each correction is processed independently and order is preserved. When
// Original is found in canonicalText the span is set to its first
// occurrence. When it is not found the span degrades to
// [0, len(Original)) — a documented non-fatal default that matches the
// end-to-end tolerance for imperfect model output — and the correction is
// counted in missed so callers can log and meter the loss.
//
// Known limitation: duplicate occurrences of Original resolve to the first
// match, which is wrong when several identical substrings each need a
// different correction. That ambiguity is inherited behaviour; do not guess
// intent here.
func Reconcile(canonicalText string, corrections []Correction) (out []Correction, missed int) {
	out = make([]Correction, 0, len(corrections))
	for _, c := range corrections {
		p := strings.Index(canonicalText, c.Original)
		if p >= 0 {
			c.StartIndex = p
			c.EndIndex = p + len(c.Original)
		} else {
			c.StartIndex = 0
			c.EndIndex = len(c.Original)
			missed++
		}
		out = append(out, c)
	}
	return out, missed
}
