package annotate

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// explanationFuzzyThreshold is the minimum Jaro-Winkler score for a note to
// be matched to a correction when the exact (original, corrected) key
// misses. Mirrors the fuzzy fallback threshold used elsewhere in the
// correction pipeline.
const explanationFuzzyThreshold = 0.85

// Note carries an explanation produced by a later enrichment pass, keyed by
// the (original, corrected) pair it belongs to.
type Note struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Explanation string `json:"explanation"`
}

// MergeExplanations attaches explanations from notes to the matching
// corrections and returns a new slice; the input is never mutated.
//
// Matching is by exact (original, corrected) key first. Keys that miss —
// model output frequently drifts in case or trailing punctuation between
// passes — fall back to the best Jaro-Winkler pair match above
// explanationFuzzyThreshold. Corrections that already carry an explanation
// are left untouched, which makes the merge idempotent: applying the same
// notes twice yields the same result.
func MergeExplanations(corrections []Correction, notes []Note) []Correction {
	if len(notes) == 0 {
		return append([]Correction(nil), corrections...)
	}

	type key struct{ original, corrected string }
	exact := make(map[key]string, len(notes))
	for _, n := range notes {
		if n.Explanation == "" {
			continue
		}
		exact[key{noteKey(n.Original), noteKey(n.Corrected)}] = n.Explanation
	}

	out := make([]Correction, len(corrections))
	for i, c := range corrections {
		out[i] = c
		if c.Explanation != "" {
			continue
		}
		if expl, ok := exact[key{noteKey(c.Original), noteKey(c.Corrected)}]; ok {
			out[i].Explanation = expl
			continue
		}
		if expl, ok := fuzzyNoteMatch(c, notes); ok {
			out[i].Explanation = expl
		}
	}
	return out
}

// fuzzyNoteMatch finds the note whose (original, corrected) pair is most
// similar to the correction's, provided both sides clear the threshold.
func fuzzyNoteMatch(c Correction, notes []Note) (string, bool) {
	best := ""
	bestScore := 0.0
	for _, n := range notes {
		if n.Explanation == "" {
			continue
		}
		so := matchr.JaroWinkler(noteKey(c.Original), noteKey(n.Original), false)
		sc := matchr.JaroWinkler(noteKey(c.Corrected), noteKey(n.Corrected), false)
		if so < explanationFuzzyThreshold || sc < explanationFuzzyThreshold {
			continue
		}
		if score := (so + sc) / 2; score > bestScore {
			best = n.Explanation
			bestScore = score
		}
	}
	return best, best != ""
}

// noteKey lowercases s and strips trailing punctuation so that keys like
// "Wispers." and "wispers" compare equal.
func noteKey(s string) string {
	return strings.ToLower(strings.TrimRight(s, ".,;:!?\"')"))
}
