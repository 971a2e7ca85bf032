package annotate

import "strings"

// punctuationChars is the fixed set of characters that force the punctuation
// label when present on either side of a substitution.
const punctuationChars = ".,;:!?"

// grammarWords is the closed-class word list consulted by [Classify]: forms
// of "to be", articles, pronouns, and forms of "to have" and "to do".
var grammarWords = map[string]struct{}{
	// to be
	"am": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {},
	// articles
	"a": {}, "an": {}, "the": {},
	// pronouns
	"i": {}, "you": {}, "he": {}, "she": {}, "it": {},
	"we": {}, "they": {}, "me": {}, "him": {}, "her": {},
	"us": {}, "them": {},
	// to have
	"have": {}, "has": {}, "had": {},
	// to do
	"do": {}, "does": {}, "did": {},
}

// inflectionSuffixes are the agreement/tense suffixes that relate two forms
// of the same word (goes = go + "es", walked = walk + "ed").
var inflectionSuffixes = []string{"es", "s", "ed", "d", "ing"}

// Classify assigns a heuristic [ErrorType] to a word-level substitution.
// It is deterministic and total: every input pair yields a label.
//
// The rules are checked in a fixed order and the first match wins; order
// matters because the classes overlap:
//
//  1. Either side contains one of ".,;:!?" → punctuation.
//  2. Sides are equal ignoring case → capitalization.
//  3. Sides are "similar" (see below) → spelling.
//  4. Either side is a closed-class grammar word, or the sides differ only
//     by an inflectional suffix → grammar.
//  5. Otherwise → word-choice.
//
// The similarity test is a crude positional proxy, not edit distance: the
// lengths must differ by at most 2 and the fraction of position-aligned
// matching characters must exceed 0.6. These exact thresholds are load
// bearing — downstream consumers depend on the labels staying stable — so do
// not swap in a real string metric here. The test is order-sensitive and
// undercounts heavily transposed pairs.
func Classify(original, corrected string) ErrorType {
	if strings.ContainsAny(original, punctuationChars) ||
		strings.ContainsAny(corrected, punctuationChars) {
		return TypePunctuation
	}

	lo := strings.ToLower(original)
	lc := strings.ToLower(corrected)

	if lo == lc {
		return TypeCapitalization
	}
	if similarWords(lo, lc) {
		return TypeSpelling
	}
	if isGrammarShift(lo, lc) {
		return TypeGrammar
	}
	return TypeWordChoice
}

// similarWords implements the fixed spelling-similarity proxy: length delta
// at most 2 and more than 0.6 of the longer word's positions matching.
func similarWords(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return false
	}

	delta := la - lb
	if delta < 0 {
		delta = -delta
	}
	if delta > 2 {
		return false
	}

	shorter, longer := la, lb
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	matches := 0
	for i := 0; i < shorter; i++ {
		if ra[i] == rb[i] {
			matches++
		}
	}
	return float64(matches)/float64(longer) > 0.6
}

// isGrammarShift reports whether the pair looks like a grammar fix: either
// side is a closed-class grammar word, or one side is the other plus a
// standard inflectional suffix (agreement and tense shifts such as
// go → goes).
func isGrammarShift(a, b string) bool {
	if _, ok := grammarWords[a]; ok {
		return true
	}
	if _, ok := grammarWords[b]; ok {
		return true
	}
	return inflectionRelated(a, b) || inflectionRelated(b, a)
}

// inflectionRelated reports whether long == short + suffix for one of the
// standard inflectional suffixes.
func inflectionRelated(short, long string) bool {
	if len(long) <= len(short) || !strings.HasPrefix(long, short) {
		return false
	}
	rest := long[len(short):]
	for _, suf := range inflectionSuffixes {
		if rest == suf {
			return true
		}
	}
	return false
}
