package annotate

import "strings"

// Align splits text into an ordered sequence of literal and annotated
// segments for rendering. corrections must be sorted ascending by
// StartIndex; their indices are treated as hints, not truth.
//
// For each correction the expected offset (StartIndex relative to the
// current cursor) is checked first. When the text at that offset equals
// Original the correction is accepted there. When it does not — stale
// indices after upstream concatenation or editing — the first occurrence of
// Original anywhere in the remaining text is used instead. When Original
// does not occur in the remaining text at all, the correction is dropped
// (counted in dropped) and the text it would have covered is rendered as
// plain literal content.
//
// Align never fails, whatever the input: the concatenation of all segment
// texts always reconstructs text exactly once, in order, with no gaps or
// overlaps. It is the safety net the rest of the pipeline leans on.
func Align(text string, corrections []Correction) (segments []Segment, dropped int) {
	cursor := 0
	for _, c := range corrections {
		remaining := text[cursor:]

		offset := c.StartIndex - cursor
		if !matchesAt(remaining, offset, c.Original) {
			// Drift: fall back to a first-occurrence search.
			offset = strings.Index(remaining, c.Original)
			if offset < 0 {
				dropped++
				continue
			}
		}

		if offset > 0 {
			segments = append(segments, Segment{Text: remaining[:offset]})
		}
		ann := c
		segments = append(segments, Segment{
			Text:       remaining[offset : offset+len(c.Original)],
			Annotation: &ann,
		})
		cursor += offset + len(c.Original)
	}

	if cursor < len(text) {
		segments = append(segments, Segment{Text: text[cursor:]})
	}
	return segments, dropped
}

// matchesAt reports whether s[offset:offset+len(want)] exists and equals want.
func matchesAt(s string, offset int, want string) bool {
	if offset < 0 || offset+len(want) > len(s) {
		return false
	}
	return s[offset:offset+len(want)] == want
}
