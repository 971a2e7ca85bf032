package annotate

// ExtractSpans computes a word-granularity edit script between original and
// corrected and returns the differences as [Correction] spans indexed into
// original. CleanText and OriginalText of the result both equal original —
// there was never any markup to strip on this path.
//
// Tokens are alternating runs of non-whitespace and whitespace, so both word
// boundaries and inter-word spacing are diffable units. The script is walked
// left to right with a byte cursor into original:
//
//   - a removed token paired with an added token becomes one correction of
//     type Classify(removed, added) spanning the removed token;
//   - a lone removed token becomes a deletion spanning the removed token;
//   - a lone added token becomes an insertion with StartIndex == EndIndex at
//     the cursor (insertions consume no original-text bytes);
//   - an unchanged token advances the cursor and emits nothing.
//
// Spans are emitted in cursor order, so the result is already sorted and
// pairwise non-overlapping.
func ExtractSpans(original, corrected string) ParseResult {
	result := ParseResult{
		CleanText:    original,
		OriginalText: original,
		Corrections:  []Correction{},
	}
	if original == corrected {
		return result
	}

	origTokens := tokenize(original)
	corrTokens := tokenize(corrected)

	anchors := tokenLCS(origTokens, corrTokens)

	cursor := 0
	oi, ci := 0, 0
	for _, a := range anchors {
		if oi < a.origIdx || ci < a.corrIdx {
			result.Corrections = appendChangeCorrections(
				result.Corrections,
				origTokens[oi:a.origIdx],
				corrTokens[ci:a.corrIdx],
				&cursor,
			)
		}
		cursor += len(origTokens[a.origIdx])
		oi = a.origIdx + 1
		ci = a.corrIdx + 1
	}
	if oi < len(origTokens) || ci < len(corrTokens) {
		result.Corrections = appendChangeCorrections(
			result.Corrections,
			origTokens[oi:],
			corrTokens[ci:],
			&cursor,
		)
	}

	return result
}

// tokenize splits s into alternating runs of non-whitespace and whitespace.
// Concatenating the tokens reproduces s exactly.
func tokenize(s string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i := 0; i < len(s); i++ {
		isSpace := s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r'
		if i == 0 {
			inSpace = isSpace
			continue
		}
		if isSpace != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = isSpace
		}
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// appendChangeCorrections converts one changed region (removed tokens from
// the original, added tokens from the corrected) into corrections, pairing
// tokens index-wise. The cursor tracks the byte position in the original
// text and advances past every removed token; insertions leave it in place.
func appendChangeCorrections(out []Correction, removed, added []string, cursor *int) []Correction {
	n := len(removed)
	if len(added) > n {
		n = len(added)
	}
	for i := 0; i < n; i++ {
		switch {
		case i < len(removed) && i < len(added):
			r, a := removed[i], added[i]
			if r == a {
				// Identical tokens can land in a changed region when the LCS
				// anchors around them; they are not corrections.
				*cursor += len(r)
				continue
			}
			out = append(out, Correction{
				Original:   r,
				Corrected:  a,
				Type:       Classify(r, a),
				StartIndex: *cursor,
				EndIndex:   *cursor + len(r),
			})
			*cursor += len(r)

		case i < len(removed):
			r := removed[i]
			out = append(out, Correction{
				Original:   r,
				Type:       TypeDeletion,
				StartIndex: *cursor,
				EndIndex:   *cursor + len(r),
			})
			*cursor += len(r)

		default:
			out = append(out, Correction{
				Corrected:  added[i],
				Type:       TypeInsertion,
				StartIndex: *cursor,
				EndIndex:   *cursor,
			})
		}
	}
	return out
}

// indexPair maps a token index in the original sequence to the corresponding
// index in the corrected sequence.
type indexPair struct {
	origIdx int
	corrIdx int
}

// tokenLCS computes the longest common subsequence of two token slices and
// returns anchor pairs (indices into a and b) representing common tokens in
// order. Standard O(m×n) DP — token counts are small for the short texts
// this service handles.
func tokenLCS(a, b []string) []indexPair {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	lcsLen := dp[m][n]
	if lcsLen == 0 {
		return nil
	}

	anchors := make([]indexPair, lcsLen)
	i, j, k := m, n, lcsLen-1
	for i > 0 && j > 0 {
		if a[i-1] == b[j-1] {
			anchors[k] = indexPair{origIdx: i - 1, corrIdx: j - 1}
			i--
			j--
			k--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	return anchors
}
