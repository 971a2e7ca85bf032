package annotate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrMalformedMarkup is returned by a parse strategy when it cannot make
// sense of the input. [ParseMarkup] absorbs it by falling through to the
// next strategy; it never reaches callers.
var ErrMalformedMarkup = errors.New("annotate: malformed correction markup")

// correctionTag is the element name both strategies recognise.
const correctionTag = "correction"

// parseStrategy converts marked-up text into a ParseResult whose spans index
// into the clean (de-annotated) text. Strategies are tried in order; a
// strategy signals "not my input" by returning an error.
type parseStrategy interface {
	name() string
	parse(marked string) (ParseResult, error)
}

// markupStrategies is the fixed fallback chain: a structural tree parse
// first, then a regex token scan for input that is not well-formed XML.
// Read-only after initialisation.
var markupStrategies = []parseStrategy{
	structuralStrategy{},
	regexStrategy{},
}

// ParseMarkup converts text containing inline <correction> tags into clean
// text plus corrections indexed into that clean text. Each tag carries
// original, corrected, type, and optional explanation attributes and wraps
// inner content equal to the original text.
//
// Strategies are tried in order and the first success wins. When every
// strategy fails — including input that contains no recognisable tags at
// all — the whole input is treated as already-clean text with zero
// corrections. ParseMarkup never returns an error.
//
// The name of the strategy that succeeded (or "none") is returned for
// observability.
func ParseMarkup(marked string) (ParseResult, string) {
	for _, s := range markupStrategies {
		result, err := s.parse(marked)
		if err != nil {
			continue
		}
		return result, s.name()
	}
	return ParseResult{
		CleanText:    marked,
		OriginalText: marked,
		Corrections:  []Correction{},
	}, "none"
}

// ─── Structural strategy ─────────────────────────────────────────────────────

// structuralStrategy parses the input as an XML tree. The tree walk yields
// clean text naturally by concatenating text-node content, so no manual
// offset bookkeeping is needed. Fails on input that is not well-formed
// enough to build a tree (stray ampersands, unclosed tags).
type structuralStrategy struct{}

func (structuralStrategy) name() string { return "structural" }

func (structuralStrategy) parse(marked string) (ParseResult, error) {
	// The input is a text fragment, not a document; wrap it so the parser
	// sees a single root element.
	doc, err := xmlquery.Parse(strings.NewReader("<redline-root>" + marked + "</redline-root>"))
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: %v", ErrMalformedMarkup, err)
	}
	root := doc.SelectElement("redline-root")
	if root == nil {
		return ParseResult{}, ErrMalformedMarkup
	}

	var clean strings.Builder
	corrections := []Correction{}
	walkMarkupTree(root, &clean, &corrections)

	if len(corrections) == 0 && strings.Contains(marked, "<"+correctionTag) {
		// The input clearly meant to carry tags but the tree lost them;
		// let the regex strategy have a go.
		return ParseResult{}, ErrMalformedMarkup
	}

	return ParseResult{
		CleanText:    clean.String(),
		OriginalText: marked,
		Corrections:  corrections,
	}, nil
}

// walkMarkupTree appends text-node content to clean and records a correction
// for every <correction> element. Elements other than <correction> are
// transparent: their children are walked as if the wrapper were not there.
func walkMarkupTree(n *xmlquery.Node, clean *strings.Builder, corrections *[]Correction) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			clean.WriteString(child.Data)

		case xmlquery.ElementNode:
			if child.Data != correctionTag {
				walkMarkupTree(child, clean, corrections)
				continue
			}
			inner := child.InnerText()
			start := clean.Len()
			clean.WriteString(inner)

			original := child.SelectAttr("original")
			if original == "" {
				original = inner
			}
			*corrections = append(*corrections, Correction{
				Original:    original,
				Corrected:   child.SelectAttr("corrected"),
				Type:        normalizeType(child.SelectAttr("type")),
				Explanation: child.SelectAttr("explanation"),
				StartIndex:  start,
				EndIndex:    start + len(inner),
			})
		}
	}
}

// ─── Regex strategy ──────────────────────────────────────────────────────────

// regexStrategy scans the raw string left to right for correction tags. The
// crux is offset accounting: every stripped tag shortens subsequent
// clean-text positions by len(fullTagMatch) - len(innerText), so spans are
// recorded against the clean-text accumulator, never against raw-text
// positions.
type regexStrategy struct{}

func (regexStrategy) name() string { return "regex" }

// Compiled once; read-only afterwards.
var (
	correctionTagRE = regexp.MustCompile(`(?s)<` + correctionTag + `\b([^>]*)>(.*?)</` + correctionTag + `>`)
	tagAttrRE       = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)

	// xmlUnescaper mirrors the entity handling of the structural strategy so
	// both strategies agree on clean text for well-formed input. &amp; last
	// so "&amp;lt;" does not double-decode.
	xmlUnescaper = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
)

func (regexStrategy) parse(marked string) (ParseResult, error) {
	matches := correctionTagRE.FindAllStringSubmatchIndex(marked, -1)
	if len(matches) == 0 {
		return ParseResult{}, ErrMalformedMarkup
	}

	var clean strings.Builder
	corrections := make([]Correction, 0, len(matches))

	last := 0
	for _, m := range matches {
		tagStart, tagEnd := m[0], m[1]
		attrStart, attrEnd := m[2], m[3]
		innerStart, innerEnd := m[4], m[5]

		// Untagged text before this tag passes through verbatim.
		clean.WriteString(xmlUnescaper.Replace(marked[last:tagStart]))

		inner := xmlUnescaper.Replace(marked[innerStart:innerEnd])
		start := clean.Len()
		clean.WriteString(inner)

		attrs := parseTagAttrs(marked[attrStart:attrEnd])
		original, ok := attrs["original"]
		if !ok {
			original = inner
		}
		corrections = append(corrections, Correction{
			Original:    original,
			Corrected:   attrs["corrected"],
			Type:        normalizeType(attrs["type"]),
			Explanation: attrs["explanation"],
			StartIndex:  start,
			EndIndex:    start + len(inner),
		})

		last = tagEnd
	}
	clean.WriteString(xmlUnescaper.Replace(marked[last:]))

	return ParseResult{
		CleanText:    clean.String(),
		OriginalText: marked,
		Corrections:  corrections,
	}, nil
}

// parseTagAttrs extracts key="value" pairs from a raw attribute string.
// Attribute order is not significant; unknown attributes are ignored by the
// caller.
func parseTagAttrs(raw string) map[string]string {
	attrs := map[string]string{}
	for _, m := range tagAttrRE.FindAllStringSubmatch(raw, -1) {
		attrs[m[1]] = xmlUnescaper.Replace(m[2])
	}
	return attrs
}

// normalizeType maps a raw type attribute to a valid [ErrorType]. Missing or
// unrecognised values degrade to [TypeUnknown] rather than failing the parse.
func normalizeType(raw string) ErrorType {
	t := ErrorType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return TypeUnknown
	}
	return t
}
