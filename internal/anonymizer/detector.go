// Package anonymizer detects and replaces sensitive values in document
// text with deterministic alias tokens, and restores them later.
// Detection runs in two stages:
//  1. Fast regex pass for structured values (email, phone, SSN, credit
//     card, IPv4, date).
//  2. A pluggable entity classifier for unstructured spans (names,
//     organizations, locations, ...), run over the text that remains
//     after structured substitution so the classifier never re-labels
//     an already-replaced value.
//
// Anonymize is a pure function: it returns the mapping it used instead
// of accumulating state, so concurrent ingestion requests cannot
// contaminate each other.
package anonymizer

import (
	"regexp"
	"sort"

	"unboxed/internal/entity"
)

// pattern pairs a compiled regex with the entity type it detects.
type pattern struct {
	re  *regexp.Regexp
	typ entity.Type
}

// PatternDetector finds structured sensitive values with fixed regexes.
type PatternDetector struct {
	patterns []pattern
}

// NewPatternDetector compiles the structured-value patterns.
func NewPatternDetector() *PatternDetector {
	specs := []struct {
		expr string
		typ  entity.Type
	}{
		{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, entity.TypeEmail},
		{`\b(?:\+?1[\-.]?)?\(?[0-9]{3}\)?[\-.]?[0-9]{3}[\-.]?[0-9]{4}\b`, entity.TypePhone},
		{`\b\d{3}-\d{2}-\d{4}\b`, entity.TypeSSN},
		{`\b\d{4}[\- ]?\d{4}[\- ]?\d{4}[\- ]?\d{4}\b`, entity.TypeCreditCard},
		{`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`, entity.TypeIPAddress},
		{`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`, entity.TypeDate},
	}
	d := &PatternDetector{patterns: make([]pattern, 0, len(specs))}
	for _, s := range specs {
		// Patterns are fixed at compile time; MustCompile is safe here.
		d.patterns = append(d.patterns, pattern{re: regexp.MustCompile(s.expr), typ: s.typ})
	}
	return d
}

// Detect returns every structured match in text as a span, ordered by
// start offset. Earlier pattern types win when two patterns match the
// same region (SSN before credit card, for example, follows from
// declaration order plus the overlap filter).
func (d *PatternDetector) Detect(text string) []entity.Span {
	var spans []entity.Span
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			spans = append(spans, entity.Span{
				Start: loc[0],
				End:   loc[1],
				Text:  text[loc[0]:loc[1]],
				Type:  p.typ,
			})
		}
	}
	// Stable keeps declaration order as the tie-break for equal starts.
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return dropOverlaps(spans)
}

// dropOverlaps keeps the earliest-starting span of each overlapping
// group. Input must be sorted by start offset.
func dropOverlaps(spans []entity.Span) []entity.Span {
	out := spans[:0]
	lastEnd := -1
	for _, s := range spans {
		if s.Start < lastEnd {
			continue
		}
		out = append(out, s)
		lastEnd = s.End
	}
	return out
}
