package anonymizer

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"unboxed/internal/entity"
)

// EntityClassifier finds unstructured sensitive spans (names,
// organizations, locations, ...) in free text. Implementations range
// from a rule table to a full model; the anonymizer does not care which
// is wired in.
//
// Classify must return non-overlapping spans with byte offsets valid
// for the exact text it was given.
type EntityClassifier interface {
	Classify(ctx context.Context, text string) ([]entity.Span, error)
}

// RuleClassifier is a dependency-free EntityClassifier built on a small
// rule table: honorific cues and capitalized runs for person names,
// corporate suffixes for organizations, preposition cues for locations,
// month names for dates, and simple lexical shapes for times, money,
// percentages, ordinals and standalone numbers. It trades
// recall for zero external calls and full determinism, which also makes
// it the classifier used in tests.
type RuleClassifier struct{}

// NewRuleClassifier returns the rule-table classifier.
func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

var (
	// Two or more capitalized words, optionally preceded by an honorific.
	// The honorific itself is not part of the sensitive span.
	nameRe = regexp.MustCompile(`(?:\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+)?\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)\b`)

	// Capitalized word(s) followed by a corporate suffix.
	orgRe = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&]*(?:\s+[A-Z][A-Za-z0-9&]*)*\s+(?:Inc|Corp|Corporation|LLC|Ltd|GmbH|Co)\.?)\b`)

	// Month-name dates: "January 2, 2006", "2 January 2006", "Jan 2006".
	monthDateRe = regexp.MustCompile(`\b(?:(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{1,2},?\s+\d{4}|\d{1,2}\s+(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{4})\b`)

	// Capitalized word(s) after a locative preposition. The preposition
	// is a cue only, not part of the span.
	locationRe = regexp.MustCompile(`\b(?:in|at|near|from)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)

	timeRe    = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\s?(?:[AaPp][Mm])?\b`)
	moneyRe   = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:million|billion|thousand))?\b`)
	percentRe = regexp.MustCompile(`\b\d+(?:\.\d+)?\s?(?:%|percent\b)`)
	ordinalRe = regexp.MustCompile(`\b\d+(?:st|nd|rd|th)\b`)

	// Standalone numbers. Collected last so dates, times, money and
	// ordinals win every tie.
	cardinalRe = regexp.MustCompile(`\b\d+(?:,\d{3})*\b`)
)

// commonSentenceStarters are capitalized words that begin sentences so
// often that treating them as part of a name causes more harm than good.
var commonSentenceStarters = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"Dear": true, "Hello": true, "Please": true, "Thank": true, "Best": true,
	"Kind": true, "Our": true, "Your": true, "What": true, "When": true,
	"Where": true, "Who": true, "How": true, "After": true, "Before": true,
}

// Classify applies the rule table. The error return is always nil; it
// exists to satisfy EntityClassifier.
func (c *RuleClassifier) Classify(_ context.Context, text string) ([]entity.Span, error) {
	var spans []entity.Span

	collect := func(re *regexp.Regexp, group int, typ entity.Type) {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*group], m[2*group+1]
			if start < 0 {
				continue
			}
			spans = append(spans, entity.Span{
				Start: start,
				End:   end,
				Text:  text[start:end],
				Type:  typ,
			})
		}
	}

	collect(orgRe, 1, entity.TypeOrg)
	collect(monthDateRe, 0, entity.TypeDate)
	collect(locationRe, 1, entity.TypeLocation)
	collect(timeRe, 0, entity.TypeTime)
	collect(moneyRe, 0, entity.TypeMoney)
	collect(percentRe, 0, entity.TypePercent)
	collect(ordinalRe, 0, entity.TypeOrdinal)

	for _, m := range nameRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		candidate := text[start:end]
		words := strings.Fields(candidate)
		// Trim leading sentence-starter words that look like name parts.
		for len(words) > 1 && commonSentenceStarters[words[0]] {
			adv := len(words[0])
			for start+adv < end && isSpace(text[start+adv]) {
				adv++
			}
			start += adv
			words = words[1:]
		}
		if len(words) < 2 {
			continue
		}
		spans = append(spans, entity.Span{
			Start: start,
			End:   end,
			Text:  text[start:end],
			Type:  entity.TypeName,
		})
	}

	collect(cardinalRe, 0, entity.TypeCardinal)

	return resolveSpans(spans), nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// resolveSpans sorts by start offset and removes overlaps, keeping the
// earliest-starting (then longest) span of each overlapping group.
func resolveSpans(spans []entity.Span) []entity.Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]entity.Span, len(spans))
	copy(sorted, spans)
	// Longest-first among equal starts so "Acme Corp Inc" beats "Acme Corp".
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})
	return dropOverlaps(sorted)
}
