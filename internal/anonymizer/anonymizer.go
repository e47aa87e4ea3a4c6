package anonymizer

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"unboxed/internal/entity"
)

// Anonymizer rewrites sensitive values in text into deterministic alias
// tokens. It holds only immutable collaborators (patterns, classifier),
// never mapping state: every Anonymize call returns the mapping it
// produced, so concurrent calls are independent by construction.
type Anonymizer struct {
	detector   *PatternDetector
	classifier EntityClassifier
	logger     *zap.Logger
}

// New creates an Anonymizer using the given entity classifier for
// unstructured spans.
func New(classifier EntityClassifier, logger *zap.Logger) *Anonymizer {
	return &Anonymizer{
		detector:   NewPatternDetector(),
		classifier: classifier,
		logger:     logger.Named("anonymizer"),
	}
}

// Anonymize replaces every detected sensitive value in text and returns
// the rewritten text together with the original→alias mapping used.
//
// Structured values are substituted globally (every literal occurrence
// in the document maps to one alias); classifier spans are substituted
// strictly at their reported offsets, processed in descending start
// order so earlier offsets stay valid while later spans are rewritten.
//
// A classifier failure degrades to structured-only anonymization; it is
// logged, not returned, because losing contextual entities must not
// abort an ingest that already holds the structured mapping.
func (a *Anonymizer) Anonymize(ctx context.Context, text string) (string, entity.Mapping, error) {
	mapping := entity.Mapping{}
	if text == "" {
		return text, mapping, nil
	}

	result := text

	// Stage 1: structured patterns, global literal substitution per value.
	for _, span := range a.detector.Detect(result) {
		if _, seen := mapping[span.Text]; seen {
			continue
		}
		alias := entity.Alias(span.Text, span.Type)
		mapping[span.Text] = alias
		result = strings.ReplaceAll(result, span.Text, alias)
	}

	// Stage 2: entity classifier over the already-substituted text, so it
	// cannot re-label a replaced value (an email as a person, say).
	spans, err := a.classifier.Classify(ctx, result)
	if err != nil {
		a.logger.Warn("entity classification failed, structured-only result",
			zap.Error(err))
		return result, mapping, nil
	}

	// Regions already holding alias tokens must never be rewritten
	// again, not even partially (a digit run inside a token hash can
	// look like a cardinal to the classifier).
	aliasRegions := entity.AliasPattern.FindAllStringIndex(result, -1)

	// Descending start offset: replacing a later span never invalidates
	// the offsets of earlier spans still pending.
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })
	for _, span := range spans {
		if entity.ContainsAlias(span.Text) || overlapsAny(aliasRegions, span.Start, span.End) {
			continue // overlaps an already-substituted token
		}
		if span.Start < 0 || span.End > len(result) || result[span.Start:span.End] != span.Text {
			continue // stale offsets; classifier text drifted
		}
		alias := entity.Alias(span.Text, span.Type)
		mapping[span.Text] = alias
		result = result[:span.Start] + alias + result[span.End:]
	}

	return result, mapping, nil
}

// overlapsAny reports whether [start, end) intersects any of the given
// half-open regions.
func overlapsAny(regions [][]int, start, end int) bool {
	for _, r := range regions {
		if start < r[1] && end > r[0] {
			return true
		}
	}
	return false
}

// Deanonymize replaces every alias token present in mapping with its
// original value. Alias tokens absent from the mapping pass through
// untouched; callers see them as-is rather than an error.
func Deanonymize(text string, mapping entity.Mapping) string {
	if text == "" || len(mapping) == 0 {
		return text
	}
	inv := mapping.Invert()
	result := text
	for _, alias := range sortedKeys(inv) {
		result = strings.ReplaceAll(result, alias, inv[alias])
	}
	return result
}

// AnonymizeQuery rewrites a question using the pooled mapping of all
// ingested documents, so the rewritten question references the same
// alias tokens stored inside anonymized chunks and similarity search
// can match them.
//
// The lookup is flexible: besides every full original value, each
// individual word (longer than 2 characters) of a multi-word NAME value
// maps to the same alias, so "John's email" matches the "John Smith"
// alias. Substitution is case-insensitive. The word-level entries can
// rewrite an unrelated word that happens to equal a name fragment; that
// recall/precision trade-off is deliberate.
func AnonymizeQuery(question string, global entity.Mapping) string {
	if question == "" || len(global) == 0 {
		return question
	}

	flexible := make(entity.Mapping, len(global))
	for original, alias := range global {
		flexible[original] = alias

		if t, ok := entity.AliasType(alias); !ok || t != entity.TypeName {
			continue
		}
		words := strings.Fields(original)
		if len(words) < 2 {
			continue
		}
		for _, w := range words {
			if len(w) > 2 {
				flexible[w] = alias
			}
		}
	}

	// Longest originals first, so "John Smith" wins over the word entry
	// "John" wherever both match.
	result := question
	for _, original := range sortedKeys(flexible) {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(original))
		if err != nil {
			continue
		}
		result = re.ReplaceAllLiteralString(result, flexible[original])
	}
	return result
}

// sortedKeys orders map keys longest first, ties broken lexicographically,
// giving substitution passes a deterministic, longest-match-wins order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
