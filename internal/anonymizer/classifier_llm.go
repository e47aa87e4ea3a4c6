package anonymizer

import (
	"context"
	"crypto/md5" // #nosec G501 -- cache key, not crypto
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"unboxed/internal/entity"
)

// ChatCompleter is the slice of the LLM client the classifier needs.
type ChatCompleter interface {
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
}

// LLMClassifier asks a chat model to label entity spans. Results are
// cached by content hash in a DetectionCache so a re-ingested document
// (or a retried chunk) never pays for a second model call.
//
// Classification is best-effort: a failed or unparsable model response
// yields zero spans and an error the caller is expected to log and
// swallow, never to abort ingestion with.
type LLMClassifier struct {
	llm    ChatCompleter
	cache  DetectionCache
	logger *zap.Logger
}

// NewLLMClassifier wires a chat model and an optional detection cache
// (nil disables caching).
func NewLLMClassifier(llm ChatCompleter, cache DetectionCache, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{llm: llm, cache: cache, logger: logger.Named("classifier")}
}

// llmDetection is one entry of the JSON array the model is asked for.
type llmDetection struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

const classifyPromptFmt = `Identify named entities in the following text.
Return ONLY a JSON array. Each item must have:
- "text": the exact substring found
- "type": one of: NAME, ORGANIZATION, LOCATION, FACILITY, PRODUCT, EVENT, WORK_OF_ART, LAW, LANGUAGE, DATE, TIME, PERCENT, MONEY, QUANTITY, ORDINAL, CARDINAL

Do not include substrings that are bracketed placeholders like [EMAIL_ab12cd34].

Text:
%s

Return ONLY the JSON array, no explanation. Example: [{"text":"John Smith","type":"NAME"}]`

// Classify labels entity spans in text via the chat model, resolving
// each reported substring to concrete offsets. Substrings the model
// invents (not present in text) are discarded.
func (c *LLMClassifier) Classify(ctx context.Context, text string) ([]entity.Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	key := fmt.Sprintf("%x", md5.Sum([]byte(text))) // #nosec G401 -- cache key, not crypto
	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			return c.toSpans(text, raw), nil
		}
	}

	answer, err := c.llm.GenerateAnswer(ctx, fmt.Sprintf(classifyPromptFmt, text))
	if err != nil {
		return nil, fmt.Errorf("classify entities: %w", err)
	}

	detections, err := parseDetections(answer)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(detections)
	if err == nil && c.cache != nil {
		c.cache.Set(key, string(raw))
	}
	return c.toSpans(text, detections), nil
}

// parseDetections extracts the JSON array from the model's free-text
// answer. Models often wrap the array in prose or code fences.
func parseDetections(answer string) ([]llmDetection, error) {
	raw := strings.TrimSpace(answer)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in model response")
	}
	var detections []llmDetection
	if err := json.Unmarshal([]byte(raw[start:end+1]), &detections); err != nil {
		return nil, fmt.Errorf("parse detections: %w", err)
	}
	return detections, nil
}

// toSpans resolves detections against text. Every occurrence of a
// detected substring becomes a span; overlaps are resolved afterwards.
// Accepts either a JSON string (cache hit) or a detection slice.
func (c *LLMClassifier) toSpans(text string, detections any) []entity.Span {
	var ds []llmDetection
	switch v := detections.(type) {
	case []llmDetection:
		ds = v
	case string:
		if err := json.Unmarshal([]byte(v), &ds); err != nil {
			c.logger.Warn("corrupt cached detections", zap.Error(err))
			return nil
		}
	}

	var spans []entity.Span
	for _, d := range ds {
		typ := entity.Type(d.Type)
		if d.Text == "" || !typ.Valid() || entity.ContainsAlias(d.Text) {
			continue
		}
		for from := 0; ; {
			idx := strings.Index(text[from:], d.Text)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, entity.Span{
				Start: start,
				End:   start + len(d.Text),
				Text:  d.Text,
				Type:  typ,
			})
			from = start + len(d.Text)
		}
	}
	return resolveSpans(spans)
}
