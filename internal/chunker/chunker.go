// Package chunker splits document text into bounded-size segments for
// embedding and retrieval. Splitting is sentence-granular on the
// literal ". " delimiter; sizes are measured in characters, a deliberate
// approximation of model tokens.
package chunker

import "strings"

// DefaultMaxSize is the chunk size used when the caller does not
// configure one.
const DefaultMaxSize = 1000

// Sanitize normalizes text for storage and chunking: null bytes are
// dropped and runs of whitespace collapse to a single space.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.Join(strings.Fields(text), " ")
}

// Split sanitizes text and greedily packs sentences into chunks of at
// most maxSize characters, preserving source order. A single sentence
// longer than maxSize becomes its own oversized chunk; content is never
// dropped. Pure function of its input.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	text = Sanitize(text)
	if text == "" {
		return nil
	}

	sentences := strings.Split(text, ". ")

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len()+len(sentence)+1 <= maxSize {
			current.WriteString(sentence)
			current.WriteString(". ")
			continue
		}
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
		current.WriteString(sentence)
		current.WriteString(". ")
	}
	if chunk := strings.TrimSpace(current.String()); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
