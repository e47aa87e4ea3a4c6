package rag

import (
	"fmt"
	"strings"

	"unboxed/internal/storage"
)

// promptTemplate instructs the model to answer from the supplied
// context and to treat alias placeholders as stand-ins for real values
// it may reference freely; they are rewritten back after generation.
const promptTemplate = `You are a helpful assistant that answers questions based on the provided context. Use the context below to answer the question.

IMPORTANT: The context may contain anonymized placeholders in the format [TYPE_hash] (e.g., [NAME_abc123], [PERCENT_def456], [EMAIL_ghi789]). When you see these placeholders, assume that specific, relevant content was provided in the original text. You can reference these placeholders in your answer - they will be automatically converted to the actual values for the user.

If the context contains relevant information, provide a comprehensive answer. Only say "I don't have enough information" if the context truly doesn't contain any relevant information about the question.

Context:
%s

Question: %s

Please provide a detailed answer based on the context:`

// BuildPrompt assembles the generation prompt from the (already
// anonymized) retrieved chunks and the (already anonymized) question.
func BuildPrompt(question string, chunks []storage.SearchResult) string {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	return fmt.Sprintf(promptTemplate, strings.Join(contents, "\n\n"), question)
}
