package llm

import "context"

// LLMClient is the interface the orchestrator depends on. It combines
// the embedding and generative capabilities so tests can inject one fake.
type LLMClient interface {
	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// GenerateAnswer generates a chat completion for the prompt.
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
}

// Ensure Client implements LLMClient at compile time.
var _ LLMClient = (*Client)(nil)
