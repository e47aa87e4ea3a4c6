// Package llm wraps an OpenAI-compatible endpoint for the two external
// model calls this system makes: embedding text and generating answers.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client talks to an OpenAI-compatible API.
type Client struct {
	client         *openai.Client
	embeddingModel string
	chatModel      string
	maxTokens      int
	temperature    float32
	logger         *zap.Logger
}

// Config holds the client settings.
type Config struct {
	APIKey         string
	BaseURL        string // empty = api.openai.com
	EmbeddingModel string
	ChatModel      string
	MaxTokens      int
	Temperature    float32
}

// NewClient creates an LLM client. BaseURL may point at any
// OpenAI-compatible server (vLLM, LocalAI, a proxy).
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if cfg.ChatModel == "" {
		return nil, fmt.Errorf("chat model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &Client{
		client:         openai.NewClientWithConfig(clientConfig),
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		logger:         logger.Named("llm"),
	}, nil
}

// CreateEmbedding generates an embedding vector for the input text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: []string{input},
	})
	if err != nil {
		c.logger.Error("embedding request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}

	c.logger.Debug("embedding created",
		zap.Int("input_len", len(input)),
		zap.Int("dimensions", len(resp.Data[0].Embedding)),
		zap.Duration("elapsed", time.Since(start)))
	return resp.Data[0].Embedding, nil
}

// GenerateAnswer sends a single-user-message chat completion and
// returns the model's text.
func (c *Client) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		c.logger.Error("completion request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	c.logger.Info("completion finished",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
