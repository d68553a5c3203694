// Package provider abstracts the LLM and embedding backends buildli can
// talk to: OpenAI-compatible APIs, a local Ollama instance, and a
// deterministic offline hash embedder.
package provider

import (
	"context"
	"strings"
	"time"
)

// Provider is an LLM/embedding backend
type Provider interface {
	// Name returns the provider name
	Name() string

	// Chat performs a chat completion
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatStream performs a streaming chat completion
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, <-chan error)

	// Embed generates embeddings
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// ListModels lists available models
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// HealthCheck checks if the provider is reachable
	HealthCheck(ctx context.Context) error
}

// Message represents a chat message
type Message struct {
	Role    string
	Content string
}

// ChatRequest represents a chat request
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
	System      string
}

// ChatResponse represents a chat response or one streamed delta
type ChatResponse struct {
	Message       Message
	Model         string
	PromptTokens  int
	OutputTokens  int
	TotalDuration time.Duration
	Done          bool
}

// EmbeddingRequest represents an embedding request
type EmbeddingRequest struct {
	Input []string
	Model string
}

// EmbeddingResponse represents an embedding response
type EmbeddingResponse struct {
	Embeddings [][]float64
	Model      string
}

// ModelInfo represents model information
type ModelInfo struct {
	Name     string
	Family   string
	Provider string
}

// ParseProviderModel splits "openai:gpt-4o" into provider and model. A bare
// model name returns an empty provider, meaning the configured default.
func ParseProviderModel(modelStr string) (string, string) {
	if provider, model, ok := strings.Cut(modelStr, ":"); ok {
		return provider, model
	}
	return "", modelStr
}
