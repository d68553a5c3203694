package provider

import (
	"context"
	"crypto/sha256"

	"github.com/haasonsaas/buildli/pkg/core/apperr"
)

// LocalDimensions is the embedding size of the offline hash embedder
const LocalDimensions = 384

// LocalProvider is a deterministic offline embedder. It hashes chunk
// content instead of calling a model, so indexing and search work without
// network access or API keys. Identical text always maps to the identical
// vector; similarity is exact-match only. Chat is not supported.
type LocalProvider struct{}

// NewLocalProvider creates the offline hash embedder
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// Name returns the provider name
func (p *LocalProvider) Name() string {
	return "local"
}

// Chat is not supported by the local provider
func (p *LocalProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return nil, apperr.New("local provider does not support chat; configure llm.provider").
		WithCode(apperr.CodeConfig)
}

// ChatStream is not supported by the local provider
func (p *LocalProvider) ChatStream(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, <-chan error) {
	respCh := make(chan *ChatResponse)
	errCh := make(chan error, 1)
	errCh <- apperr.New("local provider does not support chat; configure llm.provider").
		WithCode(apperr.CodeConfig)
	close(respCh)
	close(errCh)
	return respCh, errCh
}

// Embed produces hash-based embeddings
func (p *LocalProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	embeddings := make([][]float64, len(req.Input))
	for i, text := range req.Input {
		embeddings[i] = hashEmbedding(text)
	}
	return &EmbeddingResponse{Embeddings: embeddings, Model: "local-hash"}, nil
}

// hashEmbedding expands a SHA-256 digest into LocalDimensions floats in
// [0, 1]. Successive 32-byte blocks are produced by re-hashing the
// previous digest so all dimensions carry signal.
func hashEmbedding(text string) []float64 {
	out := make([]float64, LocalDimensions)
	digest := sha256.Sum256([]byte(text))

	for i := 0; i < LocalDimensions; i++ {
		if i > 0 && i%len(digest) == 0 {
			digest = sha256.Sum256(digest[:])
		}
		out[i] = float64(digest[i%len(digest)]) / 255.0
	}
	return out
}

// ListModels returns the single pseudo-model
func (p *LocalProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{Name: "local-hash", Provider: "local"}}, nil
}

// HealthCheck always succeeds
func (p *LocalProvider) HealthCheck(ctx context.Context) error {
	return nil
}
