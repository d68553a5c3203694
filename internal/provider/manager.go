package provider

import (
	"context"
	"time"

	"github.com/haasonsaas/buildli/internal/config"
	"github.com/haasonsaas/buildli/pkg/core/apperr"
	"github.com/haasonsaas/buildli/pkg/core/logging"
)

var managerLog = logging.New("provider")

// Manager builds and owns the providers configured for this run
type Manager struct {
	providers map[string]Provider
	llm       Provider
	embedder  Provider
}

// NewManager wires up providers from configuration. The chat provider is
// required to exist for query commands; the embedding provider falls back
// to the offline hash embedder when the configured one cannot be built.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{providers: make(map[string]Provider)}

	m.providers["local"] = NewLocalProvider()
	m.providers["ollama"] = NewOllamaProvider(OllamaConfig{
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.Model,
		EmbedModel:   cfg.Embedding.Model,
	})

	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = cfg.Embedding.APIKey
	}
	if apiKey != "" {
		openai, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:       apiKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.Model,
			EmbedModel:   cfg.Embedding.Model,
		})
		if err != nil {
			return nil, err
		}
		m.providers["openai"] = openai
	}

	llm, ok := m.providers[cfg.LLM.Provider]
	if !ok {
		return nil, apperr.Newf("LLM provider %q is not available (missing API key?)", cfg.LLM.Provider).
			WithCode(apperr.CodeConfig).
			WithOperation("provider.NewManager")
	}
	m.llm = llm

	embedder, ok := m.providers[cfg.Embedding.Provider]
	if !ok {
		managerLog.Warn("embedding provider unavailable, using offline hash embedder",
			"configured", cfg.Embedding.Provider)
		embedder = m.providers["local"]
	}
	m.embedder = embedder

	return m, nil
}

// LLM returns the chat provider
func (m *Manager) LLM() Provider {
	return m.llm
}

// Embedder returns the embedding provider
func (m *Manager) Embedder() Provider {
	return m.embedder
}

// Get returns a provider by name
func (m *Manager) Get(name string) (Provider, bool) {
	p, ok := m.providers[name]
	return p, ok
}

// HealthCheck pings every configured provider and returns per-provider
// errors; nil entries mean healthy.
func (m *Manager) HealthCheck(ctx context.Context, timeout time.Duration) map[string]error {
	results := make(map[string]error, len(m.providers))
	for name, p := range m.providers {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		results[name] = p.HealthCheck(checkCtx)
		cancel()
	}
	return results
}
