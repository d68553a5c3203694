package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/haasonsaas/buildli/pkg/core/apperr"
)

// OllamaProvider talks to a local Ollama instance. No API key needed.
type OllamaProvider struct {
	baseURL      string
	httpClient   *http.Client
	defaultModel string
	embedModel   string
}

// OllamaConfig holds Ollama provider configuration
type OllamaConfig struct {
	BaseURL      string
	Timeout      time.Duration
	DefaultModel string
	EmbedModel   string
}

// DefaultOllamaConfig returns default Ollama configuration
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL:      "http://localhost:11434",
		Timeout:      300 * time.Second,
		DefaultModel: "llama3.2",
		EmbedModel:   "nomic-embed-text",
	}
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	defaults := DefaultOllamaConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaults.DefaultModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaults.EmbedModel
	}

	return &OllamaProvider{
		baseURL:      cfg.BaseURL,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		defaultModel: cfg.DefaultModel,
		embedModel:   cfg.EmbedModel,
	}
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	TotalDuration   int64         `json:"total_duration"`
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Size    int64  `json:"size"`
		Details struct {
			Family        string `json:"family"`
			ParameterSize string `json:"parameter_size"`
		} `json:"details"`
	} `json:"models"`
}

func (p *OllamaProvider) buildChatRequest(req *ChatRequest, stream bool) ollamaChatRequest {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, ollamaMessage{Role: msg.Role, Content: msg.Content})
	}

	return ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
}

func (p *OllamaProvider) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to marshal request").WithCode(apperr.CodeNetwork)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create request").WithCode(apperr.CodeNetwork)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(err, "request failed (is ollama running?)").WithCode(apperr.CodeNetwork)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apperr.Newf("ollama API error: %s - %s", resp.Status, string(bodyBytes)).
			WithCode(apperr.CodeNetwork)
	}
	return resp, nil
}

// Chat performs a chat completion
func (p *OllamaProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := p.post(ctx, "/api/chat", p.buildChatRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, apperr.Wrap(err, "failed to decode response").WithCode(apperr.CodeNetwork)
	}

	return &ChatResponse{
		Message: Message{
			Role:    apiResp.Message.Role,
			Content: apiResp.Message.Content,
		},
		Model:         apiResp.Model,
		PromptTokens:  apiResp.PromptEvalCount,
		OutputTokens:  apiResp.EvalCount,
		TotalDuration: time.Duration(apiResp.TotalDuration),
		Done:          true,
	}, nil
}

// ChatStream performs a streaming chat completion. Ollama streams
// newline-delimited JSON objects.
func (p *OllamaProvider) ChatStream(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, <-chan error) {
	respCh := make(chan *ChatResponse, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		resp, err := p.post(ctx, "/api/chat", p.buildChatRequest(req, true))
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var streamResp ollamaChatResponse
			if err := json.Unmarshal(scanner.Bytes(), &streamResp); err != nil {
				continue
			}

			respCh <- &ChatResponse{
				Message: Message{
					Role:    "assistant",
					Content: streamResp.Message.Content,
				},
				Model: streamResp.Model,
				Done:  streamResp.Done,
			}
			if streamResp.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- apperr.Wrap(err, "stream read failed").WithCode(apperr.CodeNetwork)
		}
	}()

	return respCh, errCh
}

// Embed generates embeddings for a batch of inputs
func (p *OllamaProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	resp, err := p.post(ctx, "/api/embed", ollamaEmbedRequest{Model: model, Input: req.Input})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, apperr.Wrap(err, "failed to decode response").WithCode(apperr.CodeEmbedding)
	}

	return &EmbeddingResponse{Embeddings: apiResp.Embeddings, Model: apiResp.Model}, nil
}

// ListModels lists locally available models
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create request").WithCode(apperr.CodeNetwork)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(err, "request failed (is ollama running?)").WithCode(apperr.CodeNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf("ollama API error: %s", resp.Status).WithCode(apperr.CodeNetwork)
	}

	var apiResp ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, apperr.Wrap(err, "failed to decode response").WithCode(apperr.CodeNetwork)
	}

	models := make([]ModelInfo, len(apiResp.Models))
	for i, m := range apiResp.Models {
		models[i] = ModelInfo{Name: m.Name, Family: m.Details.Family, Provider: "ollama"}
	}
	return models, nil
}

// HealthCheck checks if the Ollama instance is reachable
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}
