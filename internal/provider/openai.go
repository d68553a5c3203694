package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/buildli/pkg/core/apperr"
)

// OpenAIProvider talks to the OpenAI API or any compatible endpoint
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	defaultModel string
	embedModel   string
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	DefaultModel string
	EmbedModel   string
}

// DefaultOpenAIConfig returns default OpenAI configuration
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:      "https://api.openai.com/v1",
		Timeout:      120 * time.Second,
		DefaultModel: "gpt-4o-mini",
		EmbedModel:   "text-embedding-3-small",
	}
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, apperr.New("OpenAI API key is required (set llm.api_key or use \"env:VAR\")").
			WithCode(apperr.CodeConfig)
	}

	defaults := DefaultOpenAIConfig()
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

	return &OpenAIProvider{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		defaultModel: cfg.DefaultModel,
		embedModel:   cfg.EmbedModel,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		Delta        openAIMessage `json:"delta"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

type openAIModelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

func (p *OpenAIProvider) buildChatRequest(req *ChatRequest, stream bool) openAIChatRequest {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openAIMessage{Role: msg.Role, Content: msg.Content})
	}

	out := openAIChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = 4096
	}
	return out
}

func (p *OpenAIProvider) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to marshal request").WithCode(apperr.CodeNetwork)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create request").WithCode(apperr.CodeNetwork)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(err, "request failed").WithCode(apperr.CodeNetwork)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, apperr.Newf("OpenAI API error: %s - %s", resp.Status, string(bodyBytes)).
			WithCode(apperr.CodeNetwork)
	}
	return resp, nil
}

// Chat performs a chat completion
func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	resp, err := p.post(ctx, "/chat/completions", p.buildChatRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, apperr.Wrap(err, "failed to decode response").WithCode(apperr.CodeNetwork)
	}
	if len(apiResp.Choices) == 0 {
		return nil, apperr.New("no response choices").WithCode(apperr.CodeQuery)
	}

	return &ChatResponse{
		Message: Message{
			Role:    apiResp.Choices[0].Message.Role,
			Content: apiResp.Choices[0].Message.Content,
		},
		Model:         apiResp.Model,
		PromptTokens:  apiResp.Usage.PromptTokens,
		OutputTokens:  apiResp.Usage.CompletionTokens,
		TotalDuration: time.Since(start),
		Done:          true,
	}, nil
}

// ChatStream performs a streaming chat completion over SSE
func (p *OpenAIProvider) ChatStream(ctx context.Context, req *ChatRequest) (<-chan *ChatResponse, <-chan error) {
	respCh := make(chan *ChatResponse, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		payload := p.buildChatRequest(req, true)

		resp, err := p.post(ctx, "/chat/completions", payload)
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			if data == "[DONE]" {
				respCh <- &ChatResponse{Done: true, Model: payload.Model}
				return
			}

			var streamResp openAIChatResponse
			if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
				continue
			}
			if len(streamResp.Choices) > 0 {
				respCh <- &ChatResponse{
					Message: Message{
						Role:    "assistant",
						Content: streamResp.Choices[0].Delta.Content,
					},
					Model: streamResp.Model,
					Done:  streamResp.Choices[0].FinishReason != "",
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- apperr.Wrap(err, "stream read failed").WithCode(apperr.CodeNetwork)
		}
	}()

	return respCh, errCh
}

// Embed generates embeddings for a batch of inputs
func (p *OpenAIProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	resp, err := p.post(ctx, "/embeddings", openAIEmbeddingRequest{Model: model, Input: req.Input})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp openAIEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, apperr.Wrap(err, "failed to decode response").WithCode(apperr.CodeEmbedding)
	}

	embeddings := make([][]float64, len(apiResp.Data))
	for _, d := range apiResp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}

	return &EmbeddingResponse{Embeddings: embeddings, Model: apiResp.Model}, nil
}

// ListModels lists available models
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create request").WithCode(apperr.CodeNetwork)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(err, "request failed").WithCode(apperr.CodeNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, apperr.Newf("OpenAI API error: %s - %s", resp.Status, string(bodyBytes)).
			WithCode(apperr.CodeNetwork)
	}

	var apiResp openAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, apperr.Wrap(err, "failed to decode response").WithCode(apperr.CodeNetwork)
	}

	models := make([]ModelInfo, len(apiResp.Data))
	for i, m := range apiResp.Data {
		models[i] = ModelInfo{Name: m.ID, Family: m.OwnedBy, Provider: "openai"}
	}
	return models, nil
}

// HealthCheck checks if the provider is reachable
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	_, err := p.ListModels(ctx)
	return err
}
