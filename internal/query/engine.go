// Package query answers natural language questions about indexed code by
// retrieving the most similar chunks and grounding an LLM on them.
package query

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/vectorstore"
	"github.com/haasonsaas/buildli/pkg/core/apperr"
	"github.com/haasonsaas/buildli/pkg/core/logging"
)

// DefaultTopK is the number of chunks retrieved when the caller passes 0
const DefaultTopK = 10

// NoResultsAnswer is returned without calling the LLM when retrieval finds
// nothing.
const NoResultsAnswer = "No relevant code found in the index. Run 'buildli index' on your source tree first."

const systemPrompt = `You are a code assistant. Answer questions about the user's codebase using only the provided code context. Reference files and line numbers when relevant. If the context does not contain the answer, say so.`

const bugSystemPrompt = `You are a code assistant helping to fix a bug. Analyze the bug description against the provided code context. Explain the likely cause, then propose a fix as a unified diff inside a fenced code block marked as diff.`

// Options configures an Engine
type Options struct {
	Embedder    provider.Provider
	LLM         provider.Provider
	Store       vectorstore.Store
	Collection  string
	EmbedModel  string
	ChatModel   string
	Temperature float64
}

// Filters narrows retrieval results by metadata
type Filters struct {
	Repos     []string
	Languages []string
}

// Reference points at a code location that backed the answer
type Reference struct {
	FilePath  string  `json:"file_path"`
	LineStart int     `json:"line_start"`
	LineEnd   int     `json:"line_end"`
	Snippet   string  `json:"snippet,omitempty"`
	Score     float64 `json:"score"`
}

// Answer is a complete query result
type Answer struct {
	Text       string
	References []Reference
}

// BugReport is the result of a bug analysis
type BugReport struct {
	Analysis      string
	Patch         string
	AffectedFiles []string
	References    []Reference
}

// Engine retrieves code chunks and asks the LLM about them
type Engine struct {
	embedder    provider.Provider
	llm         provider.Provider
	store       vectorstore.Store
	collection  string
	embedModel  string
	chatModel   string
	temperature float64
	log         *logging.Logger
}

// New creates a query engine
func New(opts Options) *Engine {
	if opts.Collection == "" {
		opts.Collection = "buildli"
	}
	return &Engine{
		embedder:    opts.Embedder,
		llm:         opts.LLM,
		store:       opts.Store,
		collection:  opts.Collection,
		embedModel:  opts.EmbedModel,
		chatModel:   opts.ChatModel,
		temperature: opts.Temperature,
		log:         logging.New("query"),
	}
}

// Query answers a question in one shot
func (e *Engine) Query(ctx context.Context, question string, topK int, filters Filters) (*Answer, error) {
	return e.QueryStream(ctx, question, topK, filters, nil)
}

// QueryStream answers a question, delivering answer text through onChunk as
// it arrives when onChunk is non-nil. The returned Answer always carries
// the full text and references.
func (e *Engine) QueryStream(ctx context.Context, question string, topK int, filters Filters, onChunk func(string)) (*Answer, error) {
	refs, contextBlock, err := e.retrieve(ctx, question, topK, filters)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		if onChunk != nil {
			onChunk(NoResultsAnswer)
		}
		return &Answer{Text: NoResultsAnswer}, nil
	}

	text, err := e.complete(ctx, systemPrompt, questionPrompt(question, contextBlock), onChunk)
	if err != nil {
		return nil, err
	}

	return &Answer{Text: text, References: refs}, nil
}

// SolveBug analyzes a bug description against the index and extracts a
// proposed patch from the answer.
func (e *Engine) SolveBug(ctx context.Context, description string, topK int, onChunk func(string)) (*BugReport, error) {
	refs, contextBlock, err := e.retrieve(ctx, description, topK, Filters{})
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		if onChunk != nil {
			onChunk(NoResultsAnswer)
		}
		return &BugReport{Analysis: NoResultsAnswer}, nil
	}

	prompt := fmt.Sprintf("Bug report:\n%s\n\nRelevant code:\n%s", description, contextBlock)
	text, err := e.complete(ctx, bugSystemPrompt, prompt, onChunk)
	if err != nil {
		return nil, err
	}

	report := &BugReport{
		Analysis:   text,
		Patch:      ExtractPatch(text),
		References: refs,
	}

	seen := make(map[string]bool)
	for _, ref := range refs {
		if !seen[ref.FilePath] {
			seen[ref.FilePath] = true
			report.AffectedFiles = append(report.AffectedFiles, ref.FilePath)
		}
	}

	return report, nil
}

// retrieve embeds the question and searches the store, applying metadata
// filters to the results.
func (e *Engine) retrieve(ctx context.Context, question string, topK int, filters Filters) ([]Reference, string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	embResp, err := e.embedder.Embed(ctx, &provider.EmbeddingRequest{
		Input: []string{question},
		Model: e.embedModel,
	})
	if err != nil {
		return nil, "", apperr.Wrap(err, "failed to embed question").
			WithCode(apperr.CodeEmbedding).
			WithOperation("query.retrieve")
	}
	if len(embResp.Embeddings) == 0 {
		return nil, "", apperr.New("embedder returned no vector").WithCode(apperr.CodeEmbedding)
	}

	// Over-fetch when filtering so the post-filter set can still reach topK.
	fetchK := topK
	if len(filters.Repos) > 0 || len(filters.Languages) > 0 {
		fetchK = topK * 4
	}

	results, err := e.store.Search(ctx, embResp.Embeddings[0], e.collection, fetchK, 0)
	if err != nil {
		return nil, "", apperr.Wrap(err, "search failed").
			WithCode(apperr.CodeQuery).
			WithOperation("query.retrieve")
	}

	var refs []Reference
	var contextBlock strings.Builder

	for _, res := range results {
		md := res.Document.Metadata
		if !matchFilter(filters.Repos, md[vectorstore.MetaRepo]) {
			continue
		}
		if !matchFilter(filters.Languages, md[vectorstore.MetaLanguage]) {
			continue
		}

		lineStart, _ := strconv.Atoi(md[vectorstore.MetaLineStart])
		lineEnd, _ := strconv.Atoi(md[vectorstore.MetaLineEnd])

		refs = append(refs, Reference{
			FilePath:  md[vectorstore.MetaFilePath],
			LineStart: lineStart,
			LineEnd:   lineEnd,
			Snippet:   snippet(res.Document.Content),
			Score:     res.Score,
		})

		fmt.Fprintf(&contextBlock, "--- Result %d (%s, lines %d-%d, score %.3f) ---\n```%s\n%s\n```\n\n",
			len(refs), md[vectorstore.MetaFilePath], lineStart, lineEnd, res.Score,
			md[vectorstore.MetaLanguage], res.Document.Content)

		if len(refs) >= topK {
			break
		}
	}

	return refs, contextBlock.String(), nil
}

// complete runs the chat, streaming through onChunk when set
func (e *Engine) complete(ctx context.Context, system, prompt string, onChunk func(string)) (string, error) {
	req := &provider.ChatRequest{
		System:      system,
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Model:       e.chatModel,
		Temperature: e.temperature,
	}

	if onChunk == nil {
		resp, err := e.llm.Chat(ctx, req)
		if err != nil {
			return "", apperr.Wrap(err, "chat completion failed").WithCode(apperr.CodeQuery)
		}
		return resp.Message.Content, nil
	}

	respCh, errCh := e.llm.ChatStream(ctx, req)

	var full strings.Builder
	for resp := range respCh {
		if resp.Message.Content != "" {
			full.WriteString(resp.Message.Content)
			onChunk(resp.Message.Content)
		}
	}
	if err := <-errCh; err != nil {
		return "", apperr.Wrap(err, "chat stream failed").WithCode(apperr.CodeQuery)
	}

	return full.String(), nil
}

func questionPrompt(question, contextBlock string) string {
	return fmt.Sprintf("Question: %s\n\nCode context:\n%s", question, contextBlock)
}

func matchFilter(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return true
		}
	}
	return false
}

// snippet truncates chunk content for reference display
func snippet(content string) string {
	const maxLines = 8
	const maxBytes = 400

	lines := strings.SplitN(content, "\n", maxLines+1)
	if len(lines) > maxLines {
		content = strings.Join(lines[:maxLines], "\n")
	}
	if len(content) > maxBytes {
		content = content[:maxBytes]
	}
	return content
}

var patchFence = regexp.MustCompile("(?s)```(?:diff|patch)\\n(.*?)```")

// ExtractPatch pulls the first fenced diff block out of an LLM answer.
// Returns "" when the answer carries no patch.
func ExtractPatch(answer string) string {
	m := patchFence.FindStringSubmatch(answer)
	if m == nil {
		return ""
	}
	body := strings.TrimRight(m[1], "\n")
	if body == "" {
		return ""
	}
	return body + "\n"
}
