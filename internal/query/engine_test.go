package query

import (
	"context"
	"strings"
	"testing"

	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/vectorstore"
)

// fakeLLM records the prompt it saw and returns a fixed answer, optionally
// streamed in pieces.
type fakeLLM struct {
	provider.Provider
	answer     string
	lastPrompt string
	lastSystem string
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.lastPrompt = req.Messages[len(req.Messages)-1].Content
	f.lastSystem = req.System
	return &provider.ChatResponse{
		Message: provider.Message{Role: "assistant", Content: f.answer},
		Done:    true,
	}, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, req *provider.ChatRequest) (<-chan *provider.ChatResponse, <-chan error) {
	f.lastPrompt = req.Messages[len(req.Messages)-1].Content
	f.lastSystem = req.System

	respCh := make(chan *provider.ChatResponse, 8)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		// Stream in two pieces.
		half := len(f.answer) / 2
		respCh <- &provider.ChatResponse{Message: provider.Message{Content: f.answer[:half]}}
		respCh <- &provider.ChatResponse{Message: provider.Message{Content: f.answer[half:]}, Done: true}
	}()
	return respCh, errCh
}

func seedStore(t *testing.T, embedder provider.Provider) vectorstore.Store {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	ctx := context.Background()

	chunks := []struct {
		id, content, file, lang, repo string
	}{
		{"c1", "func LoadConfig() error { return nil }", "config.go", "go", "myrepo"},
		{"c2", "def load_config():\n    pass", "config.py", "python", "pyrepo"},
		{"c3", "func StartServer() { listen() }", "server.go", "go", "myrepo"},
	}
	for _, c := range chunks {
		resp, err := embedder.Embed(ctx, &provider.EmbeddingRequest{Input: []string{c.content}})
		if err != nil {
			t.Fatal(err)
		}
		err = store.Insert(ctx, &vectorstore.Document{
			ID:        c.id,
			Content:   c.content,
			Embedding: resp.Embeddings[0],
			Metadata: map[string]string{
				vectorstore.MetaFilePath:  c.file,
				vectorstore.MetaLineStart: "1",
				vectorstore.MetaLineEnd:   "5",
				vectorstore.MetaLanguage:  c.lang,
				vectorstore.MetaRepo:      c.repo,
			},
			Collection: "buildli",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func newTestEngine(t *testing.T, llm *fakeLLM) *Engine {
	embedder := provider.NewLocalProvider()
	return New(Options{
		Embedder: embedder,
		LLM:      llm,
		Store:    seedStore(t, embedder),
	})
}

func TestQuery_GroundsAnswerInContext(t *testing.T) {
	llm := &fakeLLM{answer: "LoadConfig reads the config file."}
	e := newTestEngine(t, llm)

	// The local hash embedder only matches exact content, so ask with the
	// exact chunk text to hit c1.
	answer, err := e.Query(context.Background(), "func LoadConfig() error { return nil }", 1, Filters{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	if answer.Text != llm.answer {
		t.Errorf("Text = %q", answer.Text)
	}
	if len(answer.References) != 1 || answer.References[0].FilePath != "config.go" {
		t.Errorf("References = %+v, want config.go", answer.References)
	}
	if !strings.Contains(llm.lastPrompt, "config.go") {
		t.Error("prompt missing retrieved file context")
	}
	if !strings.Contains(llm.lastPrompt, "func LoadConfig()") {
		t.Error("prompt missing retrieved code")
	}
}

func TestQuery_NoResults(t *testing.T) {
	llm := &fakeLLM{answer: "should not be called"}
	embedder := provider.NewLocalProvider()
	e := New(Options{
		Embedder: embedder,
		LLM:      llm,
		Store:    vectorstore.NewMemoryStore(),
	})

	answer, err := e.Query(context.Background(), "anything", 5, Filters{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer.Text != NoResultsAnswer {
		t.Errorf("Text = %q, want canned no-results answer", answer.Text)
	}
	if llm.lastPrompt != "" {
		t.Error("LLM should not be called when retrieval is empty")
	}
}

func TestQuery_LanguageFilter(t *testing.T) {
	llm := &fakeLLM{answer: "ok"}
	e := newTestEngine(t, llm)

	answer, err := e.Query(context.Background(),
		"func LoadConfig() error { return nil }", 5, Filters{Languages: []string{"python"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, ref := range answer.References {
		if !strings.HasSuffix(ref.FilePath, ".py") {
			t.Errorf("reference %s passed a python-only filter", ref.FilePath)
		}
	}
}

func TestQueryStream_DeliversChunks(t *testing.T) {
	llm := &fakeLLM{answer: "streamed answer text"}
	e := newTestEngine(t, llm)

	var streamed strings.Builder
	answer, err := e.QueryStream(context.Background(),
		"func StartServer() { listen() }", 1, Filters{},
		func(chunk string) { streamed.WriteString(chunk) })
	if err != nil {
		t.Fatalf("QueryStream: %v", err)
	}
	if streamed.String() != llm.answer {
		t.Errorf("streamed = %q, want %q", streamed.String(), llm.answer)
	}
	if answer.Text != llm.answer {
		t.Errorf("Text = %q, want full answer", answer.Text)
	}
}

func TestSolveBug_ExtractsPatchAndFiles(t *testing.T) {
	llm := &fakeLLM{answer: "The nil check is missing.\n\n```diff\n--- a/config.go\n+++ b/config.go\n@@ -1 +1 @@\n-old\n+new\n```\nApply the fix above."}
	e := newTestEngine(t, llm)

	report, err := e.SolveBug(context.Background(),
		"func LoadConfig() error { return nil }", 2, nil)
	if err != nil {
		t.Fatalf("SolveBug: %v", err)
	}

	if !strings.Contains(report.Patch, "--- a/config.go") {
		t.Errorf("Patch = %q, want extracted diff", report.Patch)
	}
	if len(report.AffectedFiles) == 0 {
		t.Error("AffectedFiles is empty")
	}
	if !strings.Contains(llm.lastSystem, "unified diff") {
		t.Error("bug prompt should request a diff")
	}
}

func TestExtractPatch(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"diff fence", "text\n```diff\n-a\n+b\n```\nmore", "-a\n+b\n"},
		{"patch fence", "```patch\n+x\n```", "+x\n"},
		{"no patch", "plain answer without a diff", ""},
		{"plain fence ignored", "```go\nfunc f() {}\n```", ""},
	}
	for _, c := range cases {
		if got := ExtractPatch(c.in); got != c.want {
			t.Errorf("%s: ExtractPatch = %q, want %q", c.name, got, c.want)
		}
	}
}
