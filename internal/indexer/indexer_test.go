package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/vectorstore"
)

// countingEmbedder wraps the local hash embedder and counts how many texts
// were actually sent to the provider.
type countingEmbedder struct {
	provider.Provider
	mu     sync.Mutex
	inputs int
	calls  int
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{Provider: provider.NewLocalProvider()}
}

func (e *countingEmbedder) Embed(ctx context.Context, req *provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	e.mu.Lock()
	e.inputs += len(req.Input)
	e.calls++
	e.mu.Unlock()
	return e.Provider.Embed(ctx, req)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestIndexer(embedder provider.Provider) (*Indexer, vectorstore.Store) {
	store := vectorstore.NewMemoryStore()
	ix := New(Options{
		Embedder:   embedder,
		Store:      store,
		Collection: "test",
		BatchSize:  2,
	})
	return ix, store
}

func TestIndexPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "package a\n\nfunc A() {}\n")
	writeFile(t, filepath.Join(root, "b.go"), "package b\n\nfunc B() {}\n")
	writeFile(t, filepath.Join(root, "skip.png"), "binary")

	ix, store := newTestIndexer(provider.NewLocalProvider())
	ctx := context.Background()

	var progressCalls int
	stats, err := ix.IndexPaths(ctx, []string{root}, func(done, total int, path string) {
		progressCalls++
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatalf("IndexPaths: %v", err)
	}

	if stats.TotalFiles != 2 || stats.IndexedFiles != 2 || stats.FailedFiles != 0 {
		t.Errorf("stats = %+v, want 2 total / 2 indexed / 0 failed", stats)
	}
	if stats.TotalChunks < 2 {
		t.Errorf("TotalChunks = %d, want >= 2", stats.TotalChunks)
	}
	if progressCalls != 2 {
		t.Errorf("progress called %d times, want 2", progressCalls)
	}

	count, err := store.Count(ctx, "test")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != stats.TotalChunks {
		t.Errorf("store count = %d, stats chunks = %d", count, stats.TotalChunks)
	}
}

func TestIndexFile_ReplacesOldChunks(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "main.go")
	writeFile(t, path, "package main\n\nfunc main() {}\n")

	ix, store := newTestIndexer(provider.NewLocalProvider())
	ctx := context.Background()

	if err := ix.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	first, _ := store.Count(ctx, "test")

	writeFile(t, path, "package main\n\nfunc main() { println(1) }\n")
	if err := ix.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile (reindex): %v", err)
	}
	second, _ := store.Count(ctx, "test")

	if second != first {
		t.Errorf("count after reindex = %d, want %d (old chunks replaced)", second, first)
	}
}

func TestRemoveFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "main.go")
	writeFile(t, path, "package main\n\nfunc main() {}\n")

	ix, store := newTestIndexer(provider.NewLocalProvider())
	ctx := context.Background()

	if err := ix.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if err := ix.RemoveFile(ctx, path); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}

	count, _ := store.Count(ctx, "test")
	if count != 0 {
		t.Errorf("count = %d after remove, want 0", count)
	}
}

func TestEmbedCache_SkipsRepeatContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "same.go")
	writeFile(t, path, "package same\n\nfunc Same() {}\n")

	embedder := newCountingEmbedder()
	ix, _ := newTestIndexer(embedder)
	ctx := context.Background()

	if err := ix.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	afterFirst := embedder.inputs

	// Unchanged content must be served from the cache.
	if err := ix.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile (repeat): %v", err)
	}
	if embedder.inputs != afterFirst {
		t.Errorf("embedder saw %d inputs after repeat, want %d (cached)", embedder.inputs, afterFirst)
	}
}

func TestIndexPaths_FailedFilesAreCountedNotFatal(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.go")
	writeFile(t, good, "package good\n")
	bad := filepath.Join(root, "bad.go")
	writeFile(t, bad, "package bad\n")
	// Make the file unreadable so indexing it fails.
	if err := os.Chmod(bad, 0o000); err != nil {
		t.Fatal(err)
	}
	if os.Geteuid() == 0 {
		t.Skip("chmod-based read denial does not apply to root")
	}
	defer os.Chmod(bad, 0o644)

	ix, _ := newTestIndexer(provider.NewLocalProvider())
	stats, err := ix.IndexPaths(context.Background(), []string{root}, nil)
	if err != nil {
		t.Fatalf("IndexPaths: %v", err)
	}
	if stats.FailedFiles != 1 || stats.IndexedFiles != 1 {
		t.Errorf("stats = %+v, want 1 failed / 1 indexed", stats)
	}
}

func TestMetadata(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "meta.py")
	writeFile(t, path, "def f():\n    return 1\n")

	ix, store := newTestIndexer(provider.NewLocalProvider())
	ctx := context.Background()

	if err := ix.IndexFile(ctx, path); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	results, err := store.Search(ctx, mustEmbed(t, "def f():\n    return 1"), "test", 1, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	md := results[0].Document.Metadata
	if md[vectorstore.MetaFilePath] != path {
		t.Errorf("file_path = %q, want %q", md[vectorstore.MetaFilePath], path)
	}
	if md[vectorstore.MetaLanguage] != "python" {
		t.Errorf("language = %q, want python", md[vectorstore.MetaLanguage])
	}
	if md[vectorstore.MetaLineStart] != "1" {
		t.Errorf("line_start = %q, want 1", md[vectorstore.MetaLineStart])
	}
}

func mustEmbed(t *testing.T, text string) []float64 {
	t.Helper()
	resp, err := provider.NewLocalProvider().Embed(context.Background(),
		&provider.EmbeddingRequest{Input: []string{text}})
	if err != nil {
		t.Fatal(err)
	}
	return resp.Embeddings[0]
}
