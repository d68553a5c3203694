// Package vectorstore stores embedded code chunks and serves similarity
// search over them. Two backends exist: an in-memory store and a SQLite
// store for persistence across runs.
package vectorstore

import (
	"context"
	"math"
	"sync"

	"github.com/haasonsaas/buildli/pkg/core/apperr"
)

// Metadata keys attached to every indexed chunk
const (
	MetaFilePath  = "file_path"
	MetaLineStart = "line_start"
	MetaLineEnd   = "line_end"
	MetaChunkType = "chunk_type"
	MetaLanguage  = "language"
	MetaRepo      = "repo"
)

// Document is an embedded code chunk
type Document struct {
	ID         string
	Content    string
	Embedding  []float64
	Metadata   map[string]string
	Collection string
}

// SearchResult pairs a document with its cosine similarity score
type SearchResult struct {
	Document *Document
	Score    float64
}

// Store is the interface implemented by all vector store backends
type Store interface {
	// Insert adds or replaces documents
	Insert(ctx context.Context, docs ...*Document) error

	// Search returns up to topK documents from the collection ranked by
	// cosine similarity, skipping scores below minScore.
	Search(ctx context.Context, embedding []float64, collection string, topK int, minScore float64) ([]SearchResult, error)

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*Document, error)

	// DeleteByFile removes all documents whose file_path metadata matches
	DeleteByFile(ctx context.Context, collection, filePath string) error

	// Count returns the number of documents; empty collection counts all
	Count(ctx context.Context, collection string) (int64, error)

	// Collections returns all collection names
	Collections(ctx context.Context) ([]string, error)

	// Close releases backend resources
	Close() error
}

// New creates a store for the configured backend
func New(backend, path string) (Store, error) {
	switch backend {
	case "sqlite", "sqlite3", "":
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, apperr.Newf("unsupported vector backend %q", backend).
			WithCode(apperr.CodeVectorStore)
	}
}

// MemoryStore is a map-backed store. It keeps everything in process memory
// and is used for tests and the "memory" backend.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
	norms     map[string]float64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*Document),
		norms:     make(map[string]float64),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, docs ...*Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if doc.ID == "" {
			return apperr.New("document ID is required").WithCode(apperr.CodeVectorStore)
		}
		if doc.Collection == "" {
			doc.Collection = "default"
		}
		s.documents[doc.ID] = doc
		s.norms[doc.ID] = norm(doc.Embedding)
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, embedding []float64, collection string, topK int, minScore float64) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if collection == "" {
		collection = "default"
	}
	if topK <= 0 {
		topK = 10
	}

	queryNorm := norm(embedding)
	if queryNorm == 0 {
		return []SearchResult{}, nil
	}

	heap := newTopK(topK)
	for id, doc := range s.documents {
		if doc.Collection != collection || len(doc.Embedding) == 0 {
			continue
		}
		score := cosine(embedding, doc.Embedding, queryNorm, s.norms[id])
		if score >= minScore {
			heap.push(doc, score)
		}
	}

	return heap.results(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, apperr.Newf("document not found: %s", id).WithCode(apperr.CodeVectorStore)
	}
	return doc, nil
}

func (s *MemoryStore) DeleteByFile(ctx context.Context, collection, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if collection == "" {
		collection = "default"
	}
	for id, doc := range s.documents {
		if doc.Collection == collection && doc.Metadata[MetaFilePath] == filePath {
			delete(s.documents, id)
			delete(s.norms, id)
		}
	}
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if collection == "" {
		return int64(len(s.documents)), nil
	}
	var n int64
	for _, doc := range s.documents {
		if doc.Collection == collection {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, doc := range s.documents {
		if !seen[doc.Collection] {
			seen[doc.Collection] = true
			names = append(names, doc.Collection)
		}
	}
	return names, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// topK is a min-heap that keeps the k highest scoring documents
type topK struct {
	items []SearchResult
	k     int
}

func newTopK(k int) *topK {
	return &topK{items: make([]SearchResult, 0, k+1), k: k}
}

func (h *topK) push(doc *Document, score float64) {
	h.items = append(h.items, SearchResult{Document: doc, Score: score})
	i := len(h.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Score >= h.items[parent].Score {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}

	if len(h.items) > h.k {
		h.items[0] = h.items[len(h.items)-1]
		h.items = h.items[:len(h.items)-1]
		h.down(0)
	}
}

func (h *topK) down(i int) {
	n := len(h.items)
	for {
		smallest := i
		if l := 2*i + 1; l < n && h.items[l].Score < h.items[smallest].Score {
			smallest = l
		}
		if r := 2*i + 2; r < n && h.items[r].Score < h.items[smallest].Score {
			smallest = r
		}
		if smallest == i {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// results drains the heap into a slice sorted by score descending
func (h *topK) results() []SearchResult {
	out := make([]SearchResult, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		out[i] = h.items[0]
		h.items[0] = h.items[len(h.items)-1]
		h.items = h.items[:len(h.items)-1]
		h.down(0)
	}
	return out
}

// norm calculates the L2 norm of a vector
func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// cosine calculates cosine similarity using pre-computed norms
func cosine(a, b []float64, normA, normB float64) float64 {
	if len(a) != len(b) || len(a) == 0 || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}
