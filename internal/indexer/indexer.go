// Package indexer turns source trees into embedded chunks in the vector
// store and keeps them current in watch mode.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/buildli/internal/indexer/chunker"
	"github.com/haasonsaas/buildli/internal/indexer/walker"
	"github.com/haasonsaas/buildli/internal/provider"
	"github.com/haasonsaas/buildli/internal/vectorstore"
	"github.com/haasonsaas/buildli/pkg/core/apperr"
	"github.com/haasonsaas/buildli/pkg/core/cache"
	"github.com/haasonsaas/buildli/pkg/core/logging"
)

// Stats summarizes an indexing run
type Stats struct {
	TotalFiles   int64
	IndexedFiles int64
	FailedFiles  int64
	TotalChunks  int64
	LastUpdated  time.Time
}

// Options configures an Indexer
type Options struct {
	Embedder   provider.Provider
	Store      vectorstore.Store
	Collection string
	EmbedModel string
	BatchSize  int
	ChunkerCfg chunker.Config

	// ExtraIgnores adds names to the walker's built-in ignore set
	ExtraIgnores []string
}

// Progress is called after each file during an indexing run
type Progress func(done, total int, path string)

// Indexer chunks, embeds and stores source files
type Indexer struct {
	walker     *walker.Walker
	chunker    *chunker.Chunker
	embedder   provider.Provider
	store      vectorstore.Store
	embedCache *cache.Cache
	collection string
	embedModel string
	batchSize  int
	log        *logging.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates an indexer
func New(opts Options) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Collection == "" {
		opts.Collection = "buildli"
	}
	return &Indexer{
		walker:     walker.New(opts.ExtraIgnores...),
		chunker:    chunker.New(opts.ChunkerCfg),
		embedder:   opts.Embedder,
		store:      opts.Store,
		embedCache: cache.New(cache.Config{MaxItems: 50000, TTL: 24 * time.Hour}),
		collection: opts.Collection,
		embedModel: opts.EmbedModel,
		batchSize:  opts.BatchSize,
		log:        logging.New("indexer"),
	}
}

// IndexPaths walks and indexes every root. Per-file failures are counted,
// logged and skipped; only setup errors abort the run.
func (ix *Indexer) IndexPaths(ctx context.Context, roots []string, progress Progress) (Stats, error) {
	var files []string
	repoOf := make(map[string]string)

	for _, root := range roots {
		found, err := ix.walker.Walk(root)
		if err != nil {
			return ix.Stats(), err
		}
		repo := repoName(root)
		for _, f := range found {
			files = append(files, f)
			repoOf[f] = repo
		}
	}

	ix.mu.Lock()
	ix.stats.TotalFiles = int64(len(files))
	ix.mu.Unlock()

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return ix.Stats(), err
		}

		chunks, err := ix.indexFile(ctx, file, repoOf[file])
		ix.mu.Lock()
		if err != nil {
			ix.stats.FailedFiles++
			ix.log.Warn("failed to index file", "path", file, "error", err)
		} else {
			ix.stats.IndexedFiles++
			ix.stats.TotalChunks += int64(chunks)
		}
		ix.stats.LastUpdated = time.Now()
		ix.mu.Unlock()

		if progress != nil {
			progress(i+1, len(files), file)
		}
	}

	return ix.Stats(), nil
}

// IndexFile indexes one file, replacing its previous chunks
func (ix *Indexer) IndexFile(ctx context.Context, path string) error {
	_, err := ix.indexFile(ctx, path, repoName(filepath.Dir(path)))
	if err == nil {
		ix.mu.Lock()
		ix.stats.LastUpdated = time.Now()
		ix.mu.Unlock()
	}
	return err
}

func (ix *Indexer) indexFile(ctx context.Context, path, repo string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, apperr.Wrap(err, "failed to read file").
			WithCode(apperr.CodeIO).
			WithOperation("indexer.IndexFile")
	}

	chunks := ix.chunker.Split(path, string(data))
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := ix.embedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}

	docs := make([]*vectorstore.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = &vectorstore.Document{
			ID:        uuid.New().String(),
			Content:   ch.Content,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				vectorstore.MetaFilePath:  path,
				vectorstore.MetaLineStart: strconv.Itoa(ch.LineStart),
				vectorstore.MetaLineEnd:   strconv.Itoa(ch.LineEnd),
				vectorstore.MetaChunkType: string(ch.Type),
				vectorstore.MetaLanguage:  ch.Language,
				vectorstore.MetaRepo:      repo,
			},
			Collection: ix.collection,
		}
	}

	// Replace, not accumulate: stale chunks from a previous version of the
	// file would otherwise keep matching queries.
	if err := ix.store.DeleteByFile(ctx, ix.collection, path); err != nil {
		return 0, err
	}
	if err := ix.store.Insert(ctx, docs...); err != nil {
		return 0, err
	}

	return len(docs), nil
}

// embedChunks embeds all chunks, serving repeats from the content cache and
// batching the rest through the provider.
func (ix *Indexer) embedChunks(ctx context.Context, chunks []chunker.Chunk) ([][]float64, error) {
	embeddings := make([][]float64, len(chunks))

	var missing []int
	for i, ch := range chunks {
		key := contentKey(ch.Content)
		if cached, ok := ix.embedCache.Get(key); ok {
			embeddings[i] = cached.([]float64)
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		input := make([]string, len(batch))
		for j, idx := range batch {
			input[j] = chunks[idx].Content
		}

		resp, err := ix.embedder.Embed(ctx, &provider.EmbeddingRequest{
			Input: input,
			Model: ix.embedModel,
		})
		if err != nil {
			return nil, apperr.Wrap(err, "embedding batch failed").
				WithCode(apperr.CodeEmbedding).
				WithOperation("indexer.embedChunks")
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, apperr.Newf("embedder returned %d vectors for %d inputs",
				len(resp.Embeddings), len(batch)).
				WithCode(apperr.CodeEmbedding)
		}

		for j, idx := range batch {
			embeddings[idx] = resp.Embeddings[j]
			ix.embedCache.Set(contentKey(chunks[idx].Content), resp.Embeddings[j])
		}
	}

	return embeddings, nil
}

// RemoveFile drops all chunks of a deleted file
func (ix *Indexer) RemoveFile(ctx context.Context, path string) error {
	if err := ix.store.DeleteByFile(ctx, ix.collection, path); err != nil {
		return err
	}
	ix.mu.Lock()
	ix.stats.LastUpdated = time.Now()
	ix.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the run statistics
func (ix *Indexer) Stats() Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.stats
}

// StoreCount returns the live chunk count in the store
func (ix *Indexer) StoreCount(ctx context.Context) (int64, error) {
	return ix.store.Count(ctx, ix.collection)
}

// Watch reindexes files as they change under the given roots until the
// context is canceled.
func (ix *Indexer) Watch(ctx context.Context, roots []string) error {
	watcher, err := ix.walker.NewWatcher(roots...)
	if err != nil {
		return err
	}
	defer watcher.Close()

	ix.log.Info("watching for changes", "roots", roots)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case walker.Created, walker.Modified:
				if err := ix.IndexFile(ctx, ev.Path); err != nil {
					ix.log.Warn("reindex failed", "path", ev.Path, "error", err)
				} else {
					ix.log.Info("reindexed", "path", ev.Path)
				}
			case walker.Deleted:
				if err := ix.RemoveFile(ctx, ev.Path); err != nil {
					ix.log.Warn("remove failed", "path", ev.Path, "error", err)
				} else {
					ix.log.Info("removed from index", "path", ev.Path)
				}
			}
		}
	}
}

func repoName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Base(root)
	}
	return filepath.Base(abs)
}

func contentKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
