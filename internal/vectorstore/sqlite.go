package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/haasonsaas/buildli/pkg/core/apperr"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists documents and embeddings in a single SQLite file.
// Embeddings are stored as little-endian float32 BLOBs with a pre-computed
// norm so search only pays for the dot product.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	collection TEXT NOT NULL DEFAULT 'default',
	file_path TEXT,
	metadata TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS embeddings (
	document_id TEXT PRIMARY KEY,
	embedding BLOB NOT NULL,
	dimensions INTEGER NOT NULL,
	norm REAL NOT NULL DEFAULT 0,
	FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
CREATE INDEX IF NOT EXISTS idx_documents_file_path ON documents(collection, file_path);
`

// NewSQLiteStore opens (or creates) the store at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Wrap(err, "failed to create store directory").
			WithCode(apperr.CodeVectorStore)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, apperr.Wrap(err, "failed to open database").
			WithCode(apperr.CodeVectorStore)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, apperr.Wrap(err, "failed to initialize schema").
			WithCode(apperr.CodeVectorStore)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, docs ...*Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(err, "failed to begin transaction").WithCode(apperr.CodeVectorStore)
	}
	defer tx.Rollback()

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (id, content, collection, file_path, metadata)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return apperr.Wrap(err, "failed to prepare document statement").WithCode(apperr.CodeVectorStore)
	}
	defer docStmt.Close()

	embStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO embeddings (document_id, embedding, dimensions, norm)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return apperr.Wrap(err, "failed to prepare embedding statement").WithCode(apperr.CodeVectorStore)
	}
	defer embStmt.Close()

	for _, doc := range docs {
		if doc.ID == "" {
			return apperr.New("document ID is required").WithCode(apperr.CodeVectorStore)
		}
		if doc.Collection == "" {
			doc.Collection = "default"
		}

		var metadataJSON []byte
		if doc.Metadata != nil {
			metadataJSON, _ = json.Marshal(doc.Metadata)
		}

		if _, err := docStmt.ExecContext(ctx,
			doc.ID, doc.Content, doc.Collection, doc.Metadata[MetaFilePath], metadataJSON); err != nil {
			return apperr.Wrap(err, "failed to insert document").WithCode(apperr.CodeVectorStore)
		}

		if len(doc.Embedding) > 0 {
			if _, err := embStmt.ExecContext(ctx,
				doc.ID, encodeEmbedding(doc.Embedding), len(doc.Embedding), norm(doc.Embedding)); err != nil {
				return apperr.Wrap(err, "failed to insert embedding").WithCode(apperr.CodeVectorStore)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(err, "failed to commit").WithCode(apperr.CodeVectorStore)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, embedding []float64, collection string, topK int, minScore float64) ([]SearchResult, error) {
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

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.content, d.collection, d.metadata, e.embedding, e.dimensions, e.norm
		FROM documents d
		JOIN embeddings e ON d.id = e.document_id
		WHERE d.collection = ?
	`, collection)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to query documents").WithCode(apperr.CodeVectorStore)
	}
	defer rows.Close()

	heap := newTopK(topK)
	for rows.Next() {
		var id, content, col string
		var metadataJSON sql.NullString
		var embBytes []byte
		var dimensions int
		var docNorm float64

		if err := rows.Scan(&id, &content, &col, &metadataJSON, &embBytes, &dimensions, &docNorm); err != nil {
			return nil, apperr.Wrap(err, "failed to scan row").WithCode(apperr.CodeVectorStore)
		}
		if docNorm == 0 {
			continue
		}

		docEmbedding := decodeEmbedding(embBytes, dimensions)
		score := cosine(embedding, docEmbedding, queryNorm, docNorm)
		if score < minScore {
			continue
		}

		doc := &Document{
			ID:         id,
			Content:    content,
			Collection: col,
			Embedding:  docEmbedding,
		}
		if metadataJSON.Valid {
			json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata)
		}
		heap.push(doc, score)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, "failed to iterate rows").WithCode(apperr.CodeVectorStore)
	}

	return heap.results(), nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.content, d.collection, d.metadata, e.embedding, e.dimensions
		FROM documents d
		LEFT JOIN embeddings e ON d.id = e.document_id
		WHERE d.id = ?
	`, id)

	var docID, content, collection string
	var metadataJSON sql.NullString
	var embBytes []byte
	var dimensions sql.NullInt64

	if err := row.Scan(&docID, &content, &collection, &metadataJSON, &embBytes, &dimensions); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.Newf("document not found: %s", id).WithCode(apperr.CodeVectorStore)
		}
		return nil, apperr.Wrap(err, "failed to scan document").WithCode(apperr.CodeVectorStore)
	}

	doc := &Document{ID: docID, Content: content, Collection: collection}
	if metadataJSON.Valid {
		json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata)
	}
	if dimensions.Valid && len(embBytes) > 0 {
		doc.Embedding = decodeEmbedding(embBytes, int(dimensions.Int64))
	}
	return doc, nil
}

func (s *SQLiteStore) DeleteByFile(ctx context.Context, collection, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if collection == "" {
		collection = "default"
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND file_path = ?`, collection, filePath)
	if err != nil {
		return apperr.Wrap(err, "failed to delete documents").WithCode(apperr.CodeVectorStore)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	var err error
	if collection == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&count)
	}
	if err != nil {
		return 0, apperr.Wrap(err, "failed to count documents").WithCode(apperr.CodeVectorStore)
	}
	return count, nil
}

func (s *SQLiteStore) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list collections").WithCode(apperr.CodeVectorStore)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(err, "failed to scan collection").WithCode(apperr.CodeVectorStore)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeEmbedding converts a vector to little-endian float32 bytes
func encodeEmbedding(embedding []float64) []byte {
	out := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		bits := math.Float32bits(float32(v))
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

// decodeEmbedding converts little-endian float32 bytes back to a vector
func decodeEmbedding(data []byte, dimensions int) []float64 {
	out := make([]float64, dimensions)
	for i := 0; i < dimensions && i*4+4 <= len(data); i++ {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		out[i] = float64(math.Float32frombits(bits))
	}
	return out
}
