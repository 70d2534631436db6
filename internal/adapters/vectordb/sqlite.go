// Package vectordb provides vector store adapters.
// Each store implements ports.VectorStore with brute-force cosine search,
// except PostgresStore which pushes the distance computation to pgvector.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.VectorStore = (*SQLiteStore)(nil)

// DBFileName is the database file created inside the data directory.
const DBFileName = "knowledge.db"

// SQLiteStore implements ports.VectorStore with SQLite persistence.
// Vectors are stored as little-endian float32 blobs and scanned in full
// on every search.
type SQLiteStore struct {
	mu         sync.RWMutex
	db         *sql.DB
	dataPath   string
	dimensions int
}

// NewSQLiteStore opens (or creates) the knowledge base under dataPath.
// Reopening an existing base with a different dimension fails with
// entities.ErrConfiguration.
func NewSQLiteStore(dataPath string, dimensions int) (*SQLiteStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: store dimension must be positive", entities.ErrConfiguration)
	}
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, DBFileName)
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:         db,
		dataPath:   dataPath,
		dimensions: dimensions,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("opened sqlite knowledge store", "path", dbPath, "dimensions", dimensions)
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kb_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT value FROM kb_meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO kb_meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(s.dimensions))
		if err != nil {
			return fmt.Errorf("recording dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading dimension: %w", err)
	}

	if stored != strconv.Itoa(s.dimensions) {
		return fmt.Errorf("%w: knowledge base at %s was built with dimension %s, configured %d",
			entities.ErrConfiguration, s.dataPath, stored, s.dimensions)
	}
	return nil
}

// Dimensions returns the configured vector length.
func (s *SQLiteStore) Dimensions() int {
	return s.dimensions
}

// Store saves chunks in one transaction. A batch for a document that is
// already stored is rejected with entities.ErrDuplicateDocument.
func (s *SQLiteStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if err := checkDimensions(chunks, s.dimensions); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range documentIDs(chunks) {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM chunks WHERE document_id = ?)`, id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking document %s: %w", id, err)
		}
		if exists {
			return duplicateDocument(id)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			chunk.DocumentID,
			chunk.Index,
			chunk.Content,
			encodeVector(chunk.Embedding),
			string(meta),
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

// Search finds the most similar chunks to a query embedding.
func (s *SQLiteStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	if topK <= 0 {
		return []entities.QueryResult{}, nil
	}
	if err := checkQuery(embedding, s.dimensions); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, document_id, chunk_index, content, embedding, metadata
		FROM chunks
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var candidates []scored
	for rows.Next() {
		var (
			c        scored
			blob     []byte
			metadata string
		)
		err := rows.Scan(&c.seq, &c.chunk.ID, &c.chunk.DocumentID, &c.chunk.Index, &c.chunk.Content, &blob, &metadata)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		c.chunk.Embedding = decodeVector(blob)
		if len(c.chunk.Embedding) != s.dimensions {
			slog.Warn("skipping chunk with corrupt embedding", "chunk_id", c.chunk.ID)
			continue
		}
		if err := json.Unmarshal([]byte(metadata), &c.chunk.Metadata); err != nil {
			slog.Warn("chunk metadata unreadable", "chunk_id", c.chunk.ID, "error", err)
		}

		c.score = cosineSimilarity(embedding, c.chunk.Embedding)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return rank(candidates, topK), nil
}

// Stats reports chunk and document counts and content size in bytes.
func (s *SQLiteStore) Stats(ctx context.Context) (entities.CorpusStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats entities.CorpusStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT document_id), COALESCE(SUM(LENGTH(CAST(content AS BLOB))), 0)
		FROM chunks
	`).Scan(&stats.ChunkCount, &stats.DocumentCount, &stats.ApproxBytes)
	if err != nil {
		return entities.CorpusStats{}, fmt.Errorf("reading stats: %w", err)
	}
	return stats, nil
}

// Clear removes all chunks. The recorded dimension is kept.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
