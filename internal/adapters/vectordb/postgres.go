package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.VectorStore = (*PostgresStore)(nil)

// PostgresStore implements ports.VectorStore on PostgreSQL with the pgvector
// extension. Distances are computed by the database with the <=> operator.
// Returned chunks do not carry their embedding.
type PostgresStore struct {
	mu         sync.RWMutex
	pool       *pgxpool.Pool
	dimensions int
}

// NewPostgresStore connects, installs the schema and checks the recorded
// dimension the same way SQLiteStore does.
func NewPostgresStore(ctx context.Context, databaseURL string, dimensions int) (*PostgresStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: store dimension must be positive", entities.ErrConfiguration)
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is required for the postgres backend", entities.ErrConfiguration)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &PostgresStore{pool: pool, dimensions: dimensions}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS kb_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS kb_chunks (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_kb_chunks_document_id ON kb_chunks(document_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	var stored string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kb_meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = s.pool.Exec(ctx,
			`INSERT INTO kb_meta (key, value) VALUES ('dimension', $1) ON CONFLICT (key) DO NOTHING`,
			strconv.Itoa(s.dimensions))
		if err != nil {
			return fmt.Errorf("failed to record dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read dimension: %w", err)
	}

	if stored != strconv.Itoa(s.dimensions) {
		return fmt.Errorf("%w: knowledge base was built with dimension %s, configured %d",
			entities.ErrConfiguration, stored, s.dimensions)
	}
	return nil
}

// Dimensions returns the configured vector length.
func (s *PostgresStore) Dimensions() int {
	return s.dimensions
}

// Store inserts chunks in one transaction. A batch for a document that is
// already stored is rejected with entities.ErrDuplicateDocument.
func (s *PostgresStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if err := checkDimensions(chunks, s.dimensions); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range documentIDs(chunks) {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM kb_chunks WHERE document_id = $1)`, id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check document %s: %w", id, err)
		}
		if exists {
			return duplicateDocument(id)
		}
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		meta, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO kb_chunks (id, document_id, chunk_index, content, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content,
			pgvector.NewVector(chunk.Embedding), string(meta),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Search orders by cosine distance, newest first on ties. pgvector returns
// NaN against a zero vector; those rows score 0 and sort last.
func (s *PostgresStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	if topK <= 0 {
		return []entities.QueryResult{}, nil
	}
	if err := checkQuery(embedding, s.dimensions); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, metadata::text,
		       CASE WHEN embedding <=> $1 = 'NaN'::float8 THEN 0
		            ELSE 1 - (embedding <=> $1) END::float8 AS score
		FROM kb_chunks
		ORDER BY embedding <=> $1 ASC, seq DESC
		LIMIT $2`,
		pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	results := make([]entities.QueryResult, 0, topK)
	for rows.Next() {
		var (
			r        entities.QueryResult
			metadata string
		)
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Index, &r.Chunk.Content, &metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &r.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for chunk %s: %w", r.Chunk.ID, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	return results, nil
}

// Stats reports chunk and document counts and content size in bytes.
func (s *PostgresStore) Stats(ctx context.Context) (entities.CorpusStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats entities.CorpusStats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)::int, COUNT(DISTINCT document_id)::int, COALESCE(SUM(octet_length(content)), 0)::bigint
		FROM kb_chunks`,
	).Scan(&stats.ChunkCount, &stats.DocumentCount, &stats.ApproxBytes)
	if err != nil {
		return entities.CorpusStats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	return stats, nil
}

// Clear truncates the chunk table.
func (s *PostgresStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.pool.Exec(ctx, `TRUNCATE kb_chunks`); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
