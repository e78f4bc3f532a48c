package vectorstore

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVectorStore is the durable Index backed by a pgvector table. The table is
// shared process-wide: many research sessions read from it while ingestion
// runs write to it.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// isValidTableName validates that a table name contains only safe characters
// to prevent SQL injection attacks
func isValidTableName(name string) bool {
	// Only allow alphanumeric characters and underscores
	// Table names must start with a letter or underscore and be between 1-63 chars (PostgreSQL limit)
	matched, _ := regexp.MatchString(`^[a-z_][a-zA-Z0-9_]{0,62}$`, name)
	return matched
}

// NewPGVectorStore creates a new PGVector store
func NewPGVectorStore(pool *pgxpool.Pool, tableName string) (*PGVectorStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid table name: must contain only alphanumeric characters and underscores, start with a letter or underscore, and be 1-63 characters long")
	}
	return &PGVectorStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// Upsert replaces every chunk stored for documentID with the given set, in one
// transaction. The DELETE takes row locks on the document's chunks, so
// concurrent ingestion runs against the same document serialize here and the
// last writer wins; readers and writers of other documents are unaffected.
func (vs *PGVectorStore) Upsert(ctx context.Context, documentID string, chunks []Chunk) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`,
		pgx.Identifier{vs.tableName}.Sanitize())
	if _, err := tx.Exec(ctx, deleteQuery, documentID); err != nil {
		return fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (document_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4)
	`, pgx.Identifier{vs.tableName}.Sanitize())

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		embedding := pgvector.NewVector(chunk.Embedding)
		batch.Queue(insertQuery, documentID, chunk.ChunkIndex, chunk.Content, embedding)
	}

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Query performs a cosine similarity search, ranked by decreasing similarity
// with ties broken by document id and chunk index.
func (vs *PGVectorStore) Query(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	embedding := pgvector.NewVector(queryEmbedding)
	query := fmt.Sprintf(`
		SELECT document_id, chunk_index, content, 1 - (embedding <=> $1) as similarity
		FROM %s
		ORDER BY embedding <=> $1, document_id ASC, chunk_index ASC
		LIMIT $2
	`, pgx.Identifier{vs.tableName}.Sanitize())

	rows, err := vs.pool.Query(ctx, query, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var sc ScoredChunk
		if err := rows.Scan(&sc.DocumentID, &sc.ChunkIndex, &sc.Content, &sc.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

// DeleteDocument purges all chunks for a document id.
func (vs *PGVectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`,
		pgx.Identifier{vs.tableName}.Sanitize())
	if _, err := vs.pool.Exec(ctx, query, documentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}
