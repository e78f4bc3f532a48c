package vectorstore

import "context"

// Chunk is one embedded slice of a source document.
type Chunk struct {
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ScoredChunk is a chunk returned from a similarity search, most similar first.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Index is the vector index contract shared by the durable pgvector store and
// the in-memory store. Upsert replaces all existing chunks of the document in
// a single atomic step, so re-ingesting an unchanged document is a no-op in
// terms of index contents. Query returns up to topK chunks ranked by
// decreasing similarity; ties break by ascending document id, then chunk
// index, so results are deterministic.
type Index interface {
	Upsert(ctx context.Context, documentID string, chunks []Chunk) error
	Query(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error)
	DeleteDocument(ctx context.Context, documentID string) error
}
