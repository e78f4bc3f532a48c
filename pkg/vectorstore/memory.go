package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Index used by the terminal client when no
// DATABASE_URL is configured, and by the test suites. It holds chunks per
// document and searches them with cosine similarity.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]Chunk
}

// NewMemoryStore creates an empty in-memory vector index.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]Chunk),
	}
}

// Upsert replaces all chunks of the document. The write lock makes concurrent
// upserts against the same document last-writer-wins, matching the pgvector
// store's transactional semantics.
func (s *MemoryStore) Upsert(ctx context.Context, documentID string, chunks []Chunk) error {
	if documentID == "" {
		return fmt.Errorf("document id cannot be empty")
	}
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %d of %s has no embedding", chunk.ChunkIndex, documentID)
		}
	}

	copied := make([]Chunk, len(chunks))
	copy(copied, chunks)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(copied) == 0 {
		delete(s.docs, documentID)
		return nil
	}
	s.docs[documentID] = copied
	return nil
}

// Query returns up to topK chunks ranked by decreasing cosine similarity,
// ties broken by ascending document id then chunk index.
func (s *MemoryStore) Query(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	if len(queryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding cannot be empty")
	}
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []ScoredChunk
	for docID, chunks := range s.docs {
		for _, chunk := range chunks {
			if len(chunk.Embedding) != len(queryEmbedding) {
				continue
			}
			sc := ScoredChunk{
				Chunk: Chunk{
					DocumentID: docID,
					ChunkIndex: chunk.ChunkIndex,
					Content:    chunk.Content,
				},
				Score: cosineSimilarity(queryEmbedding, chunk.Embedding),
			}
			results = append(results, sc)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteDocument removes all chunks for a document id. Unknown ids are a no-op.
func (s *MemoryStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
	return nil
}

// Chunks returns a copy of the stored chunks for a document, in index order.
// Used by ingestion idempotency checks and tests.
func (s *MemoryStore) Chunks(documentID string) []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.docs[documentID]
	if !ok {
		return nil
	}
	out := make([]Chunk, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
