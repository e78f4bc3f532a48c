package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// DocumentRetriever folds vector-index chunks into the evidence store when
// the session runs with documents enabled.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, loop int) ([]SourceDocument, error)
}

// IndexRetriever embeds the query and searches the shared vector index.
type IndexRetriever struct {
	Embedder embeddings.Embedder
	Index    vectorstore.Index
	TopK     int
	Logger   *slog.Logger
}

func NewIndexRetriever(embedder embeddings.Embedder, index vectorstore.Index, topK int) *IndexRetriever {
	if topK <= 0 {
		topK = 5
	}
	return &IndexRetriever{
		Embedder: embedder,
		Index:    index,
		TopK:     topK,
		Logger:   slog.Default(),
	}
}

func (r *IndexRetriever) setLogger(logger *slog.Logger) { r.Logger = logger }

func (r *IndexRetriever) Retrieve(ctx context.Context, query string, loop int) ([]SourceDocument, error) {
	queryEmbedding, err := r.Embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := r.Index.Query(ctx, queryEmbedding, r.TopK)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	docs := make([]SourceDocument, 0, len(chunks))
	for _, chunk := range chunks {
		docs = append(docs, SourceDocument{
			ID:      ChunkSourceID(chunk.DocumentID, chunk.ChunkIndex),
			Origin:  OriginDocument,
			URL:     chunk.DocumentID,
			Title:   chunk.DocumentID,
			Content: chunk.Content,
			Loop:    loop,
		})
	}

	r.Logger.Info("Retrieved document chunks", "query", query, "count", len(docs))
	return docs, nil
}

// ChunkSourceID derives the evidence id for a document chunk.
func ChunkSourceID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s#%d", documentID, chunkIndex)
}
