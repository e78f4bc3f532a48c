package research

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// unitEmbedder maps known texts to fixed unit vectors.
type unitEmbedder struct {
	vectors map[string][]float32
}

func (e *unitEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (e *unitEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func TestIndexRetriever(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()

	require.NoError(t, store.Upsert(ctx, "manual.txt", []vectorstore.Chunk{
		{DocumentID: "manual.txt", ChunkIndex: 0, Content: "install steps", Embedding: []float32{1, 0, 0}},
		{DocumentID: "manual.txt", ChunkIndex: 1, Content: "uninstall steps", Embedding: []float32{0, 1, 0}},
	}))

	embedder := &unitEmbedder{vectors: map[string][]float32{
		"how to install": {1, 0, 0},
	}}

	retriever := NewIndexRetriever(embedder, store, 1)
	docs, err := retriever.Retrieve(ctx, "how to install", 2)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "manual.txt#0", docs[0].ID)
	assert.Equal(t, OriginDocument, docs[0].Origin)
	assert.Equal(t, "install steps", docs[0].Content)
	assert.Equal(t, 2, docs[0].Loop)
}

func TestIndexRetrieverEmbedFailure(t *testing.T) {
	retriever := NewIndexRetriever(&unitEmbedder{}, vectorstore.NewMemoryStore(), 3)
	_, err := retriever.Retrieve(context.Background(), "unknown", 0)
	assert.Error(t, err)
}

func TestChunkSourceID(t *testing.T) {
	assert.Equal(t, "reports/q3.pdf#12", ChunkSourceID("reports/q3.pdf", 12))
}
