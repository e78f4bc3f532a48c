package research

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvidenceDedup(t *testing.T) {
	e := NewEvidence()

	assert.True(t, e.Add(SourceDocument{ID: "a", Content: "first"}))
	assert.False(t, e.Add(SourceDocument{ID: "a", Content: "duplicate"}))
	assert.True(t, e.Add(SourceDocument{ID: "b", Content: "second"}))
	assert.False(t, e.Add(SourceDocument{ID: "", Content: "no id"}))

	docs := e.Sources()
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "first", docs[0].Content, "first-seen content wins")
	assert.Equal(t, "b", docs[1].ID)
}

func TestEvidenceConcurrentMerges(t *testing.T) {
	e := NewEvidence()

	// Many goroutines racing to add overlapping batches must still yield a
	// unique id set.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.Add(SourceDocument{ID: fmt.Sprintf("doc-%d", i), Content: "x"})
			}
		}()
	}
	wg.Wait()

	docs := e.Sources()
	assert.Len(t, docs, 100)

	seen := make(map[string]bool)
	for _, doc := range docs {
		assert.False(t, seen[doc.ID], "duplicate id %s", doc.ID)
		seen[doc.ID] = true
	}
}

func TestEvidenceGet(t *testing.T) {
	e := NewEvidence()
	e.Add(SourceDocument{ID: "a", Title: "Alpha"})

	doc, ok := e.Get("a")
	require.True(t, ok)
	assert.Equal(t, "Alpha", doc.Title)

	_, ok = e.Get("missing")
	assert.False(t, ok)
}

func TestEvidenceJSONRoundTrip(t *testing.T) {
	e := NewEvidence()
	e.Add(SourceDocument{ID: "a", Origin: OriginWeb, URL: "https://example.com", Content: "one"})
	e.Add(SourceDocument{ID: "b", Origin: OriginDocument, URL: "doc.txt", Content: "two"})

	data, err := json.Marshal(e)
	require.NoError(t, err)

	restored := NewEvidence()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, e.Sources(), restored.Sources())
	assert.False(t, restored.Add(SourceDocument{ID: "a", Content: "dupe"}))
}
