package research

import (
	"encoding/json"
	"sync"
)

// Evidence is the session-scoped store of deduplicated source documents.
// Adds are append-only: re-adding an existing source id is a no-op, and
// first-seen order is preserved. One store belongs to exactly one session, so
// the mutex only guards the concurrent fetches within that session.
type Evidence struct {
	mu   sync.Mutex
	seen map[string]struct{}
	docs []SourceDocument
}

// NewEvidence creates an empty evidence store.
func NewEvidence() *Evidence {
	return &Evidence{
		seen: make(map[string]struct{}),
	}
}

// Add merges a document into the store. Returns true if the document was new.
func (e *Evidence) Add(doc SourceDocument) bool {
	if doc.ID == "" {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.seen[doc.ID]; ok {
		return false
	}
	e.seen[doc.ID] = struct{}{}
	e.docs = append(e.docs, doc)
	return true
}

// AddAll merges a batch and returns how many documents were new.
func (e *Evidence) AddAll(docs []SourceDocument) int {
	added := 0
	for _, doc := range docs {
		if e.Add(doc) {
			added++
		}
	}
	return added
}

// Sources returns a copy of the stored documents in first-seen order.
func (e *Evidence) Sources() []SourceDocument {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]SourceDocument, len(e.docs))
	copy(out, e.docs)
	return out
}

// Get looks a document up by source id.
func (e *Evidence) Get(id string) (SourceDocument, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.seen[id]; !ok {
		return SourceDocument{}, false
	}
	for _, doc := range e.docs {
		if doc.ID == id {
			return doc, true
		}
	}
	return SourceDocument{}, false
}

// Len reports how many documents are stored.
func (e *Evidence) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.docs)
}

// MarshalJSON serializes the store as its ordered document list.
func (e *Evidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Sources())
}

// UnmarshalJSON restores the store from an ordered document list.
func (e *Evidence) UnmarshalJSON(data []byte) error {
	var docs []SourceDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = make(map[string]struct{}, len(docs))
	e.docs = e.docs[:0]
	for _, doc := range docs {
		if _, ok := e.seen[doc.ID]; ok {
			continue
		}
		e.seen[doc.ID] = struct{}{}
		e.docs = append(e.docs, doc)
	}
	return nil
}
