package splitter

import (
	"fmt"
	"strings"
)

// TextSplitter cuts a document into overlapping chunks of at most chunkSize
// runes. Consecutive chunks share chunkOverlap runes so that a sentence or
// term sitting on a chunk boundary still appears whole in at least one chunk.
//
// Splitting is purely positional. Chunk indexes are therefore stable across
// runs, which the vector index relies on for its replace-on-conflict upsert.
type TextSplitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewTextSplitter validates the chunking configuration. chunkOverlap must be
// strictly smaller than chunkSize or the window would never advance.
func NewTextSplitter(chunkSize, chunkOverlap int) (*TextSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", chunkOverlap, chunkSize)
	}
	return &TextSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// SplitText splits text into chunks. Whitespace-only input yields no chunks.
func (ts *TextSplitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= ts.chunkSize {
		return []string{text}
	}

	step := ts.chunkSize - ts.chunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + ts.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}
