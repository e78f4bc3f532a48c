package research

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// fakeModel returns scripted responses in order, then keeps returning the
// last one. A response of "" simulates a transport failure.
type fakeModel struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	if idx < 0 || m.responses[idx] == "" {
		return nil, fmt.Errorf("model unavailable")
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.responses[idx]}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakePlanner returns fixed query sets per call.
type fakePlanner struct {
	plans [][]string
	calls int
}

func (p *fakePlanner) Plan(ctx context.Context, question string, gaps []string) ([]string, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.plans) {
		return []string{question}, nil
	}
	return p.plans[idx], nil
}

// fakeWeb maps queries to evidence, or fails every call when failAll is set.
type fakeWeb struct {
	mu      sync.Mutex
	docs    map[string][]SourceDocument
	failAll bool
	queries []string
}

func (w *fakeWeb) Research(ctx context.Context, query string, loop int) ([]SourceDocument, error) {
	w.mu.Lock()
	w.queries = append(w.queries, query)
	w.mu.Unlock()

	if w.failAll {
		return nil, fmt.Errorf("search backend down")
	}
	return w.docs[query], nil
}

func (w *fakeWeb) seenQueries() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.queries...)
}

// fakeRetriever records invocations and returns fixed chunks.
type fakeRetriever struct {
	mu      sync.Mutex
	docs    []SourceDocument
	calls   int
	queries []string
}

func (r *fakeRetriever) Retrieve(ctx context.Context, query string, loop int) ([]SourceDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.queries = append(r.queries, query)
	return r.docs, nil
}

func (r *fakeRetriever) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeRetriever) seenQueries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

// fakeAnalyzer pops scripted reflections; an entry with a nil pointer means
// the analyzer errors that round.
type fakeAnalyzer struct {
	verdicts []*Reflection
	calls    int
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, question string, evidence []SourceDocument) (Reflection, error) {
	idx := a.calls
	a.calls++
	if idx >= len(a.verdicts) {
		return Reflection{IsSufficient: false, KnowledgeGap: "more detail needed", FollowUpQueries: []string{"follow up"}}, nil
	}
	if a.verdicts[idx] == nil {
		return Reflection{}, fmt.Errorf("reflection unavailable")
	}
	return *a.verdicts[idx], nil
}

// fakeSynth produces a deterministic answer citing everything it is given.
type fakeSynth struct{}

func (fakeSynth) Synthesize(ctx context.Context, question string, evidence []SourceDocument) Answer {
	if len(evidence) == 0 {
		return Answer{Text: "no evidence was gathered for: " + question, Citations: []Citation{}}
	}
	text := "answer based on " + evidence[0].Content
	citations := make([]Citation, 0, len(evidence))
	for i, doc := range evidence {
		citations = append(citations, Citation{SourceID: doc.ID, Note: fmt.Sprintf("cited as [%d]", i+1)})
	}
	return Answer{Text: text, Citations: citations}
}
