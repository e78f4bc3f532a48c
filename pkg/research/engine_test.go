package research

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

func newTestEngine(cfg Config, planner Planner, web WebResearcher, retriever DocumentRetriever, analyzer GapAnalyzer) *Engine {
	return NewEngine(cfg, planner, web, retriever, analyzer, fakeSynth{})
}

func TestEngineStopsWhenSufficient(t *testing.T) {
	// The Eiffel Tower scenario: one loop produces a decisive source and
	// reflection declares sufficiency.
	question := "What year was the Eiffel Tower completed?"
	queries := []string{"Eiffel Tower completion year", "Eiffel Tower construction history"}

	web := &fakeWeb{docs: map[string][]SourceDocument{
		"Eiffel Tower completion year": {
			{ID: "src-1", Origin: OriginWeb, URL: "https://example.com/eiffel", Title: "Eiffel Tower", Content: "The tower was completed in 1889."},
		},
	}}
	analyzer := &fakeAnalyzer{verdicts: []*Reflection{{IsSufficient: true}}}

	engine := newTestEngine(Config{MaxLoops: 2}, &fakePlanner{plans: [][]string{queries}}, web, nil, analyzer)

	answer, err := engine.Run(context.Background(), question)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.State.LoopCount)
	assert.Equal(t, PhaseDone, engine.State.Phase)
	assert.True(t, engine.State.IsSufficient)
	assert.Contains(t, answer.Text, "1889")
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "src-1", answer.Citations[0].SourceID)
	assert.ElementsMatch(t, queries, web.seenQueries())
}

func TestEngineHonorsLoopCeiling(t *testing.T) {
	web := &fakeWeb{docs: map[string][]SourceDocument{}}
	analyzer := &fakeAnalyzer{} // never sufficient

	engine := newTestEngine(Config{MaxLoops: 3, QueriesPerLoop: 3},
		&fakePlanner{plans: [][]string{{"q1"}}}, web, nil, analyzer)

	_, err := engine.Run(context.Background(), "an unanswerable question")
	require.NoError(t, err)

	assert.Equal(t, 3, engine.State.LoopCount)
	assert.LessOrEqual(t, engine.State.LoopCount, engine.State.MaxLoops)
	assert.Equal(t, PhaseDone, engine.State.Phase)
	assert.False(t, engine.State.IsSufficient)
}

func TestEngineEmptyEvidenceStillAnswers(t *testing.T) {
	web := &fakeWeb{failAll: true}
	analyzer := &fakeAnalyzer{}

	engine := newTestEngine(Config{MaxLoops: 2}, &fakePlanner{plans: [][]string{{"q1", "q2"}}}, web, nil, analyzer)

	answer, err := engine.Run(context.Background(), "anything")
	require.NoError(t, err)

	assert.NotEmpty(t, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Equal(t, 0, engine.State.Evidence.Len())
	assert.Equal(t, PhaseDone, engine.State.Phase)
}

func TestEngineReflectionFailureTerminatesViaCeiling(t *testing.T) {
	web := &fakeWeb{docs: map[string][]SourceDocument{}}
	analyzer := &fakeAnalyzer{verdicts: []*Reflection{nil, nil}} // errors every round

	engine := newTestEngine(Config{MaxLoops: 2}, &fakePlanner{}, web, nil, analyzer)

	_, err := engine.Run(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, 2, engine.State.LoopCount)
	assert.Equal(t, PhaseDone, engine.State.Phase)
	assert.False(t, engine.State.IsSufficient)
}

func TestEngineGapsBecomeNextQueries(t *testing.T) {
	web := &fakeWeb{docs: map[string][]SourceDocument{
		"gap query": {{ID: "gap-src", Origin: OriginWeb, Content: "filler"}},
	}}
	analyzer := &fakeAnalyzer{verdicts: []*Reflection{
		{IsSufficient: false, KnowledgeGap: "missing dates", FollowUpQueries: []string{"gap query"}},
		{IsSufficient: true},
	}}

	engine := newTestEngine(Config{MaxLoops: 3, QueriesPerLoop: 3},
		&fakePlanner{plans: [][]string{{"initial query"}}}, web, nil, analyzer)

	_, err := engine.Run(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, []string{"initial query", "gap query"}, web.seenQueries())
	assert.Equal(t, []string{"missing dates"}, engine.State.KnowledgeGaps)
	assert.Equal(t, 2, engine.State.LoopCount)
}

func TestEngineBlankGapIsNotStored(t *testing.T) {
	// A verdict can carry follow-up queries without articulating a gap. The
	// empty gap must not be recorded or embedded for document retrieval.
	web := &fakeWeb{docs: map[string][]SourceDocument{}}
	retriever := &fakeRetriever{}
	analyzer := &fakeAnalyzer{verdicts: []*Reflection{
		{IsSufficient: false, KnowledgeGap: "", FollowUpQueries: []string{"follow up"}},
		{IsSufficient: true},
	}}

	engine := newTestEngine(Config{MaxLoops: 3, QueriesPerLoop: 3, UseDocuments: true},
		&fakePlanner{plans: [][]string{{"initial query"}}}, web, retriever, analyzer)

	_, err := engine.Run(context.Background(), "question")
	require.NoError(t, err)

	assert.Empty(t, engine.State.KnowledgeGaps)
	assert.Equal(t, []string{"initial query", "follow up"}, retriever.seenQueries())
	assert.Equal(t, 2, engine.State.LoopCount)
}

func TestEngineSetLoggerReachesCollaborators(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	planner := NewLLMPlanner(&fakeModel{}, 3)
	web := NewWebExecutor(&fakeProvider{}, &fakeFetcher{}, 3, 3)
	retriever := NewIndexRetriever(&unitEmbedder{}, vectorstore.NewMemoryStore(), 3)
	analyzer := NewLLMAnalyzer(&fakeModel{})
	synth := NewLLMSynthesizer(&fakeModel{})

	engine := NewEngine(Config{MaxLoops: 1}, planner, web, retriever, analyzer, synth)
	engine.SetLogger(logger)

	assert.Same(t, logger, engine.Logger)
	assert.Same(t, logger, planner.Logger)
	assert.Same(t, logger, web.Logger)
	assert.Same(t, logger, retriever.Logger)
	assert.Same(t, logger, analyzer.Logger)
	assert.Same(t, logger, synth.Logger)
}

func TestEngineRetrieverRunsWhenDocumentsEnabled(t *testing.T) {
	web := &fakeWeb{docs: map[string][]SourceDocument{}}
	retriever := &fakeRetriever{docs: []SourceDocument{
		{ID: "doc.txt#0", Origin: OriginDocument, URL: "doc.txt", Content: "chunk text"},
	}}
	analyzer := &fakeAnalyzer{verdicts: []*Reflection{{IsSufficient: true}}}

	engine := newTestEngine(Config{MaxLoops: 2, UseDocuments: true},
		&fakePlanner{plans: [][]string{{"q1"}}}, web, retriever, analyzer)

	answer, err := engine.Run(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, 1, retriever.callCount())
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "doc.txt#0", answer.Citations[0].SourceID)
}

func TestEngineRetrieverSkippedWhenDocumentsDisabled(t *testing.T) {
	retriever := &fakeRetriever{}
	analyzer := &fakeAnalyzer{verdicts: []*Reflection{{IsSufficient: true}}}

	engine := newTestEngine(Config{MaxLoops: 1, UseDocuments: false},
		&fakePlanner{plans: [][]string{{"q1"}}}, &fakeWeb{}, retriever, analyzer)

	_, err := engine.Run(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, 0, retriever.callCount())
}

func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newTestEngine(Config{MaxLoops: 2}, &fakePlanner{}, &fakeWeb{}, nil, &fakeAnalyzer{})

	_, err := engine.Run(ctx, "question")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineEmitsProgressEvents(t *testing.T) {
	web := &fakeWeb{docs: map[string][]SourceDocument{
		"q1": {{ID: "s1", Origin: OriginWeb, Content: "text"}},
	}}
	analyzer := &fakeAnalyzer{verdicts: []*Reflection{{IsSufficient: true}}}

	engine := newTestEngine(Config{MaxLoops: 1}, &fakePlanner{plans: [][]string{{"q1"}}}, web, nil, analyzer)

	var types []string
	engine.OnEvent = func(event Event) {
		types = append(types, event.Type)
	}

	_, err := engine.Run(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []string{"queries", "evidence", "reflection", "answer"}, types)
}
