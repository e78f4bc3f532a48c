package research

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Engine is the loop controller for one research session: it drives the
// Phase state machine, fans research work out per query, and joins everything
// before reflecting. One engine serves exactly one session.
type Engine struct {
	Config    Config
	State     *ResearchState
	Planner   Planner
	Web       WebResearcher
	Retriever DocumentRetriever
	Analyzer  GapAnalyzer
	Synth     Synthesizer
	Logger    *slog.Logger
	OnEvent   func(event Event)
}

// NewEngine wires an engine around the given collaborators. Retriever may be
// nil when the session does not use documents.
func NewEngine(cfg Config, planner Planner, web WebResearcher, retriever DocumentRetriever, analyzer GapAnalyzer, synth Synthesizer) *Engine {
	if cfg.MaxLoops < 1 {
		cfg.MaxLoops = 1
	}
	return &Engine{
		Config: cfg,
		State: &ResearchState{
			Phase:        PhasePlanning,
			MaxLoops:     cfg.MaxLoops,
			UseDocuments: cfg.UseDocuments,
			Evidence:     NewEvidence(),
		},
		Planner:   planner,
		Web:       web,
		Retriever: retriever,
		Analyzer:  analyzer,
		Synth:     synth,
		Logger:    slog.Default(),
	}
}

// Run executes the session to completion. The only error it returns is
// context cancellation; every capability failure is degraded into a fallback
// so the state machine always reaches PhaseDone otherwise.
func (e *Engine) Run(ctx context.Context, question string) (Answer, error) {
	st := e.State
	st.Question = question
	st.Phase = PhasePlanning
	e.Logger.Info("Starting research session", "question", question, "max_loops", st.MaxLoops, "use_documents", st.UseDocuments)

	for st.Phase != PhaseDone {
		if err := ctx.Err(); err != nil {
			return Answer{}, err
		}

		switch st.Phase {
		case PhasePlanning:
			e.plan(ctx)
		case PhaseResearching:
			e.research(ctx)
		case PhaseReflecting:
			e.reflect(ctx)
		case PhaseFinalizing:
			e.finalize(ctx)
		}
	}

	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	return Answer{Text: st.FinalAnswer, Citations: st.Citations}, nil
}

func (e *Engine) plan(ctx context.Context) {
	st := e.State

	queries, err := e.Planner.Plan(ctx, st.Question, st.KnowledgeGaps)
	if err != nil || len(queries) == 0 {
		// The planner already degrades internally; this is the second net.
		e.Logger.Warn("Planning failed, using the question as the only query", "error", err)
		queries = []string{st.Question}
	}

	st.Mu.Lock()
	st.PendingQueries = queries
	st.Phase = PhaseResearching
	st.Mu.Unlock()

	e.emit(Event{Type: "queries", Phase: PhasePlanning, Loop: st.LoopCount, Queries: queries})
}

// research runs all pending web queries and, when enabled, the document
// retrieval, concurrently. Everything joins here before reflection starts.
func (e *Engine) research(ctx context.Context) {
	st := e.State

	st.Mu.Lock()
	queries := st.PendingQueries
	st.PendingQueries = nil
	st.Mu.Unlock()

	loop := st.LoopCount
	added := 0
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, q := range queries {
		wg.Add(1)
		go func(query string) {
			defer wg.Done()

			docs, err := e.Web.Research(ctx, query, loop)
			if err != nil {
				e.Logger.Error("Web research failed", "query", query, "error", err)
				return
			}

			n := st.Evidence.AddAll(docs)
			mu.Lock()
			added += n
			mu.Unlock()
		}(q)
	}

	if st.UseDocuments && e.Retriever != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()

			docs, err := e.Retriever.Retrieve(ctx, e.retrievalQuery(queries), loop)
			if err != nil {
				e.Logger.Error("Document retrieval failed", "error", err)
				return
			}

			n := st.Evidence.AddAll(docs)
			mu.Lock()
			added += n
			mu.Unlock()
		}()
	}

	wg.Wait()

	st.Mu.Lock()
	st.Phase = PhaseReflecting
	st.Mu.Unlock()

	e.Logger.Info("Research round complete", "loop", loop, "new_evidence", added, "total_evidence", st.Evidence.Len())
	e.emit(Event{Type: "evidence", Phase: PhaseResearching, Loop: loop, NewEvidence: added})
}

// retrievalQuery picks what to embed for similarity search: the latest
// non-blank gap when one exists, the original question otherwise.
func (e *Engine) retrievalQuery(queries []string) string {
	for i := len(e.State.KnowledgeGaps) - 1; i >= 0; i-- {
		if gap := strings.TrimSpace(e.State.KnowledgeGaps[i]); gap != "" {
			return gap
		}
	}
	if len(queries) > 0 && strings.TrimSpace(queries[0]) != "" {
		return queries[0]
	}
	return e.State.Question
}

func (e *Engine) reflect(ctx context.Context) {
	st := e.State

	reflection, err := e.Analyzer.Analyze(ctx, st.Question, st.Evidence.Sources())
	if err != nil {
		// Treat as "insufficient, no new gaps": the loop ceiling terminates
		// the session instead of looping forever.
		e.Logger.Error("Reflection failed", "error", err)
		reflection = Reflection{IsSufficient: false}
	}

	st.Mu.Lock()
	st.LoopCount++
	st.IsSufficient = reflection.IsSufficient

	if reflection.IsSufficient || st.LoopCount >= st.MaxLoops {
		st.Phase = PhaseFinalizing
	} else {
		// Gaps become the next queries directly, no replanning round-trip.
		gap := strings.TrimSpace(reflection.KnowledgeGap)
		queries := dedupeQueries(reflection.FollowUpQueries, e.Config.QueriesPerLoop)
		if len(queries) == 0 && gap != "" {
			queries = []string{gap}
		}
		if len(queries) == 0 {
			queries = []string{st.Question}
		}
		// An insufficient verdict may carry follow-up queries but no
		// articulated gap; only real gaps are recorded.
		if gap != "" {
			st.KnowledgeGaps = append(st.KnowledgeGaps, gap)
		}
		st.PendingQueries = queries
		st.Phase = PhaseResearching
	}
	loop := st.LoopCount
	st.Mu.Unlock()

	e.emit(Event{Type: "reflection", Phase: PhaseReflecting, Loop: loop, IsSufficient: reflection.IsSufficient})
}

func (e *Engine) finalize(ctx context.Context) {
	st := e.State

	answer := e.Synth.Synthesize(ctx, st.Question, st.Evidence.Sources())

	st.Mu.Lock()
	st.FinalAnswer = answer.Text
	st.Citations = answer.Citations
	st.Phase = PhaseDone
	st.Mu.Unlock()

	e.Logger.Info("Research session finished", "loops", st.LoopCount, "evidence", st.Evidence.Len(), "citations", len(answer.Citations))
	e.emit(Event{Type: "answer", Phase: PhaseFinalizing, Loop: st.LoopCount, Answer: answer.Text})
}

// SetLogger points the engine and every collaborator that logs at the given
// logger, so one session's records stay together. Collaborators built
// outside this package are skipped.
func (e *Engine) SetLogger(logger *slog.Logger) {
	e.Logger = logger
	for _, collaborator := range []any{e.Planner, e.Web, e.Retriever, e.Analyzer, e.Synth} {
		if aware, ok := collaborator.(interface{ setLogger(*slog.Logger) }); ok {
			aware.setLogger(logger)
		}
	}
}

func (e *Engine) emit(event Event) {
	if e.OnEvent != nil {
		e.OnEvent(event)
	}
}

// Snapshot returns a copy of the session state safe to serialize while the
// loop is running.
func (e *Engine) Snapshot() ResearchState {
	st := e.State
	st.Mu.Lock()
	defer st.Mu.Unlock()

	snapshot := ResearchState{
		Question:       st.Question,
		Phase:          st.Phase,
		LoopCount:      st.LoopCount,
		MaxLoops:       st.MaxLoops,
		UseDocuments:   st.UseDocuments,
		PendingQueries: append([]string(nil), st.PendingQueries...),
		KnowledgeGaps:  append([]string(nil), st.KnowledgeGaps...),
		IsSufficient:   st.IsSufficient,
		Evidence:       st.Evidence,
		FinalAnswer:    st.FinalAnswer,
		Citations:      append([]Citation(nil), st.Citations...),
	}
	return snapshot
}
