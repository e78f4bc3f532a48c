package research

import "sync"

// Phase enumerates the loop controller's states. Transitions:
// PhasePlanning -> PhaseResearching -> PhaseReflecting -> {PhaseResearching |
// PhaseFinalizing} -> PhaseDone.
type Phase string

const (
	PhasePlanning    Phase = "planning"
	PhaseResearching Phase = "researching"
	PhaseReflecting  Phase = "reflecting"
	PhaseFinalizing  Phase = "finalizing"
	PhaseDone        Phase = "done"
)

// Origin tells which path produced a piece of evidence.
type Origin string

const (
	OriginWeb      Origin = "web"
	OriginDocument Origin = "document"
)

// SourceDocument is one piece of evidence. ID is a hash of the normalized URL
// for web evidence, or "<document_id>#<chunk_index>" for document chunks.
type SourceDocument struct {
	ID      string `json:"id"`
	Origin  Origin `json:"origin"`
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Loop    int    `json:"retrieved_at_loop"`
}

// Citation links a claim in the final answer to a piece of evidence.
type Citation struct {
	SourceID string `json:"source_id"`
	Note     string `json:"note"`
}

// Reflection is the gap analyzer's verdict for one iteration.
type Reflection struct {
	IsSufficient    bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// Answer is the synthesizer's output.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// Config holds per-engine tuning knobs.
type Config struct {
	MaxLoops         int
	QueriesPerLoop   int
	ResultsPerQuery  int
	FetchConcurrency int
	RetrievalTopK    int
	UseDocuments     bool
}

// ResearchState tracks the progress of one research session.
type ResearchState struct {
	Question       string     `json:"question"`
	Phase          Phase      `json:"phase"`
	LoopCount      int        `json:"loop_count"`
	MaxLoops       int        `json:"max_loops"`
	UseDocuments   bool       `json:"use_documents"`
	PendingQueries []string   `json:"pending_queries"`
	KnowledgeGaps  []string   `json:"knowledge_gaps"`
	IsSufficient   bool       `json:"is_sufficient"`
	Evidence       *Evidence  `json:"evidence"`
	FinalAnswer    string     `json:"final_answer,omitempty"`
	Citations      []Citation `json:"citations,omitempty"`

	Mu sync.Mutex `json:"-"` // For thread-safe snapshots while researching
}

// Event is one progress notification emitted while the loop runs.
type Event struct {
	Type         string   `json:"type"` // "phase", "queries", "evidence", "reflection", "answer"
	Phase        Phase    `json:"phase"`
	Loop         int      `json:"loop"`
	Queries      []string `json:"queries,omitempty"`
	NewEvidence  int      `json:"new_evidence,omitempty"`
	IsSufficient bool     `json:"is_sufficient,omitempty"`
	Answer       string   `json:"answer,omitempty"`
}
