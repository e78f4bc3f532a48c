package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// GapAnalyzer judges whether the accumulated evidence answers the question
// and, if not, names what is still missing.
type GapAnalyzer interface {
	Analyze(ctx context.Context, question string, evidence []SourceDocument) (Reflection, error)
}

// LLMAnalyzer asks the model for a structured sufficiency verdict. The
// judgment is holistic over the whole evidence set, not per document; the
// engine treats a persistent failure here as "insufficient, no new gaps" so
// the loop ceiling still terminates the session.
type LLMAnalyzer struct {
	LLM    llms.Model
	Logger *slog.Logger
}

func NewLLMAnalyzer(model llms.Model) *LLMAnalyzer {
	return &LLMAnalyzer{LLM: model, Logger: slog.Default()}
}

func (a *LLMAnalyzer) setLogger(logger *slog.Logger) { a.Logger = logger }

const reflectionSchema = `Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "is_sufficient": {"type": "boolean", "description": "Whether the evidence collectively answers the question"},
    "knowledge_gap": {"type": "string", "description": "What is missing, empty if sufficient"},
    "follow_up_queries": {"type": "array", "items": {"type": "string"}, "description": "Queries targeting the gap, empty if sufficient"}
  },
  "required": ["is_sufficient", "knowledge_gap", "follow_up_queries"]
}`

func (a *LLMAnalyzer) Analyze(ctx context.Context, question string, evidence []SourceDocument) (Reflection, error) {
	systemPrompt := `You are a research manager.
Review the gathered evidence and decide if it collectively answers the research question with adequate support.
If not sufficient, state the knowledge gap and propose follow-up search queries that target it.`

	var input strings.Builder
	fmt.Fprintf(&input, "Research question: %s\n\nEvidence (%d sources):\n", question, len(evidence))
	for i, doc := range evidence {
		fmt.Fprintf(&input, "--- Source %d (%s) %s\n%s\n\n", i+1, doc.Origin, doc.Title, truncate(doc.Content, 1200))
	}
	if len(evidence) == 0 {
		input.WriteString("(no evidence gathered yet)\n")
	}

	var reflection Reflection
	_, err := generateWithRetry(ctx, a.LLM, a.Logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt+"\n\n# Response Format:\n"+reflectionSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input.String()),
	}, []llms.CallOption{llms.WithJSONMode()}, func(content string) error {
		reflection = Reflection{}
		if err := json.Unmarshal([]byte(content), &reflection); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		if !reflection.IsSufficient && len(reflection.FollowUpQueries) == 0 && reflection.KnowledgeGap == "" {
			return fmt.Errorf("insufficient verdict without a gap or follow-up queries")
		}
		return nil
	})
	if err != nil {
		return Reflection{}, err
	}

	a.Logger.Info("Reflection verdict", "is_sufficient", reflection.IsSufficient, "gap", reflection.KnowledgeGap)
	return reflection, nil
}

// truncate cuts s to at most n runes, keeping valid UTF-8.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
