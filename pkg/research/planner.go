package research

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"context"

	"github.com/tmc/langchaingo/llms"
)

// Planner turns the question (and, on later loops, the identified knowledge
// gaps) into a bounded set of search queries.
type Planner interface {
	Plan(ctx context.Context, question string, gaps []string) ([]string, error)
}

// LLMPlanner generates queries with a structured LLM call. When the model
// keeps failing or returning unusable output, it falls back to the question
// itself so the session never stalls here.
type LLMPlanner struct {
	LLM        llms.Model
	MaxQueries int
	Logger     *slog.Logger
}

func NewLLMPlanner(model llms.Model, maxQueries int) *LLMPlanner {
	if maxQueries <= 0 {
		maxQueries = 3
	}
	return &LLMPlanner{
		LLM:        model,
		MaxQueries: maxQueries,
		Logger:     slog.Default(),
	}
}

func (p *LLMPlanner) setLogger(logger *slog.Logger) { p.Logger = logger }

const plannerSchema = `Return the JSON object directly without any formatting or additional text. Make sure to answer in valid json and include all necessary properties:{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {
        "type": "string"
      },
      "description": "List of specific search queries"
    }
  },
  "required": ["queries"]
}`

func (p *LLMPlanner) Plan(ctx context.Context, question string, gaps []string) ([]string, error) {
	systemPrompt := fmt.Sprintf(`You are a research planner.
Generate up to %d specific web search queries.
On the first pass, produce diverse reformulations and sub-questions of the research question; never repeat the question verbatim.
When knowledge gaps are listed, target those gaps specifically.`, p.MaxQueries)

	var input strings.Builder
	fmt.Fprintf(&input, "Research question: %s\n", question)
	if len(gaps) > 0 {
		input.WriteString("Knowledge gaps to address:\n")
		for _, gap := range gaps {
			fmt.Fprintf(&input, "- %s\n", gap)
		}
	}

	type queryResponse struct {
		Queries []string `json:"queries"`
	}
	var queryResp queryResponse

	_, err := generateWithRetry(ctx, p.LLM, p.Logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt+"\n\n# Response Format: \n\n"+plannerSchema),
		llms.TextParts(llms.ChatMessageTypeHuman, input.String()),
	}, []llms.CallOption{llms.WithJSONMode()}, func(content string) error {
		// Reset for retry
		queryResp = queryResponse{}

		if err := json.Unmarshal([]byte(content), &queryResp); err != nil {
			return fmt.Errorf("json parse error: %w (content: %s)", err, content)
		}
		if len(dedupeQueries(queryResp.Queries, p.MaxQueries)) == 0 {
			return fmt.Errorf("empty queries list")
		}
		return nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Fallback: search the question itself rather than blocking the session.
		p.Logger.Warn("Planner failed, falling back to the original question", "error", err)
		return []string{question}, nil
	}

	queries := dedupeQueries(queryResp.Queries, p.MaxQueries)
	p.Logger.Info("Generated queries", "queries", queries)
	return queries, nil
}

// dedupeQueries drops empty and duplicate entries and enforces the bound.
func dedupeQueries(queries []string, max int) []string {
	seen := make(map[string]struct{}, len(queries))
	var out []string
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
