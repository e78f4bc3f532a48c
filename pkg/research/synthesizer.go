package research

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Synthesizer composes the final cited answer from the full evidence store.
// It never fails a session: with no evidence it states the limitation, and
// when the model keeps failing it falls back to a stitched summary.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, evidence []SourceDocument) Answer
}

// LLMSynthesizer prompts the model with a numbered source list and asks for
// [n] citation markers, then maps the markers back to source ids in order of
// first use.
type LLMSynthesizer struct {
	LLM    llms.Model
	Logger *slog.Logger
}

func NewLLMSynthesizer(model llms.Model) *LLMSynthesizer {
	return &LLMSynthesizer{LLM: model, Logger: slog.Default()}
}

func (s *LLMSynthesizer) setLogger(logger *slog.Logger) { s.Logger = logger }

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

func (s *LLMSynthesizer) Synthesize(ctx context.Context, question string, evidence []SourceDocument) Answer {
	if len(evidence) == 0 {
		return Answer{
			Text: fmt.Sprintf("I could not gather any supporting evidence for %q. "+
				"All searches came back empty or failed, so no grounded answer can be given. "+
				"Consider rephrasing the question or enabling additional sources.", question),
			Citations: []Citation{},
		}
	}

	var sources strings.Builder
	for i, doc := range evidence {
		fmt.Fprintf(&sources, "[%d] %s (%s)\n%s\n\n", i+1, doc.Title, doc.URL, truncate(doc.Content, 2000))
	}

	prompt := fmt.Sprintf(`Write a well-supported answer to the question below, using only the numbered sources.
Cite every factual claim with the matching source marker, e.g. [1] or [2][3].
Do not invent sources or markers beyond the list.

Question: %s

Sources:
%s`, question, sources.String())

	content, err := generateWithRetry(ctx, s.LLM, s.Logger, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, nil, func(text string) error {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("empty answer")
		}
		return nil
	})
	if err != nil {
		s.Logger.Error("Synthesis failed, falling back to evidence digest", "error", err)
		return fallbackAnswer(question, evidence)
	}

	return Answer{
		Text:      content,
		Citations: ExtractCitations(content, evidence),
	}
}

// ExtractCitations maps [n] markers in the answer to evidence ids, ordered by
// first use. Markers outside the source range are ignored.
func ExtractCitations(answer string, evidence []SourceDocument) []Citation {
	citations := []Citation{}
	seen := make(map[int]struct{})

	for _, match := range citationMarkerRe.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 || n > len(evidence) {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		citations = append(citations, Citation{
			SourceID: evidence[n-1].ID,
			Note:     fmt.Sprintf("cited as [%d]", n),
		})
	}

	return citations
}

// fallbackAnswer stitches the evidence into a readable digest when the model
// is unavailable, citing every source it lists.
func fallbackAnswer(question string, evidence []SourceDocument) Answer {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A generated answer for %q is unavailable, but the following sources were gathered:\n\n", question)

	citations := make([]Citation, 0, len(evidence))
	for i, doc := range evidence {
		fmt.Fprintf(&sb, "[%d] %s: %s\n", i+1, doc.Title, truncate(doc.Content, 300))
		citations = append(citations, Citation{
			SourceID: doc.ID,
			Note:     fmt.Sprintf("cited as [%d]", i+1),
		})
	}

	return Answer{Text: sb.String(), Citations: citations}
}
