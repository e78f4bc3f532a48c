package research

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/mikeboe/deep-research/pkg/search"
)

// WebResearcher runs one query against the web and returns normalized
// evidence. A failing provider or fetch never fails the iteration; the engine
// logs and moves on.
type WebResearcher interface {
	Research(ctx context.Context, query string, loop int) ([]SourceDocument, error)
}

// ContentFetcher retrieves readable text for one URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// WebExecutor searches via a provider and fetches result content with a
// bounded number of concurrent fetches per query.
type WebExecutor struct {
	Provider        search.Provider
	Fetcher         ContentFetcher
	ResultsPerQuery int
	MaxFetches      int
	Logger          *slog.Logger
}

func NewWebExecutor(provider search.Provider, fetcher ContentFetcher, resultsPerQuery, maxFetches int) *WebExecutor {
	if resultsPerQuery <= 0 {
		resultsPerQuery = 3
	}
	if maxFetches <= 0 {
		maxFetches = 3
	}
	return &WebExecutor{
		Provider:        provider,
		Fetcher:         fetcher,
		ResultsPerQuery: resultsPerQuery,
		MaxFetches:      maxFetches,
		Logger:          slog.Default(),
	}
}

func (e *WebExecutor) setLogger(logger *slog.Logger) { e.Logger = logger }

func (e *WebExecutor) Research(ctx context.Context, query string, loop int) ([]SourceDocument, error) {
	results, err := e.Provider.Search(ctx, query, e.ResultsPerQuery)
	if err != nil {
		return nil, err
	}
	if len(results) > e.ResultsPerQuery {
		results = results[:e.ResultsPerQuery]
	}

	docs := make([]SourceDocument, len(results))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.MaxFetches)

	for i, result := range results {
		wg.Add(1)
		go func(i int, result search.Result) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			content := result.Snippet
			if e.Fetcher != nil {
				fetched, err := e.Fetcher.Fetch(ctx, result.URL)
				switch {
				case err != nil:
					// Keep the snippet; a broken page is not worth losing the hit.
					e.Logger.Warn("Fetch failed, keeping snippet", "url", result.URL, "error", err)
				case strings.TrimSpace(fetched) != "":
					content = fetched
				}
			}

			if strings.TrimSpace(content) == "" {
				return
			}

			docs[i] = SourceDocument{
				ID:      WebSourceID(result.URL),
				Origin:  OriginWeb,
				URL:     result.URL,
				Title:   result.Title,
				Content: content,
				Loop:    loop,
			}
		}(i, result)
	}
	wg.Wait()

	out := make([]SourceDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.ID != "" {
			out = append(out, doc)
		}
	}
	return out, nil
}

// WebSourceID derives a stable evidence id from a URL: the hex SHA-256 of its
// normalized form. Two spellings of the same address dedupe to one source.
func WebSourceID(rawURL string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// NormalizeURL lowercases the scheme and host, strips fragments, default
// ports and trailing slashes. Unparsable input is returned trimmed.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
