// Package search exposes web search capabilities behind a small provider
// interface. Each provider turns a query into an ordered list of candidate
// results; fetching the result content is the executor's job.
package search

import "context"

// Result is a single search hit.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Provider searches one backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}
