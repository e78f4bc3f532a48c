package research

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/search"
)

type fakeProvider struct {
	results []search.Result
	err     error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	return p.results, p.err
}

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failFor  map[string]bool
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[url] {
		return "", fmt.Errorf("fetch failed")
	}
	return f.pages[url], nil
}

func TestWebExecutorBuildsEvidence(t *testing.T) {
	provider := &fakeProvider{results: []search.Result{
		{URL: "https://example.com/a", Title: "A", Snippet: "snippet a"},
		{URL: "https://example.com/b", Title: "B", Snippet: "snippet b"},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/a": "full text of a",
		"https://example.com/b": "full text of b",
	}}

	executor := NewWebExecutor(provider, fetcher, 3, 3)
	docs, err := executor.Research(context.Background(), "query", 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, WebSourceID("https://example.com/a"), docs[0].ID)
	assert.Equal(t, OriginWeb, docs[0].Origin)
	assert.Equal(t, "full text of a", docs[0].Content)
	assert.Equal(t, "full text of b", docs[1].Content)
}

func TestWebExecutorKeepsSnippetOnFetchFailure(t *testing.T) {
	provider := &fakeProvider{results: []search.Result{
		{URL: "https://example.com/broken", Title: "Broken", Snippet: "the snippet"},
	}}
	fetcher := &fakeFetcher{failFor: map[string]bool{"https://example.com/broken": true}}

	executor := NewWebExecutor(provider, fetcher, 3, 3)
	docs, err := executor.Research(context.Background(), "query", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "the snippet", docs[0].Content)
	assert.Equal(t, 1, docs[0].Loop)
}

func TestWebExecutorDropsEmptyResults(t *testing.T) {
	provider := &fakeProvider{results: []search.Result{
		{URL: "https://example.com/empty", Title: "Empty", Snippet: ""},
		{URL: "https://example.com/ok", Title: "OK", Snippet: "kept"},
	}}

	executor := NewWebExecutor(provider, nil, 3, 3)
	docs, err := executor.Research(context.Background(), "query", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "https://example.com/ok", docs[0].URL)
}

func TestWebExecutorTruncatesResults(t *testing.T) {
	var results []search.Result
	for i := 0; i < 10; i++ {
		results = append(results, search.Result{
			URL:     fmt.Sprintf("https://example.com/%d", i),
			Snippet: "s",
		})
	}

	executor := NewWebExecutor(&fakeProvider{results: results}, nil, 2, 3)
	docs, err := executor.Research(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestWebExecutorBoundsFetchConcurrency(t *testing.T) {
	var results []search.Result
	pages := make(map[string]string)
	for i := 0; i < 12; i++ {
		url := fmt.Sprintf("https://example.com/%d", i)
		results = append(results, search.Result{URL: url, Snippet: "s"})
		pages[url] = "text"
	}
	fetcher := &fakeFetcher{pages: pages}

	executor := NewWebExecutor(&fakeProvider{results: results}, fetcher, 12, 3)
	docs, err := executor.Research(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 12)
	assert.LessOrEqual(t, fetcher.peak.Load(), int32(3))
}

func TestWebExecutorPropagatesSearchError(t *testing.T) {
	executor := NewWebExecutor(&fakeProvider{err: fmt.Errorf("provider down")}, nil, 3, 3)
	_, err := executor.Research(context.Background(), "query", 0)
	assert.Error(t, err)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips fragment", "https://example.com/page#section", "https://example.com/page"},
		{"strips default https port", "https://example.com:443/page", "https://example.com/page"},
		{"strips default http port", "http://example.com:80/page", "http://example.com/page"},
		{"keeps custom port", "https://example.com:8443/page", "https://example.com:8443/page"},
		{"strips trailing slash", "https://example.com/page/", "https://example.com/page"},
		{"preserves query", "https://example.com/search?q=go", "https://example.com/search?q=go"},
		{"unparsable passthrough", "   not a url  ", "not a url"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeURL(tc.in))
		})
	}
}

func TestWebSourceIDDedupesSpellings(t *testing.T) {
	assert.Equal(t,
		WebSourceID("https://Example.com/page/"),
		WebSourceID("https://example.com/page#intro"))
	assert.NotEqual(t,
		WebSourceID("https://example.com/a"),
		WebSourceID("https://example.com/b"))
	assert.Len(t, WebSourceID("https://example.com"), 64)
}
