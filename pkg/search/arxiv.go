package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const arxivBaseURL = "https://export.arxiv.org/api/query"

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// ArxivProvider searches the arXiv export API. Useful when the research
// question is academic; wired alongside the general web provider.
type ArxivProvider struct {
	baseURL string
	client  *http.Client
}

// NewArxivProvider creates an arXiv search provider.
func NewArxivProvider() *ArxivProvider {
	return &ArxivProvider{
		baseURL: arxivBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *ArxivProvider) Name() string {
	return "arxiv"
}

// Search queries the arXiv API and maps feed entries to results. The PDF link
// is preferred as the result URL when present.
func (p *ArxivProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	var results []Result
	for _, entry := range feed.Entry {
		link := ""
		for _, l := range entry.Link {
			if l.Type == "application/pdf" {
				link = l.Href
				break
			}
		}
		if link == "" && len(entry.Link) > 0 {
			link = entry.Link[0].Href
		}
		if link == "" {
			continue
		}

		results = append(results, Result{
			URL:     link,
			Title:   strings.TrimSpace(entry.Title),
			Snippet: strings.TrimSpace(entry.Summary),
		})
		if len(results) == maxResults {
			break
		}
	}

	return results, nil
}
