// Package fetch turns URLs into readable text: HTML pages are reduced to
// their visible text, PDFs go through the OCR capability, anything text-like
// passes through as-is.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxBodyBytes caps how much of a response we read. Pages larger than this
// are truncated, not rejected.
const maxBodyBytes = 2 << 20

var whitespaceRe = regexp.MustCompile(`[ \t]+`)
var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// Fetcher retrieves and extracts readable content per URL.
type Fetcher struct {
	client *http.Client
	ocr    *OCRClient
}

// NewFetcher creates a fetcher. ocr may be nil; PDF URLs then fail per-URL
// instead of being extracted.
func NewFetcher(ocr *OCRClient) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ocr:    ocr,
	}
}

// Fetch downloads url and returns its readable text content.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return f.fetchPDF(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "deep-research/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	body := io.LimitReader(resp.Body, maxBodyBytes)

	switch {
	case strings.Contains(contentType, "application/pdf"):
		return f.fetchPDF(ctx, url)
	case strings.Contains(contentType, "text/html"), contentType == "":
		return ExtractHTMLText(body)
	case strings.HasPrefix(contentType, "text/"), strings.Contains(contentType, "json"), strings.Contains(contentType, "xml"):
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", url, err)
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("unsupported content type %q for %s", contentType, url)
	}
}

func (f *Fetcher) fetchPDF(ctx context.Context, url string) (string, error) {
	if f.ocr == nil {
		return "", fmt.Errorf("no OCR client configured, cannot extract PDF %s", url)
	}
	return f.ocr.ExtractPDF(ctx, url)
}

// ExtractHTMLText reduces an HTML document to its visible text. Scripts,
// styles and navigation chrome are dropped; block elements become line breaks.
func ExtractHTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote, article, section, div").Each(func(_ int, sel *goquery.Selection) {
		// Only take leaf-ish text to avoid duplicating nested containers.
		if sel.Children().Filter("p, div, section, article, ul, ol, table").Length() > 0 {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	})

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		text = root.Text()
	}

	text = whitespaceRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}
