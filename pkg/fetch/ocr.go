package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const mistralOCRURL = "https://api.mistral.ai/v1/ocr"

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

// OCRClient extracts PDF text via the Mistral OCR API.
type OCRClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOCRClient creates an OCR client.
func NewOCRClient(apiKey string) (*OCRClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("MISTRAL_API_KEY is not set")
	}
	return &OCRClient{
		apiKey:  apiKey,
		baseURL: mistralOCRURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// ExtractPDF converts the PDF at url into markdown text, pages concatenated in
// order.
func (c *OCRClient) ExtractPDF(ctx context.Context, url string) (string, error) {
	url = strings.Replace(url, "http://", "https://", 1)

	reqBody := map[string]interface{}{
		"model": "mistral-ocr-latest",
		"document": map[string]string{
			"type":         "document_url",
			"document_url": url,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status: %s, body: %s", resp.Status, string(body))
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var sb strings.Builder
	for _, page := range parsed.Pages {
		sb.WriteString(page.Markdown)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
