package rag

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/mikeboe/deep-research/pkg/blob"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/fetch"
	"github.com/mikeboe/deep-research/pkg/splitter"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// PDFExtractor converts a PDF at a fetchable URL into plain text.
type PDFExtractor interface {
	ExtractPDF(ctx context.Context, url string) (string, error)
}

// DocumentReport is the per-document outcome of one ingestion run.
type DocumentReport struct {
	Key    string `json:"key"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

// Report summarizes one ingestion run.
type Report struct {
	Bucket    string           `json:"bucket"`
	Prefix    string           `json:"prefix,omitempty"`
	Documents []DocumentReport `json:"documents"`
	Ingested  int              `json:"ingested"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
}

// Ingestor runs the pipeline from a blob bucket into the vector index:
// list, extract, chunk, embed, upsert. One failing document never aborts the
// run; its error lands in the report and the loop moves on. Re-ingesting a
// bucket replaces each document's chunks wholesale, so runs are idempotent.
type Ingestor struct {
	Store    blob.Store
	Splitter *splitter.TextSplitter
	Embedder embeddings.Embedder
	Index    vectorstore.Index
	PDF      PDFExtractor
	Logger   *slog.Logger
}

// NewIngestor wires an ingestion pipeline. PDF may be nil; PDF objects then
// fail per-document instead of extracting.
func NewIngestor(store blob.Store, split *splitter.TextSplitter, embedder embeddings.Embedder, index vectorstore.Index, pdf PDFExtractor) *Ingestor {
	return &Ingestor{
		Store:    store,
		Splitter: split,
		Embedder: embedder,
		Index:    index,
		PDF:      pdf,
		Logger:   slog.Default(),
	}
}

// Run ingests every eligible object under bucket/prefix and reports per
// document. It returns an error only when listing fails or the context is
// cancelled.
func (in *Ingestor) Run(ctx context.Context, bucket, prefix string) (Report, error) {
	return in.run(ctx, bucket, prefix, in.Splitter)
}

// RunWithChunking is Run with a one-off chunking configuration, for callers
// that pass chunk size and overlap per request.
func (in *Ingestor) RunWithChunking(ctx context.Context, bucket, prefix string, chunkSize, chunkOverlap int) (Report, error) {
	split, err := splitter.NewTextSplitter(chunkSize, chunkOverlap)
	if err != nil {
		return Report{Bucket: bucket, Prefix: prefix}, err
	}
	return in.run(ctx, bucket, prefix, split)
}

func (in *Ingestor) run(ctx context.Context, bucket, prefix string, split *splitter.TextSplitter) (Report, error) {
	report := Report{Bucket: bucket, Prefix: prefix}

	objects, err := in.Store.List(ctx, bucket, prefix)
	if err != nil {
		return report, fmt.Errorf("failed to list documents: %w", err)
	}
	in.Logger.Info("Starting ingestion", "bucket", bucket, "prefix", prefix, "objects", len(objects))

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if !Eligible(obj) {
			report.Skipped++
			in.Logger.Debug("Skipping unsupported object", "key", obj.Key, "content_type", obj.ContentType)
			continue
		}

		chunks, err := in.ingestDocument(ctx, obj, split)
		doc := DocumentReport{Key: obj.Key, Chunks: chunks}
		if err != nil {
			doc.Error = err.Error()
			report.Failed++
			in.Logger.Error("Document ingestion failed", "key", obj.Key, "error", err)
		} else {
			report.Ingested++
			in.Logger.Info("Document ingested", "key", obj.Key, "chunks", chunks)
		}
		report.Documents = append(report.Documents, doc)
	}

	in.Logger.Info("Ingestion finished", "ingested", report.Ingested, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}

func (in *Ingestor) ingestDocument(ctx context.Context, obj blob.Object, split *splitter.TextSplitter) (int, error) {
	text, err := in.extract(ctx, obj)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("no extractable text")
	}

	parts := split.SplitText(text)
	contents := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			contents = append(contents, part)
		}
	}
	if len(contents) == 0 {
		return 0, fmt.Errorf("no extractable text")
	}

	vectors, err := in.Embedder.EmbedTexts(ctx, contents)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %s: %w", obj.Key, err)
	}
	if len(vectors) != len(contents) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(contents))
	}

	chunks := make([]vectorstore.Chunk, 0, len(contents))
	for i, content := range contents {
		chunks = append(chunks, vectorstore.Chunk{
			DocumentID: obj.Key,
			ChunkIndex: i,
			Content:    content,
			Embedding:  vectors[i],
		})
	}

	if err := in.Index.Upsert(ctx, obj.Key, chunks); err != nil {
		return 0, fmt.Errorf("failed to index %s: %w", obj.Key, err)
	}
	return len(chunks), nil
}

// extract turns one object into plain text based on its kind.
func (in *Ingestor) extract(ctx context.Context, obj blob.Object) (string, error) {
	switch kindOf(obj) {
	case kindPDF:
		if in.PDF == nil {
			return "", fmt.Errorf("pdf extraction is not configured")
		}
		if obj.URL == "" {
			return "", fmt.Errorf("pdf object has no fetchable url")
		}
		return in.PDF.ExtractPDF(ctx, obj.URL)

	case kindHTML:
		data, err := in.Store.Read(ctx, obj)
		if err != nil {
			return "", err
		}
		return fetch.ExtractHTMLText(bytes.NewReader(data))

	case kindText:
		data, err := in.Store.Read(ctx, obj)
		if err != nil {
			return "", err
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("object is not valid utf-8 text")
		}
		return string(data), nil

	default:
		return "", fmt.Errorf("unsupported object kind")
	}
}

type kind int

const (
	kindUnsupported kind = iota
	kindText
	kindHTML
	kindPDF
)

// kindOf classifies an object by extension first, content type second.
func kindOf(obj blob.Object) kind {
	switch strings.ToLower(path.Ext(obj.Key)) {
	case ".txt", ".md", ".markdown", ".csv", ".json", ".xml":
		return kindText
	case ".html", ".htm":
		return kindHTML
	case ".pdf":
		return kindPDF
	}

	ct := strings.ToLower(obj.ContentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf":
		return kindPDF
	case ct == "text/html":
		return kindHTML
	case strings.HasPrefix(ct, "text/"), ct == "application/json", ct == "application/xml":
		return kindText
	}
	return kindUnsupported
}

// Eligible reports whether the pipeline knows how to extract the object.
func Eligible(obj blob.Object) bool {
	return kindOf(obj) != kindUnsupported
}
