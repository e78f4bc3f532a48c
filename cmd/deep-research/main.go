package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mikeboe/deep-research/pkg/blob"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/fetch"
	"github.com/mikeboe/deep-research/pkg/rag"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/splitter"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
	"github.com/spf13/cobra"
)

var (
	topic        string
	maxLoops     int
	useDocuments bool

	blobRoot string
	bucket   string
	prefix   string
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long:  `deep-research answers a question by iterating through a plan, search, reflect loop over the web and an optional document corpus, and prints a cited answer.`,
		Run: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("topic") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)

				fmt.Print("Enter research question: ")
				input, _ := reader.ReadString('\n')
				topic = strings.TrimSpace(input)
			}
			if topic == "" {
				slog.Error("Research question cannot be empty")
				os.Exit(1)
			}
			if maxLoops > 0 {
				cfg.MaxResearchLoops = maxLoops
			}

			runResearch(cfg)
		},
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research question")
	rootCmd.Flags().IntVar(&maxLoops, "max-loops", 0, "Maximum research iterations")
	rootCmd.Flags().BoolVar(&useDocuments, "use-documents", false, "Also search the ingested document corpus")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents from a blob directory into the vector index",
		Run: func(cmd *cobra.Command, args []string) {
			runIngest(cfg)
		},
	}
	ingestCmd.Flags().StringVar(&blobRoot, "root", ".", "Blob store root directory")
	ingestCmd.Flags().StringVar(&bucket, "bucket", "", "Bucket (directory) to ingest")
	ingestCmd.Flags().StringVar(&prefix, "prefix", "", "Only ingest keys with this prefix")
	_ = ingestCmd.MarkFlagRequired("bucket")
	rootCmd.AddCommand(ingestCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func runResearch(cfg *config.Config) {
	ctx := context.Background()

	reasoningLLM, err := clients.GoogleAi(ctx, cfg.ReasoningModel, cfg.GoogleApiKey)
	if err != nil {
		slog.Error("Failed to create reasoning model client", "error", err)
		os.Exit(1)
	}
	fastLLM, err := clients.GoogleAi(ctx, cfg.FastModel, cfg.GoogleApiKey)
	if err != nil {
		slog.Error("Failed to create fast model client", "error", err)
		os.Exit(1)
	}

	var provider search.Provider
	if cfg.TavilyApiKey != "" {
		provider, err = search.NewTavilyProvider(cfg.TavilyApiKey)
		if err != nil {
			slog.Error("Failed to create search provider", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("TAVILY_API_KEY not set, falling back to arXiv search")
		provider = search.NewArxivProvider()
	}

	var ocr *fetch.OCRClient
	if cfg.MistralApiKey != "" {
		if ocr, err = fetch.NewOCRClient(cfg.MistralApiKey); err != nil {
			slog.Error("Failed to create OCR client", "error", err)
			os.Exit(1)
		}
	}
	fetcher := fetch.NewFetcher(ocr)

	// Document retrieval needs the vector index; only open it when asked for.
	var retriever research.DocumentRetriever
	if useDocuments {
		index, embedder, closeIndex := openVectorIndex(ctx, cfg)
		defer closeIndex()
		retriever = research.NewIndexRetriever(embedder, index, cfg.RetrievalTopK)
	}

	engineCfg := research.Config{
		MaxLoops:         cfg.MaxResearchLoops,
		QueriesPerLoop:   cfg.QueriesPerLoop,
		ResultsPerQuery:  cfg.ResultsPerQuery,
		FetchConcurrency: cfg.FetchConcurrency,
		RetrievalTopK:    cfg.RetrievalTopK,
		UseDocuments:     useDocuments,
	}

	engine := research.NewEngine(engineCfg,
		research.NewLLMPlanner(fastLLM, cfg.QueriesPerLoop),
		research.NewWebExecutor(provider, fetcher, cfg.ResultsPerQuery, cfg.FetchConcurrency),
		retriever,
		research.NewLLMAnalyzer(reasoningLLM),
		research.NewLLMSynthesizer(reasoningLLM),
	)

	answer, err := engine.Run(ctx, topic)
	if err != nil {
		slog.Error("Research failed", "error", err)
		os.Exit(1)
	}

	fmt.Println("\n=== Answer ===")
	fmt.Println(answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Println("\n=== Sources ===")
		for _, citation := range answer.Citations {
			if doc, ok := engine.State.Evidence.Get(citation.SourceID); ok {
				fmt.Printf("%s  %s (%s)\n", citation.Note, doc.Title, doc.URL)
			}
		}
	}
}

func runIngest(cfg *config.Config) {
	ctx := context.Background()

	store, err := blob.NewFSStore(blobRoot)
	if err != nil {
		slog.Error("Failed to open blob root", "error", err)
		os.Exit(1)
	}
	split, err := splitter.NewTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		slog.Error("Invalid chunking configuration", "error", err)
		os.Exit(1)
	}

	index, embedder, closeIndex := openVectorIndex(ctx, cfg)
	defer closeIndex()

	var pdf rag.PDFExtractor
	if cfg.MistralApiKey != "" {
		ocr, err := fetch.NewOCRClient(cfg.MistralApiKey)
		if err != nil {
			slog.Error("Failed to create OCR client", "error", err)
			os.Exit(1)
		}
		pdf = ocr
	}

	ingestor := rag.NewIngestor(store, split, embedder, index, pdf)
	report, err := ingestor.Run(ctx, bucket, prefix)
	if err != nil {
		slog.Error("Ingestion failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Ingested %d, failed %d, skipped %d\n", report.Ingested, report.Failed, report.Skipped)
	for _, doc := range report.Documents {
		if doc.Error != "" {
			fmt.Printf("  FAIL %s: %s\n", doc.Key, doc.Error)
		} else {
			fmt.Printf("  OK   %s (%d chunks)\n", doc.Key, doc.Chunks)
		}
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
}

// openVectorIndex returns the vector index plus the embedder that populates
// and queries it. With DATABASE_URL set it connects to Postgres; without one
// it falls back to an in-memory index that lives for this process only.
func openVectorIndex(ctx context.Context, cfg *config.Config) (vectorstore.Index, embeddings.Embedder, func()) {
	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey, cfg.EmbeddingDim)
	if err != nil {
		slog.Error("Failed to create embedder", "error", err)
		os.Exit(1)
	}

	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using an in-memory vector index for this run")
		return vectorstore.NewMemoryStore(), embedder, func() {}
	}

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.EnsureVectorExtension(ctx); err != nil {
		slog.Error("Failed to enable pgvector", "error", err)
		os.Exit(1)
	}
	if err := db.CreateChunksTable(ctx, cfg.CollectionName, cfg.EmbeddingDim); err != nil {
		slog.Error("Failed to create chunks table", "error", err)
		os.Exit(1)
	}

	index, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		slog.Error("Failed to create vector store", "error", err)
		os.Exit(1)
	}

	return index, embedder, db.Close
}
