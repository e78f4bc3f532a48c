package config

import (
	"os"
	"strconv"
)

type Config struct {
	GoogleApiKey   string
	TavilyApiKey   string
	MistralApiKey  string
	DatabaseURL    string
	ReasoningModel string
	FastModel      string
	EmbeddingModel string
	EmbeddingDim   int
	Port           string

	// Research loop tuning
	MaxResearchLoops int
	QueriesPerLoop   int
	ResultsPerQuery  int
	FetchConcurrency int
	RetrievalTopK    int

	// Ingestion chunking
	ChunkSize    int
	ChunkOverlap int

	CollectionName string
}

func Load() *Config {
	return &Config{
		GoogleApiKey:   getEnv("GOOGLE_API_KEY", ""),
		TavilyApiKey:   getEnv("TAVILY_API_KEY", ""),
		MistralApiKey:  getEnv("MISTRAL_API_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ReasoningModel: getEnv("REASONING_MODEL", "gemini-3-pro-preview"),
		FastModel:      getEnv("FAST_MODEL", "gemini-3-flash-preview"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		EmbeddingDim:   getEnvAsInt("EMBEDDING_DIMENSION", 1536),
		Port:           getEnv("PORT", "3000"),

		MaxResearchLoops: getEnvAsInt("MAX_RESEARCH_LOOPS", 3),
		QueriesPerLoop:   getEnvAsInt("QUERIES_PER_LOOP", 3),
		ResultsPerQuery:  getEnvAsInt("RESULTS_PER_QUERY", 3),
		FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", 3),
		RetrievalTopK:    getEnvAsInt("RETRIEVAL_TOP_K", 5),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 100),

		CollectionName: getEnv("COLLECTION_NAME", "research_db"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
