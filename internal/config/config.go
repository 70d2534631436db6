// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Model providers.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds all application settings.
type Config struct {
	DataDir string

	Store     StoreConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig

	OllamaBaseURL string
	OpenAI        OpenAIConfig

	HTTPAddr string
	WatchDir string

	Log LogConfig
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Backend     string // sqlite, postgres or memory
	DatabaseURL string
}

// ChunkingConfig sizes are in runes.
type ChunkingConfig struct {
	Size           int
	Overlap        int
	EmbedBatchSize int
}

// RetrievalConfig controls grounding context.
type RetrievalConfig struct {
	TopK             int
	MaxContextTokens int
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider  string // hash, ollama or openai
	Model     string
	Dimension int
}

// LLMConfig selects the generative model.
type LLMConfig struct {
	Provider string // ollama or openai
	Model    string
}

// OpenAIConfig is shared by the OpenAI embedder and LLM.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  slog.Level
	Format string // json or text
}

// Load reads envFilePath (if given and present) and then the environment.
func Load(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// a missing file is fine; the environment alone is enough
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		DataDir: getEnv("CONTRACTRAG_DATA_DIR", "./data"),
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite)),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		Chunking: ChunkingConfig{
			Size:           getEnvAsInt("CHUNK_SIZE", 1000),
			Overlap:        getEnvAsInt("CHUNK_OVERLAP", 200),
			EmbedBatchSize: getEnvAsInt("EMBED_BATCH_SIZE", 64),
		},
		Retrieval: RetrievalConfig{
			TopK:             getEnvAsInt("RETRIEVAL_TOP_K", 10),
			MaxContextTokens: getEnvAsInt("MAX_CONTEXT_TOKENS", 6000),
		},
		Embedding: EmbeddingConfig{
			Provider:  strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderHash)),
			Model:     getEnv("EMBEDDING_MODEL", ""),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 384),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderOllama)),
			Model:    getEnv("LLM_MODEL", ""),
		},
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		WatchDir: getEnv("WATCH_DIR", ""),
		Log: LogConfig{
			Level:  parseLevel(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	return cfg, nil
}

// Validate rejects settings that can never work. Errors wrap
// entities.ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string

	if c.Chunking.Size <= 0 {
		problems = append(problems, "CHUNK_SIZE must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		problems = append(problems, "CHUNK_OVERLAP must be at least 0 and less than CHUNK_SIZE")
	}
	if c.Embedding.Dimension <= 0 {
		problems = append(problems, "EMBEDDING_DIMENSION must be positive")
	}

	switch c.Store.Backend {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	switch c.Embedding.Provider {
	case ProviderHash, ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown EMBEDDING_PROVIDER %q", c.Embedding.Provider))
	}

	switch c.LLM.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", entities.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// getEnv returns the variable or the default when unset or empty.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the variable as an int, or the default when unset
// or unparsable.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
