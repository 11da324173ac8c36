package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DatasetConfig locates the country advisory dataset file.
type DatasetConfig struct {
	Path string `yaml:"path"`
}

// ChunkerConfig sets the token window and overlap for splitting advisories.
type ChunkerConfig struct {
	MaxTokens     int    `yaml:"max_tokens"`
	OverlapTokens int    `yaml:"overlap_tokens"`
	Encoding      string `yaml:"encoding"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding endpoint.
// The API key is read from the environment variable named by APIKeyEnv.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// APIKey resolves the embedding API key from the environment.
func (c EmbeddingConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// PineconeConfig contains connection details for the managed index.
type PineconeConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	ControlURL  string `yaml:"control_url"`
	Index       string `yaml:"index"`
	Cloud       string `yaml:"cloud"`
	Region      string `yaml:"region"`
	Metric      string `yaml:"metric"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// APIKey resolves the Pinecone API key from the environment.
func (c PineconeConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// PgvectorConfig contains connection details for a Postgres+pgvector store.
type PgvectorConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
	Debug bool   `yaml:"debug"`
}

// ChromemConfig configures the embedded on-disk store.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend  string          `yaml:"backend"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
	Pgvector *PgvectorConfig `yaml:"pgvector,omitempty"`
	Chromem  *ChromemConfig  `yaml:"chromem,omitempty"`
}

// IndexName reports the logical index name of the active backend: the
// Pinecone index, the pgvector table or the chromem collection.
func (c StoreConfig) IndexName() string {
	switch c.Backend {
	case "pinecone":
		if c.Pinecone != nil {
			return c.Pinecone.Index
		}
	case "pgvector":
		if c.Pgvector != nil {
			return c.Pgvector.Table
		}
	case "chromem":
		if c.Chromem != nil {
			return c.Chromem.Collection
		}
	}
	return ""
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	Workers    int    `yaml:"workers"`
	LedgerPath string `yaml:"ledger_path"`
}

// QueryConfig tunes the query service.
type QueryConfig struct {
	MaxWidenRounds int `yaml:"max_widen_rounds"`
}

// AnswerConfig configures the completion model used to answer questions
// over retrieved advisories.
type AnswerConfig struct {
	BaseURL      string  `yaml:"base_url"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	Model        string  `yaml:"model"`
	TopK         int     `yaml:"top_k"`
	MinRelevance float64 `yaml:"min_relevance"`
}

// APIKey resolves the completion API key from the environment.
func (c AnswerConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Query     QueryConfig     `yaml:"query"`
	Answer    AnswerConfig    `yaml:"answer"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Dataset.Path == "" {
		cfg.Dataset.Path = "data/countries.json"
	}
	if cfg.Chunker.MaxTokens == 0 {
		cfg.Chunker.MaxTokens = 5000
	}
	if cfg.Chunker.OverlapTokens == 0 {
		cfg.Chunker.OverlapTokens = 1000
	}
	if cfg.Chunker.Encoding == "" {
		cfg.Chunker.Encoding = "cl100k_base"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-large"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 3072
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "pinecone"
	}
	if cfg.Store.Backend == "pinecone" {
		if cfg.Store.Pinecone == nil {
			cfg.Store.Pinecone = &PineconeConfig{}
		}
		pc := cfg.Store.Pinecone
		if pc.APIKeyEnv == "" {
			pc.APIKeyEnv = "PINECONE_API_KEY"
		}
		if pc.ControlURL == "" {
			pc.ControlURL = "https://api.pinecone.io"
		}
		if pc.Index == "" {
			pc.Index = "travel-advisories"
		}
		if pc.Cloud == "" {
			pc.Cloud = "aws"
		}
		if pc.Region == "" {
			pc.Region = "us-east-1"
		}
		if pc.Metric == "" {
			pc.Metric = "cosine"
		}
		if pc.TimeoutSecs == 0 {
			pc.TimeoutSecs = 30
		}
	}
	if cfg.Store.Backend == "pgvector" && cfg.Store.Pgvector != nil && cfg.Store.Pgvector.Table == "" {
		cfg.Store.Pgvector.Table = "advisory_chunks"
	}
	if cfg.Store.Backend == "chromem" && cfg.Store.Chromem != nil && cfg.Store.Chromem.Collection == "" {
		cfg.Store.Chromem.Collection = "travel-advisories"
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 1
	}
	if cfg.Query.MaxWidenRounds == 0 {
		cfg.Query.MaxWidenRounds = 5
	}
	if cfg.Answer.BaseURL == "" {
		cfg.Answer.BaseURL = cfg.Embedding.BaseURL
	}
	if cfg.Answer.APIKeyEnv == "" {
		cfg.Answer.APIKeyEnv = cfg.Embedding.APIKeyEnv
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4o-mini"
	}
	if cfg.Answer.TopK == 0 {
		cfg.Answer.TopK = 5
	}
	if cfg.Answer.MinRelevance == 0 {
		cfg.Answer.MinRelevance = 40
	}
}
