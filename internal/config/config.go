package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Data      DataConfig      `yaml:"data,omitempty"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	LLM       LLMConfig       `yaml:"llm"`
	Ingest    IngestConfig    `yaml:"ingest,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Listen      string   `yaml:"listen,omitempty"`       // default ":8000"
	CORSOrigins []string `yaml:"cors_origins,omitempty"` // allowed origins for the web UI
}

// DataConfig holds local data directory configuration
type DataConfig struct {
	// Dir is the base directory for the metadata store, vector index
	// and clone staging area. Defaults to ~/.codemind
	Dir string `yaml:"dir,omitempty"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "gemini" | "openai"

	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"` // OpenAI-compatible endpoint override
	Model   string `yaml:"model,omitempty"`

	Dimensions int `yaml:"dimensions,omitempty"` // must match the vector index dimension

	// LRU cache over embedding calls
	CacheSize int           `yaml:"cache_size,omitempty"`
	CacheTTL  time.Duration `yaml:"cache_ttl,omitempty"`
}

// RerankConfig holds reranking service configuration
type RerankConfig struct {
	Endpoint string        `yaml:"endpoint"` // text-embeddings-inference style /rerank endpoint
	APIKey   string        `yaml:"api_key,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	TopK     int           `yaml:"top_k,omitempty"` // results kept after reranking
}

// LLMConfig holds generative model configuration
type LLMConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"` // default "gemini-2.5-flash"
}

// IngestConfig holds ingestion pipeline tuning
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size,omitempty"`    // sliding window size in chars
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"` // window overlap in chars
	CommitLimit  int `yaml:"commit_limit,omitempty"`  // max commits read from git history
	FlushEvery   int `yaml:"flush_every,omitempty"`   // files between buffer flushes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string `yaml:"level,omitempty"` // "debug" | "info" | "warn" | "error"
	Console bool   `yaml:"console,omitempty"`
}

// Load loads configuration from the default config file
// Default location: ~/.codemind/config.yaml
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromFile(filepath.Join(homeDir, ".codemind", "config.yaml"))
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied and
// secrets taken from the environment. Used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Data.Dir == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			c.Data.Dir = filepath.Join(homeDir, ".codemind")
		} else {
			c.Data.Dir = ".codemind"
		}
	}
	c.Data.Dir = expandPath(c.Data.Dir)

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "gemini"
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Provider {
		case "openai":
			c.Embedding.Model = "text-embedding-3-small"
		default:
			c.Embedding.Model = "gemini-embedding-001"
		}
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 4096
	}
	if c.Embedding.CacheTTL <= 0 {
		c.Embedding.CacheTTL = time.Hour
	}

	if c.Rerank.Timeout <= 0 {
		c.Rerank.Timeout = 30 * time.Second
	}
	if c.Rerank.TopK <= 0 {
		c.Rerank.TopK = 5
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.5-flash"
	}

	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 1000
	}
	if c.Ingest.ChunkOverlap <= 0 {
		c.Ingest.ChunkOverlap = 200
	}
	if c.Ingest.CommitLimit <= 0 {
		c.Ingest.CommitLimit = 50
	}
	if c.Ingest.FlushEvery <= 0 {
		c.Ingest.FlushEvery = 10
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		if c.Embedding.Provider == "gemini" && c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("RERANK_ENDPOINT"); v != "" && c.Rerank.Endpoint == "" {
		c.Rerank.Endpoint = v
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	return nil
}

// StorePath returns the metadata store location under the data dir.
func (c *Config) StorePath() string {
	return filepath.Join(c.Data.Dir, "data", "codemind.db")
}

// VectorPath returns the vector index location under the data dir.
func (c *Config) VectorPath() string {
	return filepath.Join(c.Data.Dir, "vectors")
}

// ClonePath returns the staging directory for remote clones.
func (c *Config) ClonePath() string {
	return filepath.Join(c.Data.Dir, "clones", "current")
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
