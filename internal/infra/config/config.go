// Package config loads runtime configuration from the environment (with an
// optional .env file) and an optional YAML file. When both are present the
// YAML file wins, so a file can pin a deployment while the environment
// supplies defaults and secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Invalid combinations are fatal
// at load; nothing downstream revalidates.
type Config struct {
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	Port int    `envconfig:"PORT" default:"8000" yaml:"port"`

	ChunkSize    int     `envconfig:"CHUNK_SIZE" default:"1000" yaml:"chunkSize"`
	ChunkOverlap int     `envconfig:"CHUNK_OVERLAP" default:"200" yaml:"chunkOverlap"`
	TopK         int     `envconfig:"TOP_K_RETRIEVAL" default:"5" yaml:"topK"`
	Temperature  float32 `envconfig:"TEMPERATURE" default:"0.7" yaml:"temperature"`
	MaxTokens    int     `envconfig:"MAX_TOKENS" default:"1000" yaml:"maxTokens"`

	IndexPath string `envconfig:"INDEX_PATH" default:"data/index.db" yaml:"indexPath"`

	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY" yaml:"geminiApiKey"`
	GeminiModel      string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash" yaml:"geminiModel"`
	GeminiEmbedModel string `envconfig:"GEMINI_EMBED_MODEL" default:"text-embedding-004" yaml:"geminiEmbedModel"`

	OllamaBaseURL    string `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434" yaml:"ollamaBaseUrl"`
	OllamaChatModel  string `envconfig:"OLLAMA_CHAT_MODEL" default:"llama3.2:3b" yaml:"ollamaChatModel"`
	OllamaEmbedModel string `envconfig:"OLLAMA_EMBED_MODEL" default:"nomic-embed-text" yaml:"ollamaEmbedModel"`
	OllamaEnabled    bool   `envconfig:"OLLAMA_ENABLED" default:"false" yaml:"ollamaEnabled"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s" yaml:"requestTimeout"`
	MaxConcurrent  int           `envconfig:"MAX_CONCURRENT" default:"32" yaml:"maxConcurrent"`
}

// Load reads the environment (after applying a .env file when one exists)
// and then overlays the YAML file at yamlPath when non-empty. A missing
// .env is fine; a named YAML file that cannot be read is an error.
func Load(yamlPath string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", yamlPath, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the struct tags cannot express.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be in [0, chunk size %d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("topK must be positive, got %d", c.TopK)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %v must be in [0, 2]", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.IndexPath == "" {
		return fmt.Errorf("index path must not be empty")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.GeminiAPIKey == "" && !c.OllamaEnabled {
		return fmt.Errorf("no provider configured: set GEMINI_API_KEY or OLLAMA_ENABLED=true")
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
