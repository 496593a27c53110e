package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Cortex configuration
type Config struct {
	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Notes
	Notes NotesConfig `json:"notes" mapstructure:"notes"`

	// Store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Embedding provider
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Summarizer provider
	Summarizer SummarizerConfig `json:"summarizer" mapstructure:"summarizer"`

	// Ingestion
	Ingestion IngestionConfig `json:"ingestion" mapstructure:"ingestion"`

	// Retrieval
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`

	// Watch daemon
	Watch WatchConfig `json:"watch" mapstructure:"watch"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// NotesConfig holds the daily notes location
type NotesConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// StoreConfig holds the memory store location
type StoreConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider  string `json:"provider" mapstructure:"provider"` // ollama, openai
	Model     string `json:"model" mapstructure:"model"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Timeout   int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// SummarizerConfig holds summarizer provider configuration
type SummarizerConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	Model       string  `json:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	Timeout     int     `json:"timeout" mapstructure:"timeout"` // seconds
}

// IngestionConfig holds ingestion tunables
type IngestionConfig struct {
	DedupThreshold float64 `json:"dedup_threshold" mapstructure:"dedup_threshold"`
}

// RetrievalConfig holds retrieval tunables
type RetrievalConfig struct {
	Limit          int     `json:"limit" mapstructure:"limit"`
	SemanticWeight float64 `json:"semantic_weight" mapstructure:"semantic_weight"`
	ScanDays       int     `json:"scan_days" mapstructure:"scan_days"`
}

// WatchConfig holds watch daemon configuration
type WatchConfig struct {
	Cron        string `json:"cron" mapstructure:"cron"`
	Timezone    string `json:"timezone" mapstructure:"timezone"`
	MetricsAddr string `json:"metrics_addr" mapstructure:"metrics_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		DataDir: "",
		Notes: NotesConfig{
			Dir: "",
		},
		Store: StoreConfig{
			Path: "",
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "bge-m3",
			Dimension: 1024,
			BaseURL:   "http://localhost:11434",
			Timeout:   30,
		},
		Summarizer: SummarizerConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4",
			MaxTokens:   4096,
			Temperature: 0.2,
			Timeout:     120,
		},
		Ingestion: IngestionConfig{
			DedupThreshold: 0.95,
		},
		Retrieval: RetrievalConfig{
			Limit:          10,
			SemanticWeight: 0.7,
			ScanDays:       3,
		},
		Watch: WatchConfig{
			Cron:        "30 23 * * *",
			Timezone:    "",
			MetricsAddr: "",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate embedding provider
	if c.Embedding.Provider != "ollama" && c.Embedding.Provider != "openai" {
		return fmt.Errorf("invalid embedding provider %s (must be: ollama, openai)", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding api_key is required when provider is openai")
	}
	if c.Embedding.Timeout <= 0 {
		return fmt.Errorf("embedding timeout must be positive, got %d", c.Embedding.Timeout)
	}

	// Validate summarizer provider
	if c.Summarizer.Provider != "anthropic" && c.Summarizer.Provider != "openai" {
		return fmt.Errorf("invalid summarizer provider %s (must be: anthropic, openai)", c.Summarizer.Provider)
	}
	if c.Summarizer.MaxTokens <= 0 {
		return fmt.Errorf("summarizer max_tokens must be positive, got %d", c.Summarizer.MaxTokens)
	}
	if c.Summarizer.Temperature < 0 || c.Summarizer.Temperature > 1 {
		return fmt.Errorf("summarizer temperature must be between 0 and 1, got %g", c.Summarizer.Temperature)
	}
	if c.Summarizer.Timeout <= 0 {
		return fmt.Errorf("summarizer timeout must be positive, got %d", c.Summarizer.Timeout)
	}

	// Validate ingestion tunables
	if c.Ingestion.DedupThreshold <= 0 || c.Ingestion.DedupThreshold > 1 {
		return fmt.Errorf("ingestion dedup_threshold must be in (0, 1], got %g", c.Ingestion.DedupThreshold)
	}

	// Validate retrieval tunables
	if c.Retrieval.Limit <= 0 {
		return fmt.Errorf("retrieval limit must be positive, got %d", c.Retrieval.Limit)
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.SemanticWeight > 1 {
		return fmt.Errorf("retrieval semantic_weight must be between 0 and 1, got %g", c.Retrieval.SemanticWeight)
	}
	if c.Retrieval.ScanDays <= 0 {
		return fmt.Errorf("retrieval scan_days must be positive, got %d", c.Retrieval.ScanDays)
	}

	// Validate logging level
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %s (must be: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
