package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/harun/cortex/internal/config"
	"github.com/harun/cortex/internal/logger"
	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/pkg/memory"
	"github.com/harun/cortex/pkg/summarizer"
)

// loadConfig loads and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initJournal points the ingestion journal at the data directory.
func initJournal(cfg *config.Config, log *logger.Logger) {
	path := filepath.Join(cfg.DataDir, "journal.log")
	if err := observability.InitAuditLogger(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to open ingestion journal")
	}
}

// buildLogger creates the process logger. Console output goes to stderr
// so command results on stdout stay machine-readable.
func buildLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}

// openStore opens the memory store at the configured path.
func openStore(cfg *config.Config, log *logger.Logger) (*memory.Store, error) {
	store, err := memory.NewStore(cfg.Store.Path, cfg.Embedding.Dimension, log.GetZerolog())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

// buildProvider creates the embedding provider behind a circuit breaker.
func buildProvider(cfg *config.Config, log *logger.Logger) (memory.EmbeddingProvider, error) {
	var provider memory.EmbeddingProvider

	switch cfg.Embedding.Provider {
	case "", "ollama":
		provider = memory.NewOllamaProvider(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimension)
	case "openai":
		if cfg.Embedding.APIKey == "" {
			return nil, fmt.Errorf("embedding api_key is required for the openai provider")
		}
		provider = memory.NewOpenAIProvider(cfg.Embedding.APIKey, cfg.Embedding.Model)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	return memory.NewBreakerProvider(provider, log.GetZerolog()), nil
}

// buildIngestor wires the full ingestion pipeline.
func buildIngestor(cfg *config.Config, log *logger.Logger, store *memory.Store) (*memory.Ingestor, error) {
	provider, err := buildProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Summarizer.APIKey == "" {
		return nil, fmt.Errorf("summarizer api_key is not configured (run: cortex configure)")
	}

	summ, err := summarizer.New(summarizer.Config{
		Provider:    cfg.Summarizer.Provider,
		Model:       cfg.Summarizer.Model,
		APIKey:      cfg.Summarizer.APIKey,
		MaxTokens:   cfg.Summarizer.MaxTokens,
		Temperature: cfg.Summarizer.Temperature,
		Timeout:     time.Duration(cfg.Summarizer.Timeout) * time.Second,
	}, log.GetZerolog())
	if err != nil {
		return nil, err
	}

	return memory.NewIngestor(memory.IngestorConfig{
		Store:          store,
		Provider:       provider,
		Summarizer:     summ,
		NotesDir:       cfg.Notes.Dir,
		Logger:         log.GetZerolog(),
		DedupThreshold: cfg.Ingestion.DedupThreshold,
		EmbedTimeout:   time.Duration(cfg.Embedding.Timeout) * time.Second,
		ProviderName:   cfg.Embedding.Provider,
	})
}

// buildRetriever wires the retrieval engine.
func buildRetriever(cfg *config.Config, log *logger.Logger, store *memory.Store) (*memory.Retriever, error) {
	provider, err := buildProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	return memory.NewRetriever(memory.RetrieverConfig{
		Store:        store,
		Provider:     provider,
		NotesDir:     cfg.Notes.Dir,
		Logger:       log.GetZerolog(),
		ScanDays:     cfg.Retrieval.ScanDays,
		EmbedTimeout: time.Duration(cfg.Embedding.Timeout) * time.Second,
		ProviderName: cfg.Embedding.Provider,
	})
}
