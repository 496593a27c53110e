package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateModel validates a model name
func (v *Validator) ValidateModel(model string) error {
	if model == "" {
		return fmt.Errorf("model name cannot be empty")
	}

	// Check if it's a known model
	knownModels := []string{
		"claude-opus-4",
		"claude-sonnet-4",
		"claude-haiku-4",
		"gpt-4-turbo",
		"gpt-4",
		"gpt-3.5-turbo",
	}

	for _, known := range knownModels {
		if model == known {
			return nil
		}
	}

	// Allow custom models (just warn)
	return nil
}

// ValidateEmbeddingProvider validates an embedding provider name
func (v *Validator) ValidateEmbeddingProvider(provider string) error {
	validProviders := []string{"ollama", "openai"}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid embedding provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateSummarizerProvider validates a summarizer provider name
func (v *Validator) ValidateSummarizerProvider(provider string) error {
	validProviders := []string{"anthropic", "openai"}
	for _, valid := range validProviders {
		if provider == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid summarizer provider: %s (must be one of: %s)", provider, strings.Join(validProviders, ", "))
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateDimension validates an embedding dimension
func (v *Validator) ValidateDimension(dim int) error {
	if dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	if dim > 8192 {
		return fmt.Errorf("embedding dimension too large (max 8192), got %d", dim)
	}
	return nil
}

// ValidateCronSpec validates a cron schedule expression
func (v *Validator) ValidateCronSpec(spec string) error {
	if spec == "" {
		return fmt.Errorf("cron spec cannot be empty")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Validate embedding provider
	if err := v.ValidateEmbeddingProvider(cfg.Embedding.Provider); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateDimension(cfg.Embedding.Dimension); err != nil {
		errors = append(errors, err)
	}
	if cfg.Embedding.Provider == "openai" {
		if err := v.ValidateAPIKey(cfg.Embedding.APIKey, "openai"); err != nil {
			errors = append(errors, fmt.Errorf("embedding: %w", err))
		}
	}

	// Validate summarizer provider
	if err := v.ValidateSummarizerProvider(cfg.Summarizer.Provider); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateModel(cfg.Summarizer.Model); err != nil {
		errors = append(errors, fmt.Errorf("summarizer: %w", err))
	}
	if cfg.Summarizer.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.Summarizer.APIKey, cfg.Summarizer.Provider); err != nil {
			errors = append(errors, fmt.Errorf("summarizer: %w", err))
		}
	}
	if cfg.Summarizer.Temperature != 0 {
		if err := v.ValidateTemperature(cfg.Summarizer.Temperature); err != nil {
			errors = append(errors, fmt.Errorf("summarizer: %w", err))
		}
	}
	if cfg.Summarizer.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.Summarizer.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("summarizer: %w", err))
		}
	}

	// Validate tunables
	if cfg.Ingestion.DedupThreshold <= 0 || cfg.Ingestion.DedupThreshold > 1 {
		errors = append(errors, fmt.Errorf("ingestion dedup_threshold must be in (0, 1]"))
	}
	if cfg.Retrieval.SemanticWeight < 0 || cfg.Retrieval.SemanticWeight > 1 {
		errors = append(errors, fmt.Errorf("retrieval semantic_weight must be between 0 and 1"))
	}
	if cfg.Retrieval.ScanDays <= 0 {
		errors = append(errors, fmt.Errorf("retrieval scan_days must be >= 1"))
	}

	// Validate watch schedule
	if cfg.Watch.Cron != "" {
		if err := v.ValidateCronSpec(cfg.Watch.Cron); err != nil {
			errors = append(errors, err)
		}
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
