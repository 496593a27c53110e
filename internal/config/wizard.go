package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return &Wizard{
		reader: bufio.NewReader(os.Stdin),
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Println("=== Cortex Configuration Wizard ===")
	fmt.Println()

	cfg := DefaultConfig()
	validator := NewValidator()

	// Notes directory
	fmt.Println("Notes:")
	fmt.Print("Daily notes directory (press Enter for ~/.cortex/notes): ")
	notesDir, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if notesDir != "" {
		cfg.Notes.Dir = notesDir
	}

	fmt.Println()

	// Embedding provider
	fmt.Println("Embedding Provider:")
	fmt.Println("  ollama - local Ollama server (default)")
	fmt.Println("  openai - OpenAI embeddings API")
	for {
		fmt.Print("Provider [ollama]: ")
		provider, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if provider == "" {
			provider = "ollama"
		}

		if err := validator.ValidateEmbeddingProvider(provider); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.Embedding.Provider = provider
		break
	}

	switch cfg.Embedding.Provider {
	case "ollama":
		fmt.Print("Ollama base URL [http://localhost:11434]: ")
		baseURL, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if baseURL != "" {
			cfg.Embedding.BaseURL = baseURL
		}

		fmt.Print("Embedding model [bge-m3]: ")
		model, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if model != "" {
			cfg.Embedding.Model = model
		}
	case "openai":
		for {
			fmt.Print("OpenAI API Key: ")
			key, err := w.readLine()
			if err != nil {
				return nil, err
			}

			if err := validator.ValidateAPIKey(key, "openai"); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}

			cfg.Embedding.APIKey = key
			break
		}

		fmt.Print("Embedding model [text-embedding-3-small]: ")
		model, err := w.readLine()
		if err != nil {
			return nil, err
		}
		if model == "" {
			model = "text-embedding-3-small"
		}
		cfg.Embedding.Model = model
		cfg.Embedding.Dimension = 1536
	}

	// Dimension
	for {
		fmt.Printf("Embedding dimension [%d]: ", cfg.Embedding.Dimension)
		raw, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if raw == "" {
			break
		}

		dim, err := strconv.Atoi(raw)
		if err != nil {
			fmt.Println("Error: dimension must be a number")
			continue
		}

		if err := validator.ValidateDimension(dim); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.Embedding.Dimension = dim
		break
	}

	fmt.Println()

	// Summarizer provider
	fmt.Println("Summarizer Provider:")
	fmt.Println("  anthropic - Claude models (default)")
	fmt.Println("  openai    - GPT models")
	for {
		fmt.Print("Provider [anthropic]: ")
		provider, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if provider == "" {
			provider = "anthropic"
		}

		if err := validator.ValidateSummarizerProvider(provider); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.Summarizer.Provider = provider
		break
	}

	if cfg.Summarizer.Provider == "openai" {
		cfg.Summarizer.Model = "gpt-4-turbo"
	}

	// Summarizer API key
	keyLabel := "Anthropic"
	if cfg.Summarizer.Provider == "openai" {
		keyLabel = "OpenAI"
	}
	for {
		fmt.Printf("%s API Key: ", keyLabel)
		key, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if err := validator.ValidateAPIKey(key, cfg.Summarizer.Provider); err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		cfg.Summarizer.APIKey = key
		break
	}

	// Summarizer model
	fmt.Printf("Summarizer model [%s]: ", cfg.Summarizer.Model)
	model, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if model != "" {
		cfg.Summarizer.Model = model
	}

	fmt.Println()

	// Log Level
	fmt.Println("Logging:")
	fmt.Print("Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Printf("Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Println()
	fmt.Println("Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
