package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/harun/cortex/pkg/memory"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// OpenAI summarizes days through the chat completions API.
type OpenAI struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewOpenAI creates the OpenAI backed summarizer.
func NewOpenAI(cfg Config, logger zerolog.Logger) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OpenAI{
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Summarize implements memory.Summarizer.
func (s *OpenAI) Summarize(ctx context.Context, date string, entries []memory.RawEntry) ([]memory.Candidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger := tracing.LoggerFromContext(ctx, s.logger)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(buildPrompt(date, entries)),
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.model),
		Messages: messages,
	}
	if s.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.maxTokens))
	}
	if s.temperature > 0 {
		params.Temperature = openai.Float(s.temperature)
	}

	start := time.Now()
	response, err := s.client.Chat.Completions.New(callCtx, params)
	observability.RecordSummarizer("openai", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", memory.ErrProviderUnavailable, err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", memory.ErrMalformedOutput)
	}

	candidates, rejected, err := ParseCandidates(response.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("model", s.model).
		Int("candidates", len(candidates)).
		Int("rejected", rejected).
		Int64("input_tokens", response.Usage.PromptTokens).
		Int64("output_tokens", response.Usage.CompletionTokens).
		Msg("Day summarized")

	return candidates, nil
}
