package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/harun/cortex/pkg/memory"
	"github.com/rs/zerolog"
)

// Anthropic summarizes days through the Claude messages API.
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewAnthropic creates the Claude backed summarizer.
func NewAnthropic(cfg Config, logger zerolog.Logger) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
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

	return &Anthropic{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Summarize implements memory.Summarizer.
func (s *Anthropic) Summarize(ctx context.Context, date string, entries []memory.RawEntry) ([]memory.Candidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger := tracing.LoggerFromContext(ctx, s.logger)

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(date, entries))),
		},
	}
	reqParams.System = []anthropic.TextBlockParam{
		{Text: systemPrompt},
	}
	if s.temperature > 0 {
		reqParams.Temperature = anthropic.Float(s.temperature)
	}

	start := time.Now()
	response, err := s.client.Messages.New(callCtx, reqParams)
	observability.RecordSummarizer("anthropic", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: %v", memory.ErrProviderUnavailable, err)
	}

	content := ""
	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += b.Text
		}
	}
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", memory.ErrMalformedOutput)
	}

	candidates, rejected, err := ParseCandidates(content)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("model", s.model).
		Int("candidates", len(candidates)).
		Int("rejected", rejected).
		Int64("input_tokens", response.Usage.InputTokens).
		Int64("output_tokens", response.Usage.OutputTokens).
		Msg("Day summarized")

	return candidates, nil
}
