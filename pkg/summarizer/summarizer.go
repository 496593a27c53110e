package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/harun/cortex/pkg/memory"
	"github.com/rs/zerolog"
)

// Defaults for summarizer calls.
const (
	DefaultAnthropicModel = "claude-sonnet-4"
	DefaultOpenAIModel    = "gpt-4-turbo"
	DefaultMaxTokens      = 4096
	DefaultTemperature    = 0.2
	DefaultTimeout        = 120 * time.Second
)

// Config selects and tunes a summarizer backend.
type Config struct {
	Provider    string // "anthropic" or "openai"
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// New builds the summarizer for cfg.Provider.
func New(cfg Config, logger zerolog.Logger) (memory.Summarizer, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return NewAnthropic(cfg, logger), nil
	case "openai":
		return NewOpenAI(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider: %s", cfg.Provider)
	}
}

const systemPrompt = `You extract long-term memories from one day of personal notes.

Return ONLY a JSON array. Each element:
{"type": "task|knowledge|note|noise", "summary": "...", "tags": ["..."], "importance": 0.1-1.0, "original_time": "HH:MM"}

Rules:
- One element per distinct fact, decision or event worth remembering.
- summary is one self-contained sentence that makes sense months later without the notes.
- type noise marks chatter not worth keeping; it will be discarded.
- importance: 1.0 critical, 0.5 ordinary, 0.1 barely worth keeping.
- Keep the entry's own tags when they fit; add better ones when they don't.`

// buildPrompt renders the day's entries back into the note format the
// model is asked to distill.
func buildPrompt(date string, entries []memory.RawEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Notes for %s:\n\n", date)
	for _, e := range entries {
		fmt.Fprintf(&b, "## %s - %s\n", e.Time, e.Title)
		if e.Body != "" {
			b.WriteString(e.Body)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
