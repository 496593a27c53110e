package summarizer

import (
	"os"
	"testing"

	"github.com/harun/cortex/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func TestNewSummarizer(t *testing.T) {
	tests := []struct {
		provider string
		want     interface{}
		wantErr  bool
	}{
		{"", &Anthropic{}, false},
		{"anthropic", &Anthropic{}, false},
		{"openai", &OpenAI{}, false},
		{"mistral", nil, true},
	}

	for _, tt := range tests {
		t.Run("provider "+tt.provider, func(t *testing.T) {
			s, err := New(Config{Provider: tt.provider, APIKey: "test-key"}, testLogger())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestNewAnthropicDefaults(t *testing.T) {
	s := NewAnthropic(Config{APIKey: "test-key"}, testLogger())

	assert.Equal(t, DefaultAnthropicModel, s.model)
	assert.Equal(t, int64(DefaultMaxTokens), s.maxTokens)
	assert.Equal(t, DefaultTemperature, s.temperature)
	assert.Equal(t, DefaultTimeout, s.timeout)
}

func TestNewOpenAIDefaults(t *testing.T) {
	s := NewOpenAI(Config{APIKey: "test-key"}, testLogger())

	assert.Equal(t, DefaultOpenAIModel, s.model)
	assert.Equal(t, DefaultMaxTokens, s.maxTokens)
	assert.Equal(t, DefaultTimeout, s.timeout)
}

func TestBuildPrompt(t *testing.T) {
	entries := []memory.RawEntry{
		{Time: "09:15", Title: "Fixed the deploy pipeline [task]", Body: "Rolled back the schema change."},
		{Time: "12:30", Title: "lunch [noise]"},
	}

	prompt := buildPrompt("2026-02-05", entries)

	assert.Contains(t, prompt, "Notes for 2026-02-05:")
	assert.Contains(t, prompt, "## 09:15 - Fixed the deploy pipeline [task]")
	assert.Contains(t, prompt, "Rolled back the schema change.")
	assert.Contains(t, prompt, "## 12:30 - lunch [noise]")
}
