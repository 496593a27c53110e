package memory

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFailProvider always fails and counts how often it was reached.
type countingFailProvider struct {
	calls int
}

func (p *countingFailProvider) Dimension() int { return 4 }

func (p *countingFailProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	p.calls++
	return nil, fmt.Errorf("%w: connection refused", ErrProviderUnavailable)
}

func (p *countingFailProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	return nil, fmt.Errorf("%w: connection refused", ErrProviderUnavailable)
}

func testBreaker(inner EmbeddingProvider) *BreakerProvider {
	return NewBreakerProvider(inner, zerolog.New(os.Stdout).Level(zerolog.Disabled))
}

func TestBreakerProviderPassthrough(t *testing.T) {
	provider := testBreaker(NewMockEmbeddingProvider(4))

	assert.Equal(t, 4, provider.Dimension())

	embedding, err := provider.GenerateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, embedding, 4)

	embeddings, err := provider.GenerateEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, embeddings, 2)
}

func TestBreakerProviderPropagatesInnerError(t *testing.T) {
	inner := &countingFailProvider{}
	provider := testBreaker(inner)

	_, err := provider.GenerateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 1, inner.calls)
}

func TestBreakerProviderOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &countingFailProvider{}
	provider := testBreaker(inner)

	// Three consecutive failures trip the breaker
	for i := 0; i < 3; i++ {
		_, err := provider.GenerateEmbedding(context.Background(), "hello")
		require.Error(t, err)
	}
	require.Equal(t, 3, inner.calls)

	// Open breaker fails fast without reaching the provider
	_, err := provider.GenerateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 3, inner.calls, "open breaker must not call through")
}
