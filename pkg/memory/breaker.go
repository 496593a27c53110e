package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerProvider wraps an EmbeddingProvider with a circuit breaker so a
// down provider fails fast instead of stalling every candidate on the
// full request timeout. Rejected calls surface as ErrProviderUnavailable.
type BreakerProvider struct {
	inner EmbeddingProvider
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps inner. The breaker opens after three
// consecutive failures, stays open for 30 seconds and lets two probe
// requests through while half-open.
func NewBreakerProvider(inner EmbeddingProvider, logger zerolog.Logger) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return &BreakerProvider{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *BreakerProvider) Dimension() int {
	return p.inner.Dimension()
}

func (p *BreakerProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.GenerateEmbedding(ctx, text)
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return result.([]float32), nil
}

func (p *BreakerProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.GenerateEmbeddings(ctx, texts)
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return result.([][]float32), nil
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return err
}
