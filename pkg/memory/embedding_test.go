package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingProvider for testing (generates deterministic embeddings)
type MockEmbeddingProvider struct {
	dimension int
}

func NewMockEmbeddingProvider(dimension int) *MockEmbeddingProvider {
	return &MockEmbeddingProvider{dimension: dimension}
}

func (p *MockEmbeddingProvider) Dimension() int {
	return p.dimension
}

func (p *MockEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	// Generate deterministic embedding based on text hash
	embedding := make([]float32, p.dimension)
	hash := 0
	for _, c := range text {
		hash = hash*31 + int(c)
	}

	for i := 0; i < p.dimension; i++ {
		embedding[i] = float32((hash+i)%100) / 100.0
	}

	return embedding, nil
}

func (p *MockEmbeddingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func TestMockEmbeddingProvider(t *testing.T) {
	provider := NewMockEmbeddingProvider(64)

	a, err := provider.GenerateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	b, err := provider.GenerateEmbedding(context.Background(), "hello")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
}

func TestOllamaProviderDefaults(t *testing.T) {
	provider := NewOllamaProvider("", "", 0)

	assert.Equal(t, DefaultDimension, provider.Dimension())
}

func TestOllamaProviderGenerateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge-m3", req.Model)
		assert.Equal(t, "hello world", req.Prompt)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{0.1, 0.2, 0.3, 0.4},
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "bge-m3", 4)

	embedding, err := provider.GenerateEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, embedding)
}

func TestOllamaProviderServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "bge-m3", 4)

	_, err := provider.GenerateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestOllamaProviderUnreachable(t *testing.T) {
	// Closed server simulates the daemon being down
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	provider := NewOllamaProvider(server.URL, "bge-m3", 4)

	_, err := provider.GenerateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestOllamaProviderGenerateEmbeddings(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": []float32{0.5, 0.5},
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "bge-m3", 2)

	embeddings, err := provider.GenerateEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, embeddings, 3)
	assert.Equal(t, 3, calls)
}

func TestOpenAIProviderDimension(t *testing.T) {
	tests := []struct {
		model     string
		dimension int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"unknown-model", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			provider := NewOpenAIProvider("sk-test", tt.model)
			assert.Equal(t, tt.dimension, provider.Dimension())
		})
	}
}
