package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSummarizer returns a fixed candidate set and counts calls.
type stubSummarizer struct {
	candidates []Candidate
	err        error
	calls      int
}

func (s *stubSummarizer) Summarize(ctx context.Context, date string, entries []RawEntry) ([]Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

// failingProvider simulates an unreachable embedding server.
type failingProvider struct {
	dimension int
}

func (p *failingProvider) Dimension() int { return p.dimension }

func (p *failingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: connection refused", ErrProviderUnavailable)
}

func (p *failingProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: connection refused", ErrProviderUnavailable)
}

// constProvider returns the same vector for every text, so any two
// candidates look like perfect near-duplicates.
type constProvider struct {
	vector []float32
}

func (p *constProvider) Dimension() int { return len(p.vector) }

func (p *constProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return p.vector, nil
}

func (p *constProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = p.vector
	}
	return out, nil
}

// vectorProvider returns preassigned vectors by exact text, so a test
// controls the geometry of every embedding it triggers.
type vectorProvider struct {
	dim     int
	vectors map[string][]float32
}

func (p *vectorProvider) Dimension() int { return p.dim }

func (p *vectorProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec, ok := p.vectors[text]
	if !ok {
		return nil, fmt.Errorf("%w: no vector assigned for %q", ErrProviderUnavailable, text)
	}
	return vec, nil
}

func (p *vectorProvider) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func writeDayFile(t *testing.T, notesDir, date, content string) {
	t.Helper()
	path := DayFilePath(notesDir, date)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const ingestDay = `## 09:15 - Fixed the deploy pipeline [task]
The staging deploy was failing on the migration step.

## 13:30 - sqlite-vec needs pysqlite3 on macOS [knowledge]
System Python on macOS ships without extension support.
`

func createTestIngestor(t *testing.T, store *Store, provider EmbeddingProvider, summ Summarizer, notesDir string) *Ingestor {
	t.Helper()

	ingestor, err := NewIngestor(IngestorConfig{
		Store:      store,
		Provider:   provider,
		Summarizer: summ,
		NotesDir:   notesDir,
		Logger:     zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	return ingestor
}

func TestNewIngestorValidation(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()

	provider := NewMockEmbeddingProvider(4)
	summ := &stubSummarizer{}

	tests := []struct {
		name   string
		mutate func(*IngestorConfig)
	}{
		{"missing store", func(c *IngestorConfig) { c.Store = nil }},
		{"missing provider", func(c *IngestorConfig) { c.Provider = nil }},
		{"missing summarizer", func(c *IngestorConfig) { c.Summarizer = nil }},
		{"missing notes dir", func(c *IngestorConfig) { c.NotesDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := IngestorConfig{Store: store, Provider: provider, Summarizer: summ, NotesDir: t.TempDir()}
			tt.mutate(&cfg)
			_, err := NewIngestor(cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewIngestorDefaults(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()

	ingestor := createTestIngestor(t, store, NewMockEmbeddingProvider(4), &stubSummarizer{}, t.TempDir())

	assert.Equal(t, DefaultDedupThreshold, ingestor.dedupThreshold)
	assert.Equal(t, DefaultEmbedTimeout, ingestor.embedTimeout)
}

func TestSummarizeDayCommits(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeTask, Summary: "Fixed the staging deploy pipeline", Tags: []string{"deploy"}, Importance: 0.8},
		{Type: TypeKnowledge, Summary: "sqlite-vec requires pysqlite3 on macOS", Importance: 0.9},
	}}
	provider := &vectorProvider{dim: 4, vectors: map[string][]float32{
		"Fixed the staging deploy pipeline":      vecA,
		"sqlite-vec requires pysqlite3 on macOS": vecB,
	}}
	ingestor := createTestIngestor(t, store, provider, summ, notesDir)

	report, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 2, report.Ready)
	assert.Zero(t, report.Pending)
	assert.NotEmpty(t, report.RunID)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMemories)
	assert.Equal(t, 2, stats.Ready)
	assert.Equal(t, 2, stats.Vectors)
	assert.Equal(t, 2, stats.Mappings)

	require.NoError(t, store.VerifyIntegrity(context.Background()))
}

func TestSummarizeDayIdempotent(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeTask, Summary: "Fixed the staging deploy pipeline", Importance: 0.8},
		{Type: TypeKnowledge, Summary: "sqlite-vec requires pysqlite3 on macOS", Importance: 0.9},
	}}
	provider := &vectorProvider{dim: 4, vectors: map[string][]float32{
		"Fixed the staging deploy pipeline":      vecA,
		"sqlite-vec requires pysqlite3 on macOS": vecB,
	}}
	ingestor := createTestIngestor(t, store, provider, summ, notesDir)

	first, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	require.Equal(t, 2, first.Inserted)

	// Same candidates again, with different casing and spacing. Normalized
	// dedup must suppress every one of them.
	summ.candidates = []Candidate{
		{Type: TypeTask, Summary: "FIXED the staging   deploy pipeline", Importance: 0.8},
		{Type: TypeKnowledge, Summary: "sqlite-vec requires pysqlite3 on macOS", Importance: 0.9},
	}

	second, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 2, second.SkippedDuplicate)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMemories)
}

func TestSummarizeDayIntraRunDuplicate(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeNote, Summary: "Weekly sync covered the Q3 roadmap", Importance: 0.5},
		{Type: TypeNote, Summary: "weekly sync covered the q3 roadmap", Importance: 0.5},
	}}
	ingestor := createTestIngestor(t, store, NewMockEmbeddingProvider(4), summ, notesDir)

	report, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.SkippedDuplicate)
}

func TestSummarizeDaySemanticDedup(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	// Different wording, identical vectors: similarity 1.0 >= threshold.
	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeKnowledge, Summary: "install the sqlite-vec extension", Importance: 0.7},
		{Type: TypeKnowledge, Summary: "set up the sqlite-vec extension", Importance: 0.7},
	}}
	ingestor := createTestIngestor(t, store, &constProvider{vector: vecA}, summ, notesDir)

	report, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Ready)
	assert.Equal(t, 1, report.SkippedDuplicate)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalMemories)
	assert.Equal(t, 1, stats.Vectors)
}

func TestSummarizeDayNoiseAndInvalid(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeNoise, Summary: "had lunch", Importance: 0.2},
		{Type: TypeTask, Summary: "", Importance: 0.5},
		{Type: TypeTask, Summary: "importance out of range", Importance: 0.05},
		{Type: TypeKnowledge, Summary: "the one valid candidate", Importance: 0.6},
	}}
	ingestor := createTestIngestor(t, store, NewMockEmbeddingProvider(4), summ, notesDir)

	report, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedNoise)
	assert.Equal(t, 2, report.Dropped)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Ready)

	records, err := store.RecordsByDate(context.Background(), "2026-02-05")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "the one valid candidate", records[0].Summary)
}

func TestSummarizeDayProviderDown(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeKnowledge, Summary: "sqlite-vec requires pysqlite3 on macOS", Importance: 0.8},
	}}
	ingestor := createTestIngestor(t, store, &failingProvider{dimension: 4}, summ, notesDir)

	report, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Pending)
	assert.Zero(t, report.Ready)

	pending, err := store.PendingRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, StatusPending, pending[0].EmbeddingStatus)
	assert.Equal(t, "sqlite-vec requires pysqlite3 on macOS", pending[0].Summary)

	// No vector, no mapping, still a consistent store
	require.NoError(t, store.VerifyIntegrity(context.Background()))
}

func TestSummarizeDayDimensionMismatch(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeKnowledge, Summary: "vector sized for another index", Importance: 0.6},
	}}
	// Provider emits 8-wide vectors into a 4-wide index
	ingestor := createTestIngestor(t, store, NewMockEmbeddingProvider(8), summ, notesDir)

	report, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pending)
	assert.Zero(t, report.Ready)

	pending, err := store.PendingRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSummarizeDaySummarizerError(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{err: fmt.Errorf("%w: model overloaded", ErrProviderUnavailable)}
	ingestor := createTestIngestor(t, store, NewMockEmbeddingProvider(4), summ, notesDir)

	_, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestSummarizeDayNoFile(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeNote, Summary: "never reached", Importance: 0.5},
	}}
	ingestor := createTestIngestor(t, store, NewMockEmbeddingProvider(4), summ, t.TempDir())

	report, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	assert.Zero(t, report.Entries)
	assert.Zero(t, report.Inserted)
	assert.Zero(t, summ.calls, "summarizer must not run for an empty day")
}

func TestSummarizeDayBadDate(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()

	ingestor := createTestIngestor(t, store, NewMockEmbeddingProvider(4), &stubSummarizer{}, t.TempDir())

	_, err := ingestor.SummarizeDay(context.Background(), "2026-2-5")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRetryPending(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeTask, Summary: "first deferred memory", Importance: 0.6},
		{Type: TypeKnowledge, Summary: "second deferred memory", Importance: 0.7},
	}}

	// First pass with the provider down leaves both records pending
	down := createTestIngestor(t, store, &failingProvider{dimension: 4}, summ, notesDir)
	report, err := down.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)
	require.Equal(t, 2, report.Pending)

	// Provider recovered: the retry pass embeds everything
	up := createTestIngestor(t, store, NewMockEmbeddingProvider(4), summ, notesDir)
	retry, err := up.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, retry.Scanned)
	assert.Equal(t, 2, retry.Embedded)
	assert.Zero(t, retry.Failed)

	pending, err := store.PendingRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Ready)
	assert.Equal(t, 2, stats.Vectors)
	require.NoError(t, store.VerifyIntegrity(context.Background()))
}

func TestRetryPendingProviderStillDown(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()
	notesDir := t.TempDir()
	writeDayFile(t, notesDir, "2026-02-05", ingestDay)

	summ := &stubSummarizer{candidates: []Candidate{
		{Type: TypeTask, Summary: "still waiting for a vector", Importance: 0.6},
	}}
	ingestor := createTestIngestor(t, store, &failingProvider{dimension: 4}, summ, notesDir)

	_, err := ingestor.SummarizeDay(context.Background(), "2026-02-05")
	require.NoError(t, err)

	report, err := ingestor.RetryPending(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Embedded)
}

func TestRetryPendingNothingToDo(t *testing.T) {
	store, cleanup := createTestStore(t, 4)
	defer cleanup()

	ingestor := createTestIngestor(t, store, NewMockEmbeddingProvider(4), &stubSummarizer{}, t.TempDir())

	report, err := ingestor.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Zero(t, report.Embedded)
}
