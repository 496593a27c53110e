package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Result source tags: which retrieval path produced a nonzero score.
const (
	SourceSemantic = "semantic"
	SourceKeyword  = "keyword"
	SourceBoth     = "both"
)

// Retrieval defaults.
const (
	DefaultLimit          = 10
	DefaultSemanticWeight = 0.7
	DefaultScanDays       = 3
)

// SearchResult is one ranked retrieval hit. Keyword-only hits come from
// raw note entries that have no committed record yet; they carry no UUID
// and are keyed by date and entry offset instead.
type SearchResult struct {
	UUID       string     `json:"uuid,omitempty"`
	Date       string     `json:"date"`
	Offset     int        `json:"offset,omitempty"`
	Type       MemoryType `json:"type"`
	Summary    string     `json:"summary"`
	Excerpt    string     `json:"excerpt,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Importance float64    `json:"importance"`
	Semantic   float64    `json:"semantic_score"`
	Keyword    float64    `json:"keyword_score"`
	Score      float64    `json:"score"`
	Source     string     `json:"source"`
}

// RetrieveOptions configures one query.
type RetrieveOptions struct {
	Limit          int     `json:"limit"`           // top K, default 10
	SemanticWeight float64 `json:"semantic_weight"` // w in [0, 1], default 0.7
}

// RetrieverConfig configures the retrieval engine.
type RetrieverConfig struct {
	Store    *Store
	Provider EmbeddingProvider
	NotesDir string
	Logger   zerolog.Logger

	// ScanDays is how many recent day files the keyword path reads.
	// Zero selects DefaultScanDays.
	ScanDays int
	// EmbedTimeout bounds the query embedding call. Zero selects
	// DefaultEmbedTimeout.
	EmbedTimeout time.Duration
	// ProviderName labels embedding metrics.
	ProviderName string
}

// Retriever answers queries over committed records and recent raw notes.
// It is stateless; every call reads the store and the note files as they
// are at that moment.
type Retriever struct {
	store        *Store
	provider     EmbeddingProvider
	notesDir     string
	logger       zerolog.Logger
	scanDays     int
	embedTimeout time.Duration
	providerName string
}

// NewRetriever creates a retrieval engine.
func NewRetriever(cfg RetrieverConfig) (*Retriever, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("embedding provider is required")
	}
	if cfg.NotesDir == "" {
		return nil, errors.New("notes directory is required")
	}

	if cfg.ScanDays <= 0 {
		cfg.ScanDays = DefaultScanDays
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "default"
	}

	return &Retriever{
		store:        cfg.Store,
		provider:     cfg.Provider,
		notesDir:     cfg.NotesDir,
		logger:       cfg.Logger,
		scanDays:     cfg.ScanDays,
		embedTimeout: cfg.EmbedTimeout,
		providerName: cfg.ProviderName,
	}, nil
}

// Retrieve runs the hybrid query. Store and provider failures abort the
// query; an empty query returns no results.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts *RetrieveOptions) ([]SearchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"cortex.memory",
		"memory.retrieve",
		attribute.String("query", query),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, r.logger)
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return []SearchResult{}, nil
	}

	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}

	// A count mismatch between ready records, mappings and vectors means
	// the store was modified outside the commit path. Fatal by policy;
	// the store is never repaired here.
	if err := r.store.VerifyIntegrity(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordRetrieval(time.Since(start), 0, false)
		return nil, err
	}

	semantic, err := r.semanticHits(ctx, query, opts.Limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordRetrieval(time.Since(start), 0, false)
		return nil, err
	}

	keyword, err := r.keywordHits(query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordRetrieval(time.Since(start), 0, false)
		return nil, fmt.Errorf("failed to scan recent notes: %w", err)
	}

	ready, err := r.readyRecordsForDates(ctx, keyword)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordRetrieval(time.Since(start), 0, false)
		return nil, err
	}

	results := mergeResults(semantic, keyword, ready, opts.SemanticWeight)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	observability.RecordRetrieval(time.Since(start), len(results), true)

	logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Retrieval completed")

	return results, nil
}

func normalizeOptions(opts *RetrieveOptions) (*RetrieveOptions, error) {
	if opts == nil {
		return &RetrieveOptions{Limit: DefaultLimit, SemanticWeight: DefaultSemanticWeight}, nil
	}
	out := *opts
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.SemanticWeight < 0 || out.SemanticWeight > 1 {
		return nil, fmt.Errorf("%w: semantic weight %.2f outside [0, 1]", ErrValidation, out.SemanticWeight)
	}
	return &out, nil
}

// semanticHits embeds the query and asks the vector index for neighbors.
// It always fetches at least DefaultLimit candidates so merging has
// enough to work with at small K.
func (r *Retriever) semanticHits(ctx context.Context, query string, limit int) ([]SemanticHit, error) {
	embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	start := time.Now()
	embedding, err := r.provider.GenerateEmbedding(embedCtx, query)
	observability.RecordEmbedding(r.providerName, time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	fetch := limit
	if fetch < DefaultLimit {
		fetch = DefaultLimit
	}
	return r.store.FindNear(ctx, embedding, fetch)
}

type keywordHit struct {
	entry RawEntry
	score float64
}

// keywordHits scores recent raw entries by query token overlap:
// matched_terms / total_terms over the lowercased title and body.
// Entries with no overlap are discarded.
func (r *Retriever) keywordHits(query string) ([]keywordHit, error) {
	entries, err := ScanRecentDays(r.notesDir, r.scanDays, time.Now())
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var hits []keywordHit
	for _, entry := range entries {
		text := strings.ToLower(entry.Title + "\n" + entry.Body)
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, keywordHit{
			entry: entry,
			score: float64(matched) / float64(len(terms)),
		})
	}
	return hits, nil
}

// readyRecordsForDates loads the ready records for every date a keyword
// hit fell on, so raw entries merge with records the semantic pass did
// not return.
func (r *Retriever) readyRecordsForDates(ctx context.Context, hits []keywordHit) (map[string][]MemoryRecord, error) {
	ready := make(map[string][]MemoryRecord)
	seen := make(map[string]bool)

	for _, hit := range hits {
		date := hit.entry.Date
		if seen[date] {
			continue
		}
		seen[date] = true

		records, err := r.store.RecordsByDate(ctx, date)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.EmbeddingStatus == StatusReady {
				ready[date] = append(ready[date], rec)
			}
		}
	}
	return ready, nil
}

// mergeResults builds one result set keyed by memory identity. A raw
// entry that corresponds to a ready record folds into that record's
// result instead of appearing twice; the rest become keyword-only
// results with a ranking importance of zero.
func mergeResults(semantic []SemanticHit, keyword []keywordHit, ready map[string][]MemoryRecord, weight float64) []SearchResult {
	results := make([]SearchResult, 0, len(semantic)+len(keyword))
	byUUID := make(map[string]int, len(semantic))

	for _, hit := range semantic {
		rec := hit.Record
		byUUID[rec.UUID] = len(results)
		results = append(results, SearchResult{
			UUID:       rec.UUID,
			Date:       rec.Date,
			Type:       rec.Type,
			Summary:    rec.Summary,
			Tags:       rec.Tags,
			Importance: rec.Importance,
			Semantic:   hit.Similarity,
		})
	}

	for _, kw := range keyword {
		if rec, ok := matchRecord(ready[kw.entry.Date], kw.entry); ok {
			idx, merged := byUUID[rec.UUID]
			if !merged {
				idx = len(results)
				byUUID[rec.UUID] = idx
				results = append(results, SearchResult{
					UUID:       rec.UUID,
					Date:       rec.Date,
					Type:       rec.Type,
					Summary:    rec.Summary,
					Tags:       rec.Tags,
					Importance: rec.Importance,
				})
			}
			if kw.score > results[idx].Keyword {
				results[idx].Keyword = kw.score
			}
			continue
		}
		results = append(results, SearchResult{
			Date:    kw.entry.Date,
			Offset:  kw.entry.Offset,
			Type:    kw.entry.Type,
			Summary: kw.entry.Title,
			Excerpt: excerpt(kw.entry.Body),
			Keyword: kw.score,
		})
	}

	for i := range results {
		results[i].Score = weight*results[i].Semantic + (1-weight)*results[i].Keyword
		switch {
		case results[i].Semantic > 0 && results[i].Keyword > 0:
			results[i].Source = SourceBoth
		case results[i].Keyword > 0:
			results[i].Source = SourceKeyword
		default:
			results[i].Source = SourceSemantic
		}
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		if results[a].Date != results[b].Date {
			return results[a].Date > results[b].Date
		}
		if results[a].Importance != results[b].Importance {
			return results[a].Importance > results[b].Importance
		}
		if results[a].UUID != results[b].UUID {
			return results[a].UUID < results[b].UUID
		}
		return results[a].Offset < results[b].Offset
	})

	return results
}

// matchRecord finds the ready record a raw entry corresponds to: the
// record summary equals the entry title or appears in the entry body,
// after normalization.
func matchRecord(records []MemoryRecord, entry RawEntry) (MemoryRecord, bool) {
	normTitle := NormalizeSummary(entry.Title)
	normBody := NormalizeSummary(entry.Body)

	for _, rec := range records {
		normSummary := NormalizeSummary(rec.Summary)
		if normSummary == "" {
			continue
		}
		if normTitle == normSummary ||
			(normBody != "" && strings.Contains(normBody, normSummary)) {
			return rec, true
		}
	}
	return MemoryRecord{}, false
}
