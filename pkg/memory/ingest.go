package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Candidate outcomes recorded in metrics and the ingestion journal.
const (
	outcomeCommitted = "committed"
	outcomePending   = "pending"
	outcomeNoise     = "noise"
	outcomeDuplicate = "duplicate"
	outcomeDropped   = "dropped"
)

// DefaultDedupThreshold is the cosine similarity above which a candidate
// counts as a near-duplicate of a same-day record.
const DefaultDedupThreshold = 0.95

// DefaultEmbedTimeout bounds one embedding call during ingestion.
const DefaultEmbedTimeout = 30 * time.Second

// IngestorConfig configures the ingestion pipeline.
type IngestorConfig struct {
	Store      *Store
	Provider   EmbeddingProvider
	Summarizer Summarizer
	NotesDir   string
	Logger     zerolog.Logger

	// DedupThreshold overrides DefaultDedupThreshold when positive.
	DedupThreshold float64
	// EmbedTimeout overrides DefaultEmbedTimeout when positive.
	EmbedTimeout time.Duration
	// ProviderName labels embedding metrics.
	ProviderName string
}

// Ingestor turns one day's raw notes into committed memory records.
// It assumes single-writer discipline: at most one ingestion run against
// a given store at a time.
type Ingestor struct {
	store          *Store
	provider       EmbeddingProvider
	summarizer     Summarizer
	notesDir       string
	logger         zerolog.Logger
	dedupThreshold float64
	embedTimeout   time.Duration
	providerName   string
}

// NewIngestor creates an ingestion pipeline.
func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("embedding provider is required")
	}
	if cfg.Summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if cfg.NotesDir == "" {
		return nil, errors.New("notes directory is required")
	}

	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = DefaultDedupThreshold
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "default"
	}

	return &Ingestor{
		store:          cfg.Store,
		provider:       cfg.Provider,
		summarizer:     cfg.Summarizer,
		notesDir:       cfg.NotesDir,
		logger:         cfg.Logger,
		dedupThreshold: cfg.DedupThreshold,
		embedTimeout:   cfg.EmbedTimeout,
		providerName:   cfg.ProviderName,
	}, nil
}

// SummarizeDay ingests one calendar day's notes. Re-running on an
// unchanged day is idempotent: earlier records suppress their duplicates
// through the dedup policy. A missing or empty day file is not an error.
func (i *Ingestor) SummarizeDay(ctx context.Context, date string) (*RunReport, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	ctx = tracing.WithRunID(ctx, runID)
	ctx, span := tracing.StartSpan(
		ctx,
		"cortex.memory",
		"memory.summarize_day",
		attribute.String("date", date),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, i.logger).With().Str("date", date).Logger()

	start := time.Now()
	report := &RunReport{RunID: runID, Date: date}
	runErr := i.run(ctx, logger, report)
	observability.RecordIngestRun(time.Since(start), runErr == nil)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		observability.RecordIngestAudit(ctx, "run_failed", runID, "failure", map[string]interface{}{
			"date":  date,
			"error": runErr.Error(),
		})
		return report, runErr
	}

	if stats, err := i.store.Stats(ctx); err == nil {
		observability.SetStoreCounts(stats.Ready, stats.Pending, stats.Vectors)
	}

	logger.Info().
		Int("entries", report.Entries).
		Int("candidates", report.Candidates).
		Int("inserted", report.Inserted).
		Int("ready", report.Ready).
		Int("pending", report.Pending).
		Int("skipped_noise", report.SkippedNoise).
		Int("skipped_duplicate", report.SkippedDuplicate).
		Int("dropped", report.Dropped).
		Dur("duration", time.Since(start)).
		Msg("Ingestion run completed")

	observability.RecordIngestAudit(ctx, "run_completed", runID, "success", map[string]interface{}{
		"date":       date,
		"entries":    report.Entries,
		"candidates": report.Candidates,
		"inserted":   report.Inserted,
		"ready":      report.Ready,
		"pending":    report.Pending,
	})

	return report, nil
}

func (i *Ingestor) run(ctx context.Context, logger zerolog.Logger, report *RunReport) error {
	entries, err := ParseDayFile(DayFilePath(i.notesDir, report.Date), report.Date)
	if err != nil {
		return err
	}
	report.Entries = len(entries)
	if len(entries) == 0 {
		logger.Info().Msg("No note entries for day, nothing to ingest")
		return nil
	}

	// Records already stored for the day suppress re-inserts when the run
	// repeats. The same set also catches intra-run duplicates.
	existing, err := i.store.RecordsByDate(ctx, report.Date)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		seen[NormalizeSummary(rec.Summary)] = true
	}

	candidates, err := i.summarizer.Summarize(ctx, report.Date, entries)
	if err != nil {
		return fmt.Errorf("summarizer failed: %w", err)
	}
	report.Candidates = len(candidates)

	for _, cand := range candidates {
		outcome, err := i.ingestCandidate(ctx, logger, report.Date, cand, seen)
		if err != nil {
			return err
		}
		switch outcome {
		case outcomeCommitted:
			report.Inserted++
			report.Ready++
		case outcomePending:
			report.Inserted++
			report.Pending++
		case outcomeNoise:
			report.SkippedNoise++
		case outcomeDuplicate:
			report.SkippedDuplicate++
		case outcomeDropped:
			report.Dropped++
		}
		observability.RecordCandidate(outcome)
	}

	return nil
}

// ingestCandidate handles one candidate and returns its outcome. Only
// store failures abort the run; a bad candidate or a failed embedding is
// handled in place.
func (i *Ingestor) ingestCandidate(ctx context.Context, logger zerolog.Logger, date string, cand Candidate, seen map[string]bool) (string, error) {
	if cand.Type == TypeNoise {
		logger.Debug().Str("summary", cand.Summary).Msg("Skipping noise candidate")
		return outcomeNoise, nil
	}

	if err := cand.Validate(); err != nil {
		logger.Warn().Err(err).Str("summary", cand.Summary).Msg("Dropping invalid candidate")
		return outcomeDropped, nil
	}

	norm := NormalizeSummary(cand.Summary)
	if seen[norm] {
		logger.Debug().Str("summary", cand.Summary).Msg("Skipping duplicate candidate")
		return outcomeDuplicate, nil
	}

	rec := &MemoryRecord{
		UUID:       uuid.New().String(),
		Date:       date,
		Type:       cand.Type,
		Summary:    cand.Summary,
		Tags:       cand.Tags,
		Importance: cand.Importance,
	}

	embedding, err := i.embed(ctx, cand.Summary)
	if err == nil && len(embedding) != i.store.Dimension() {
		err = fmt.Errorf("%w: got %d, index dimension is %d", ErrDimensionMismatch, len(embedding), i.store.Dimension())
	}
	if err != nil {
		// Persist without a vector; the reembed command retries later.
		logger.Warn().Err(err).Str("summary", cand.Summary).Msg("Embedding failed, inserting pending record")
		if insertErr := i.store.InsertRecord(ctx, rec); insertErr != nil {
			return "", insertErr
		}
		seen[norm] = true
		observability.RecordIngestAudit(ctx, "memory_pending", tracing.GetRunID(ctx), "success", map[string]interface{}{
			"uuid": rec.UUID,
			"date": date,
		})
		return outcomePending, nil
	}

	similarity, err := i.store.MaxSimilarityForDate(ctx, date, embedding)
	if err != nil {
		return "", err
	}
	if similarity >= i.dedupThreshold {
		logger.Debug().
			Float64("similarity", similarity).
			Str("summary", cand.Summary).
			Msg("Skipping near-duplicate candidate")
		return outcomeDuplicate, nil
	}

	if err := i.store.InsertRecord(ctx, rec); err != nil {
		return "", err
	}
	if err := i.store.AttachVector(ctx, rec.UUID, embedding); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return "", err
		}
		// The record stays pending and is retried by reembed.
		logger.Warn().Err(err).Str("uuid", rec.UUID).Msg("Vector attach failed, record left pending")
		seen[norm] = true
		return outcomePending, nil
	}

	seen[norm] = true
	observability.RecordIngestAudit(ctx, "memory_committed", tracing.GetRunID(ctx), "success", map[string]interface{}{
		"uuid": rec.UUID,
		"date": date,
		"type": string(rec.Type),
	})
	return outcomeCommitted, nil
}

// RetryPending embeds and attaches vectors for every pending record. A
// provider outage aborts the pass; everything else is retried next time.
func (i *Ingestor) RetryPending(ctx context.Context) (*ReembedReport, error) {
	ctx, span := tracing.StartSpan(ctx, "cortex.memory", "memory.retry_pending")
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, i.logger)

	pending, err := i.store.PendingRecords(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReembedReport{Scanned: len(pending)}
	for _, rec := range pending {
		embedding, err := i.embed(ctx, rec.Summary)
		if err != nil {
			report.Failed++
			if errors.Is(err, ErrProviderUnavailable) {
				span.RecordError(err)
				span.SetStatus(codes.Error, "embedding provider unavailable")
				return report, err
			}
			logger.Warn().Err(err).Str("uuid", rec.UUID).Msg("Embedding retry failed")
			continue
		}

		if err := i.store.AttachVector(ctx, rec.UUID, embedding); err != nil {
			if errors.Is(err, ErrAlreadyEmbedded) {
				continue
			}
			report.Failed++
			logger.Warn().Err(err).Str("uuid", rec.UUID).Msg("Vector attach failed")
			continue
		}
		report.Embedded++
	}

	if stats, err := i.store.Stats(ctx); err == nil {
		observability.SetStoreCounts(stats.Ready, stats.Pending, stats.Vectors)
	}

	logger.Info().
		Int("scanned", report.Scanned).
		Int("embedded", report.Embedded).
		Int("failed", report.Failed).
		Msg("Pending records re-embedded")

	return report, nil
}

func (i *Ingestor) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, i.embedTimeout)
	defer cancel()

	start := time.Now()
	embedding, err := i.provider.GenerateEmbedding(embedCtx, text)
	observability.RecordEmbedding(i.providerName, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return embedding, nil
}
