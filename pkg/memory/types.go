package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MemoryType classifies a memory record.
type MemoryType string

const (
	TypeTask      MemoryType = "task"
	TypeKnowledge MemoryType = "knowledge"
	TypeNote      MemoryType = "note"

	// TypeNoise is a classification outcome only. Noise candidates are
	// skipped during ingestion and never persisted.
	TypeNoise MemoryType = "noise"
)

// EmbeddingStatus tracks whether a record's vector has been committed.
type EmbeddingStatus string

const (
	StatusPending EmbeddingStatus = "pending"
	StatusReady   EmbeddingStatus = "ready"
)

// Importance bounds for persisted records.
const (
	MinImportance = 0.1
	MaxImportance = 1.0

	// DefaultImportance is used when a note entry or summarizer candidate
	// carries no importance marker.
	DefaultImportance = 0.5
)

// MemoryRecord is one persisted memory.
type MemoryRecord struct {
	UUID            string          `json:"uuid"`
	Date            string          `json:"date"` // YYYY-MM-DD
	Type            MemoryType      `json:"type"`
	Summary         string          `json:"summary"`
	Tags            []string        `json:"tags,omitempty"`
	Importance      float64         `json:"importance"`
	EmbeddingStatus EmbeddingStatus `json:"embedding_status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Candidate is one memory proposed by the summarizer for a day's notes.
// Candidates are validated and deduplicated before they become records.
type Candidate struct {
	Type         MemoryType `json:"type"`
	Summary      string     `json:"summary"`
	Tags         []string   `json:"tags,omitempty"`
	Importance   float64    `json:"importance"`
	OriginalTime string     `json:"original_time,omitempty"` // HH:MM of the source entry, when known
}

// Validate checks the fields a candidate must carry to be persisted.
// Noise candidates are filtered before validation; reaching here they fail.
func (c *Candidate) Validate() error {
	switch c.Type {
	case TypeTask, TypeKnowledge, TypeNote:
	default:
		return fmt.Errorf("%w: unknown memory type %q", ErrValidation, c.Type)
	}
	if strings.TrimSpace(c.Summary) == "" {
		return fmt.Errorf("%w: empty summary", ErrValidation)
	}
	if c.Importance < MinImportance || c.Importance > MaxImportance {
		return fmt.Errorf("%w: importance %.2f outside [%.1f, %.1f]", ErrValidation, c.Importance, MinImportance, MaxImportance)
	}
	return nil
}

// Summarizer turns one day's raw note entries into memory candidates.
// Implementations live in pkg/summarizer; the pipeline only needs this
// contract.
type Summarizer interface {
	Summarize(ctx context.Context, date string, entries []RawEntry) ([]Candidate, error)
}

// RawEntry is one parsed entry from a daily note file.
type RawEntry struct {
	Date       string     `json:"date"`
	Offset     int        `json:"offset"` // position within the day file, starting at 0
	Time       string     `json:"time"`   // HH:MM from the entry header
	Title      string     `json:"title"`
	Type       MemoryType `json:"type"`
	Body       string     `json:"body"`
	Tags       []string   `json:"tags,omitempty"`
	Importance float64    `json:"importance"`
}

// Profile holds the single-row owner identity stored alongside memories.
type Profile struct {
	UserName  string    `json:"user_name"`
	Device    string    `json:"device"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunReport summarizes one ingestion run.
type RunReport struct {
	RunID            string `json:"run_id"`
	Date             string `json:"date"`
	Entries          int    `json:"entries"`
	Candidates       int    `json:"candidates"`
	Inserted         int    `json:"inserted"`
	Ready            int    `json:"ready"`
	Pending          int    `json:"pending"`
	SkippedNoise     int    `json:"skipped_noise"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	Dropped          int    `json:"dropped"`
}

// ReembedReport summarizes one retry pass over pending records.
type ReembedReport struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// ValidateDate checks the YYYY-MM-DD form used throughout the store.
func ValidateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", ErrValidation, date)
	}
	return nil
}

// NormalizeSummary case-folds and collapses whitespace. Dedup compares
// normalized summaries, never raw text.
func NormalizeSummary(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
