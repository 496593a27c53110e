package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/harun/cortex/internal/observability"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// writeRetries bounds retries against a busy database before the write is
// reported as ErrStoreUnavailable.
const writeRetries = 3

// SemanticHit is one nearest-neighbor match from the vector index.
type SemanticHit struct {
	Record     MemoryRecord `json:"record"`
	Similarity float64      `json:"similarity"` // cosine, clipped to [0, 1]
}

// StoreStats reports table counts for the status command and metrics.
type StoreStats struct {
	TotalMemories int            `json:"total_memories"`
	Ready         int            `json:"ready"`
	Pending       int            `json:"pending"`
	Vectors       int            `json:"vectors"`
	Mappings      int            `json:"mappings"`
	ByType        map[string]int `json:"by_type"`
}

// IntegrityReport is the result of a full referential integrity check.
type IntegrityReport struct {
	Ready      int      `json:"ready"`
	Pending    int      `json:"pending"`
	Vectors    int      `json:"vectors"`
	Mappings   int      `json:"mappings"`
	Violations []string `json:"violations,omitempty"`
}

// Store persists memory records, their vectors and the handle mapping in
// a single SQLite database. A record becomes visible to semantic search
// only after its vector, mapping row and ready status commit in one
// transaction.
type Store struct {
	db        *sql.DB
	path      string
	dimension int
	logger    zerolog.Logger
}

var vecDimRe = regexp.MustCompile(`float\[(\d+)\]`)

// NewStore opens (creating if needed) the store at path with a vector
// index of the given dimension.
func NewStore(path string, dimension int, logger zerolog.Logger) (*Store, error) {
	observability.EnsureRegistered()

	if path == "" {
		return nil, errors.New("store path is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection keeps the single-writer discipline and lets the
	// vec0 virtual table see every prepared statement.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:        db,
		path:      path,
		dimension: dimension,
		logger:    logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug().Str("path", path).Int("dimension", dimension).Msg("Memory store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS personal_info (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			user_name TEXT NOT NULL DEFAULT '',
			device TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS memories (
			uuid TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			type TEXT NOT NULL,
			summary TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			importance REAL NOT NULL DEFAULT 0.5,
			embedding_status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_date ON memories(date);
		CREATE INDEX IF NOT EXISTS idx_memories_status ON memories(embedding_status);

		CREATE TABLE IF NOT EXISTS vec_memory_mapping (
			vec_rowid INTEGER PRIMARY KEY,
			memory_uuid TEXT NOT NULL UNIQUE,
			FOREIGN KEY (memory_uuid) REFERENCES memories(uuid)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// The vector index dimension is fixed at creation. Opening an existing
	// store with a different configured dimension is an error; re-embedding
	// into a fresh store is the only migration path.
	existing, found, err := s.vectorIndexDimension()
	if err != nil {
		return err
	}
	if found {
		if existing != s.dimension {
			return fmt.Errorf("vector index dimension %d does not match configured dimension %d", existing, s.dimension)
		}
		return nil
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(
			embedding float[%d]
		);
	`, s.dimension)

	if _, err := s.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

func (s *Store) vectorIndexDimension() (int, bool, error) {
	var ddl string
	err := s.db.QueryRow("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'vec_memories'").Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	m := vecDimRe.FindStringSubmatch(ddl)
	if m == nil {
		return 0, false, fmt.Errorf("cannot determine vector index dimension from %q", ddl)
	}
	d, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false, err
	}
	return d, true, nil
}

// Dimension returns the vector index dimension the store was opened with.
func (s *Store) Dimension() int {
	return s.dimension
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// InsertRecord persists one memory record. New records default to pending
// status; they join semantic search only after AttachVector.
func (s *Store) InsertRecord(ctx context.Context, rec *MemoryRecord) error {
	if rec.UUID == "" {
		return fmt.Errorf("%w: empty uuid", ErrValidation)
	}
	if err := ValidateDate(rec.Date); err != nil {
		return err
	}
	switch rec.Type {
	case TypeTask, TypeKnowledge, TypeNote:
	default:
		return fmt.Errorf("%w: unknown memory type %q", ErrValidation, rec.Type)
	}
	if strings.TrimSpace(rec.Summary) == "" {
		return fmt.Errorf("%w: empty summary", ErrValidation)
	}
	if rec.Importance < MinImportance || rec.Importance > MaxImportance {
		return fmt.Errorf("%w: importance %.2f outside [%.1f, %.1f]", ErrValidation, rec.Importance, MinImportance, MaxImportance)
	}

	if rec.EmbeddingStatus == "" {
		rec.EmbeddingStatus = StatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	if rec.Tags == nil {
		tagsJSON = []byte("[]")
	}

	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO memories (uuid, date, type, summary, tags, importance, embedding_status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.UUID, rec.Date, string(rec.Type), rec.Summary, string(tagsJSON),
			rec.Importance, string(rec.EmbeddingStatus), rec.CreatedAt.Format(time.RFC3339),
		)
		return err
	})
}

// AttachVector commits a record's embedding. The vector row, the mapping
// row and the ready status flip are written in one transaction so a
// reader never sees a partially attached record.
func (s *Store) AttachVector(ctx context.Context, memoryUUID string, embedding []float32) error {
	if len(embedding) != s.dimension {
		return fmt.Errorf("%w: got %d, index dimension is %d", ErrDimensionMismatch, len(embedding), s.dimension)
	}

	var status string
	err := s.db.QueryRowContext(ctx, "SELECT embedding_status FROM memories WHERE uuid = ?", memoryUUID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: memory %s", ErrNotFound, memoryUUID)
	}
	if err != nil {
		return s.storeErr("failed to load record status", err)
	}
	if EmbeddingStatus(status) == StatusReady {
		return fmt.Errorf("%w: memory %s", ErrAlreadyEmbedded, memoryUUID)
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, "INSERT INTO vec_memories (embedding) VALUES (?)", string(embeddingJSON))
		if err != nil {
			return err
		}
		vecRowID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vec_memory_mapping (vec_rowid, memory_uuid) VALUES (?, ?)",
			vecRowID, memoryUUID,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE memories SET embedding_status = ? WHERE uuid = ?",
			string(StatusReady), memoryUUID,
		); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// FindNear returns up to limit records ordered by cosine distance to the
// query embedding. Ties break by date descending, then importance
// descending. Only ready records are reachable through the mapping join.
func (s *Store) FindNear(ctx context.Context, embedding []float32, limit int) ([]SemanticHit, error) {
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, index dimension is %d", ErrDimensionMismatch, len(embedding), s.dimension)
	}
	if limit <= 0 {
		limit = 10
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	query := `
		SELECT m.uuid, m.date, m.type, m.summary, m.tags, m.importance, m.embedding_status, m.created_at,
			vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_memories v
		JOIN vec_memory_mapping map ON v.rowid = map.vec_rowid
		JOIN memories m ON map.memory_uuid = m.uuid
		ORDER BY distance ASC, m.date DESC, m.importance DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, string(embeddingJSON), limit)
	if err != nil {
		return nil, s.storeErr("vector search failed", err)
	}
	defer rows.Close()

	var hits []SemanticHit
	for rows.Next() {
		var rec MemoryRecord
		var tagsJSON, createdAt string
		var distance float64
		if err := rows.Scan(&rec.UUID, &rec.Date, &rec.Type, &rec.Summary, &tagsJSON,
			&rec.Importance, &rec.EmbeddingStatus, &createdAt, &distance); err != nil {
			return nil, err
		}
		rec.Tags = unmarshalTags(tagsJSON)
		rec.CreatedAt = parseStoredTime(createdAt)

		similarity := 1.0 - distance
		if similarity < 0 {
			similarity = 0
		}

		hits = append(hits, SemanticHit{Record: rec, Similarity: similarity})
	}
	return hits, rows.Err()
}

// MaxSimilarityForDate returns the highest cosine similarity between the
// embedding and any ready record of the given date. Zero when the date
// has no vectors. Used for near-duplicate detection during ingestion.
func (s *Store) MaxSimilarityForDate(ctx context.Context, date string, embedding []float32) (float64, error) {
	if len(embedding) != s.dimension {
		return 0, fmt.Errorf("%w: got %d, index dimension is %d", ErrDimensionMismatch, len(embedding), s.dimension)
	}

	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	var minDistance sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT MIN(vec_distance_cosine(v.embedding, ?))
		FROM vec_memories v
		JOIN vec_memory_mapping map ON v.rowid = map.vec_rowid
		JOIN memories m ON map.memory_uuid = m.uuid
		WHERE m.date = ?
	`, string(embeddingJSON), date).Scan(&minDistance)
	if err != nil {
		return 0, s.storeErr("similarity probe failed", err)
	}
	if !minDistance.Valid {
		return 0, nil
	}

	similarity := 1.0 - minDistance.Float64
	if similarity < 0 {
		similarity = 0
	}
	return similarity, nil
}

// RecordsByDate returns all records for one calendar day in insertion
// order.
func (s *Store) RecordsByDate(ctx context.Context, date string) ([]MemoryRecord, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, date, type, summary, tags, importance, embedding_status, created_at
		FROM memories WHERE date = ? ORDER BY created_at ASC, uuid ASC
	`, date)
	if err != nil {
		return nil, s.storeErr("failed to list records", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// PendingRecords returns records whose vector has not been attached yet,
// oldest first.
func (s *Store) PendingRecords(ctx context.Context) ([]MemoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, date, type, summary, tags, importance, embedding_status, created_at
		FROM memories WHERE embedding_status = ? ORDER BY created_at ASC, uuid ASC
	`, string(StatusPending))
	if err != nil {
		return nil, s.storeErr("failed to list pending records", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Stats returns table counts.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{ByType: make(map[string]int)}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM memories", &stats.TotalMemories},
		{"SELECT COUNT(*) FROM memories WHERE embedding_status = 'ready'", &stats.Ready},
		{"SELECT COUNT(*) FROM memories WHERE embedding_status = 'pending'", &stats.Pending},
		{"SELECT COUNT(*) FROM vec_memories", &stats.Vectors},
		{"SELECT COUNT(*) FROM vec_memory_mapping", &stats.Mappings},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, s.storeErr("failed to collect stats", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM memories GROUP BY type")
	if err != nil {
		return nil, s.storeErr("failed to collect stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		stats.ByType[typ] = n
	}
	return stats, rows.Err()
}

// VerifyIntegrity is the cheap consistency probe run before retrieval:
// ready records, mapping rows and vectors must agree in count.
func (s *Store) VerifyIntegrity(ctx context.Context) error {
	var ready, mappings, vectors int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE embedding_status = 'ready'").Scan(&ready); err != nil {
		return s.storeErr("integrity probe failed", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_memory_mapping").Scan(&mappings); err != nil {
		return s.storeErr("integrity probe failed", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vec_memories").Scan(&vectors); err != nil {
		return s.storeErr("integrity probe failed", err)
	}
	if ready != mappings || mappings != vectors {
		return fmt.Errorf("%w: ready=%d mappings=%d vectors=%d", ErrIntegrity, ready, mappings, vectors)
	}
	return nil
}

// CheckIntegrity runs the full referential check and reports every
// violation found. Violations are never repaired in place.
func (s *Store) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM memories WHERE embedding_status = 'ready'", &report.Ready},
		{"SELECT COUNT(*) FROM memories WHERE embedding_status = 'pending'", &report.Pending},
		{"SELECT COUNT(*) FROM vec_memories", &report.Vectors},
		{"SELECT COUNT(*) FROM vec_memory_mapping", &report.Mappings},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, s.storeErr("integrity check failed", err)
		}
	}

	if report.Ready != report.Mappings || report.Mappings != report.Vectors {
		report.Violations = append(report.Violations,
			fmt.Sprintf("count mismatch: ready=%d mappings=%d vectors=%d", report.Ready, report.Mappings, report.Vectors))
	}

	probes := []struct {
		query   string
		message string
	}{
		{
			`SELECT COUNT(*) FROM vec_memory_mapping map
			 LEFT JOIN memories m ON map.memory_uuid = m.uuid
			 WHERE m.uuid IS NULL`,
			"mapping rows pointing at missing records",
		},
		{
			`SELECT COUNT(*) FROM vec_memory_mapping map
			 LEFT JOIN vec_memories v ON map.vec_rowid = v.rowid
			 WHERE v.rowid IS NULL`,
			"mapping rows pointing at missing vectors",
		},
		{
			`SELECT COUNT(*) FROM memories m
			 LEFT JOIN vec_memory_mapping map ON m.uuid = map.memory_uuid
			 WHERE m.embedding_status = 'ready' AND map.memory_uuid IS NULL`,
			"ready records without a mapping row",
		},
		{
			`SELECT COUNT(*) FROM memories m
			 JOIN vec_memory_mapping map ON m.uuid = map.memory_uuid
			 WHERE m.embedding_status != 'ready'`,
			"mapped records not marked ready",
		},
	}
	for _, p := range probes {
		var n int
		if err := s.db.QueryRowContext(ctx, p.query).Scan(&n); err != nil {
			return nil, s.storeErr("integrity check failed", err)
		}
		if n > 0 {
			report.Violations = append(report.Violations, fmt.Sprintf("%d %s", n, p.message))
		}
	}

	if len(report.Violations) > 0 {
		return report, fmt.Errorf("%w: %s", ErrIntegrity, strings.Join(report.Violations, "; "))
	}
	return report, nil
}

// Profile returns the owner profile, or ErrNotFound when none is set.
func (s *Store) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_name, device, updated_at FROM personal_info WHERE id = 1",
	).Scan(&p.UserName, &p.Device, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile not set", ErrNotFound)
	}
	if err != nil {
		return nil, s.storeErr("failed to load profile", err)
	}
	p.UpdatedAt = parseStoredTime(updatedAt)
	return &p, nil
}

// SetProfile upserts the single owner profile row.
func (s *Store) SetProfile(ctx context.Context, userName, device string) error {
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO personal_info (id, user_name, device, updated_at) VALUES (1, ?, ?, ?)",
			userName, device, time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return err
	}
	observability.RecordStoreAudit(ctx, "profile_updated", "success", map[string]interface{}{
		"user_name": userName,
		"device":    device,
	})
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.logger.Debug().Msg("Closing memory store")
	return s.db.Close()
}

// withRetry retries a write against a busy database with doubling delays,
// then reports ErrStoreUnavailable.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	delay := 100 * time.Millisecond
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		err = op()
		if err == nil || !isBusy(err) {
			return err
		}
		s.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Database busy, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (s *Store) storeErr(msg string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func scanRecords(rows *sql.Rows) ([]MemoryRecord, error) {
	var records []MemoryRecord
	for rows.Next() {
		var rec MemoryRecord
		var tagsJSON, createdAt string
		if err := rows.Scan(&rec.UUID, &rec.Date, &rec.Type, &rec.Summary, &tagsJSON,
			&rec.Importance, &rec.EmbeddingStatus, &createdAt); err != nil {
			return nil, err
		}
		rec.Tags = unmarshalTags(tagsJSON)
		rec.CreatedAt = parseStoredTime(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func unmarshalTags(tagsJSON string) []string {
	if tagsJSON == "" || tagsJSON == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return nil
	}
	return tags
}

func parseStoredTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
