// Package ledger is the durable, compliance-grade record of agent decisions,
// human corrections and learned patterns, backed by SQLite.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
)

// Sentinel errors for ledger operations.
var (
	// ErrWriteFailed indicates the authoritative audit write failed.
	// Always fatal to the operation; the ledger is the legal record.
	ErrWriteFailed = errors.New("ledger write failed")

	// ErrDecisionNotFound is returned when a decision does not exist for
	// the tenant.
	ErrDecisionNotFound = errors.New("decision not found")

	// ErrAlreadyCorrected is returned when a decision already has a
	// correction; the correction fields are set exactly once.
	ErrAlreadyCorrected = errors.New("decision already corrected")

	// ErrInvalidInput indicates missing or malformed parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// InMemoryPath opens the store on a private in-memory database, used when
// no durable location exists and in tests.
const InMemoryPath = ":memory:"

// trustedSources are the decision sources eligible for bootstrap replay.
// Raw model output is what corrections exist to fix, so it is excluded.
var trustedSources = []string{SourceRule, SourcePattern, SourceHybrid}

// Store is the relational ledger over a SQLite connection pool.
type Store struct {
	db     *sqlx.DB
	logger *logging.Logger
}

// Open opens (creating if needed) the ledger database at path and applies
// the schema idempotently. Pass InMemoryPath for an ephemeral store.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path required", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("ledger")

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path == InMemoryPath {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	if path == InMemoryPath {
		// A pooled second connection would see a different empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying ledger schema: %w", err)
	}

	logger.Info(context.Background(), "ledger opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertDecision writes the authoritative decision row.
func (s *Store) InsertDecision(ctx context.Context, d *Decision) error {
	if d.ID == "" || d.TenantID == "" || d.AgentType == "" {
		return fmt.Errorf("%w: decision requires id, tenant and agent type", ErrInvalidInput)
	}
	if d.Confidence < 0 || d.Confidence > 100 {
		return fmt.Errorf("%w: confidence must be 0-100, got %d", ErrInvalidInput, d.Confidence)
	}
	if !ValidSource(d.Source) {
		return fmt.Errorf("%w: unknown decision source %q", ErrInvalidInput, d.Source)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO decisions (id, tenant_id, agent_type, input_text, input_fingerprint,
			decision_payload, confidence, source, was_correct, corrected_to, created_at)
		VALUES (:id, :tenant_id, :agent_type, :input_text, :input_fingerprint,
			:decision_payload, :confidence, :source, :was_correct, :corrected_to, :created_at)`, d)
	if err != nil {
		return fmt.Errorf("%w: inserting decision: %v", ErrWriteFailed, err)
	}
	return nil
}

// GetDecision fetches one decision scoped to a tenant.
func (s *Store) GetDecision(ctx context.Context, tenantID, id string) (*Decision, error) {
	var d Decision
	err := s.db.GetContext(ctx, &d,
		`SELECT * FROM decisions WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDecisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching decision %s: %w", id, err)
	}
	return &d, nil
}

// ApplyCorrection records a human override in one transaction: it verifies
// the decision exists for the tenant and has not been corrected yet, marks
// it incorrect with the corrected value, and inserts the correction row.
func (s *Store) ApplyCorrection(ctx context.Context, c *Correction) error {
	if c.ID == "" || c.TenantID == "" || c.DecisionID == "" || c.CorrectedValue == "" {
		return fmt.Errorf("%w: correction requires id, tenant, decision and corrected value", ErrInvalidInput)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning correction tx: %v", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	var d Decision
	err = tx.GetContext(ctx, &d,
		`SELECT * FROM decisions WHERE tenant_id = ? AND id = ?`, c.TenantID, c.DecisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDecisionNotFound
	}
	if err != nil {
		return fmt.Errorf("fetching decision %s: %w", c.DecisionID, err)
	}
	if d.CorrectedTo != nil {
		return ErrAlreadyCorrected
	}

	if c.OriginalValue == "" {
		c.OriginalValue = d.InputText
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE decisions SET was_correct = 0, corrected_to = ? WHERE tenant_id = ? AND id = ?`,
		c.CorrectedValue, c.TenantID, c.DecisionID); err != nil {
		return fmt.Errorf("%w: marking decision corrected: %v", ErrWriteFailed, err)
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO corrections (id, tenant_id, decision_id, original_value, corrected_value,
			corrected_by, reason, applied_to_pattern, created_at)
		VALUES (:id, :tenant_id, :decision_id, :original_value, :corrected_value,
			:corrected_by, :reason, :applied_to_pattern, :created_at)`, c); err != nil {
		return fmt.Errorf("%w: inserting correction: %v", ErrWriteFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing correction: %v", ErrWriteFailed, err)
	}
	return nil
}

// DecisionsByIDs hydrates decisions by ID, tenant-scoped, preserving the
// order of the input IDs (the caller's similarity ranking).
func (s *Store) DecisionsByIDs(ctx context.Context, tenantID string, ids []string) ([]Decision, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT * FROM decisions WHERE tenant_id = ? AND id IN (?)`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("building decision query: %w", err)
	}

	var rows []Decision
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetching decisions: %w", err)
	}

	byID := make(map[string]Decision, len(rows))
	for _, d := range rows {
		byID[d.ID] = d
	}
	ordered := make([]Decision, 0, len(rows))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

// DecisionsByFingerprint is the exact-match fallback lookup: newest first.
func (s *Store) DecisionsByFingerprint(ctx context.Context, tenantID, agentType, fingerprint string, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []Decision
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM decisions
		WHERE tenant_id = ? AND agent_type = ? AND input_fingerprint = ?
		ORDER BY created_at DESC LIMIT ?`,
		tenantID, agentType, fingerprint, limit)
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}
	return rows, nil
}

// CountPendingCorrections counts not-yet-applied corrections sharing the
// tenant and corrected value: the promotion-threshold signature.
func (s *Store) CountPendingCorrections(ctx context.Context, tenantID, correctedValue string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM corrections
		WHERE tenant_id = ? AND corrected_value = ? AND applied_to_pattern = 0`,
		tenantID, correctedValue)
	if err != nil {
		return 0, fmt.Errorf("counting pending corrections: %w", err)
	}
	return n, nil
}

// PromotePendingCorrections materializes a learned pattern and flips every
// contributing correction's applied_to_pattern flag, all in one transaction.
//
// The upsert is conditional: ON CONFLICT the update only fires when the
// existing pattern is not manual, so a manual pattern is never overwritten
// and the race between two concurrent threshold-crossing corrections
// resolves to a single row. Returns the number of corrections flipped and
// whether the pattern row was actually written; a manual pattern blocks the
// write while the contributing corrections are still consumed.
func (s *Store) PromotePendingCorrections(ctx context.Context, tenantID, matchKey, targetValue string, confidence float64) (int, bool, error) {
	if tenantID == "" || matchKey == "" || targetValue == "" {
		return 0, false, fmt.Errorf("%w: promotion requires tenant, match key and target", ErrInvalidInput)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("%w: beginning promotion tx: %v", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	var pending int
	if err := tx.GetContext(ctx, &pending, `
		SELECT COUNT(*) FROM corrections
		WHERE tenant_id = ? AND corrected_value = ? AND applied_to_pattern = 0`,
		tenantID, targetValue); err != nil {
		return 0, false, fmt.Errorf("counting pending corrections: %w", err)
	}
	if pending == 0 {
		return 0, false, nil
	}

	now := time.Now().UTC()
	upsert, err := tx.ExecContext(ctx, `
		INSERT INTO patterns (tenant_id, match_key, target_value, match_count, confidence,
			source, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (tenant_id, match_key) DO UPDATE SET
			target_value = excluded.target_value,
			match_count  = patterns.match_count + excluded.match_count,
			confidence   = excluded.confidence,
			is_active    = 1,
			updated_at   = excluded.updated_at
		WHERE patterns.source != ?`,
		tenantID, matchKey, targetValue, pending, confidence,
		PatternSourceLearned, now, now, PatternSourceManual)
	if err != nil {
		return 0, false, fmt.Errorf("%w: upserting pattern: %v", ErrWriteFailed, err)
	}
	written, err := upsert.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("reading upsert result: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE corrections SET applied_to_pattern = 1
		WHERE tenant_id = ? AND corrected_value = ? AND applied_to_pattern = 0`,
		tenantID, targetValue)
	if err != nil {
		return 0, false, fmt.Errorf("%w: flipping corrections: %v", ErrWriteFailed, err)
	}
	flipped, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("reading affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("%w: committing promotion: %v", ErrWriteFailed, err)
	}
	return int(flipped), written > 0, nil
}

// MatchPattern returns the active pattern for a normalized input, or nil
// when none matches. This is the fast path that bypasses embedding.
func (s *Store) MatchPattern(ctx context.Context, tenantID, matchKey string) (*Pattern, error) {
	var p Pattern
	err := s.db.GetContext(ctx, &p, `
		SELECT * FROM patterns
		WHERE tenant_id = ? AND match_key = ? AND is_active = 1`,
		tenantID, Normalize(matchKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("matching pattern: %w", err)
	}
	return &p, nil
}

// SaveManualPattern creates or replaces a manually curated pattern. Manual
// entries always win over learned promotions at match time.
func (s *Store) SaveManualPattern(ctx context.Context, tenantID, matchKey, targetValue string) error {
	if tenantID == "" || matchKey == "" || targetValue == "" {
		return fmt.Errorf("%w: manual pattern requires tenant, match key and target", ErrInvalidInput)
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (tenant_id, match_key, target_value, match_count, confidence,
			source, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 0, 1.0, ?, 1, ?, ?)
		ON CONFLICT (tenant_id, match_key) DO UPDATE SET
			target_value = excluded.target_value,
			source       = excluded.source,
			confidence   = excluded.confidence,
			is_active    = 1,
			updated_at   = excluded.updated_at`,
		tenantID, Normalize(matchKey), targetValue, PatternSourceManual, now, now)
	if err != nil {
		return fmt.Errorf("%w: saving manual pattern: %v", ErrWriteFailed, err)
	}
	return nil
}

// DeactivatePattern marks a pattern inactive. Patterns are never deleted.
func (s *Store) DeactivatePattern(ctx context.Context, tenantID, matchKey string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE patterns SET is_active = 0, updated_at = ?
		WHERE tenant_id = ? AND match_key = ?`,
		time.Now().UTC(), tenantID, Normalize(matchKey))
	if err != nil {
		return fmt.Errorf("%w: deactivating pattern: %v", ErrWriteFailed, err)
	}
	return nil
}

// GetAccuracyStats aggregates review outcomes for a tenant and agent type.
func (s *Store) GetAccuracyStats(ctx context.Context, tenantID, agentType string) (*AccuracyStats, error) {
	var stats AccuracyStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN was_correct IS NOT NULL THEN 1 ELSE 0 END), 0) AS reviewed,
			COALESCE(SUM(CASE WHEN was_correct = 1 THEN 1 ELSE 0 END), 0) AS correct
		FROM decisions WHERE tenant_id = ? AND agent_type = ?`,
		tenantID, agentType)
	if err != nil {
		return nil, fmt.Errorf("aggregating accuracy stats: %w", err)
	}
	if stats.Reviewed > 0 {
		stats.Rate = float64(stats.Correct) / float64(stats.Reviewed)
	}
	return &stats, nil
}

// TopPatterns returns active patterns ordered by match count descending,
// across tenants, for bootstrap replay.
func (s *Store) TopPatterns(ctx context.Context, limit int) ([]Pattern, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []Pattern
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM patterns WHERE is_active = 1
		ORDER BY match_count DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching top patterns: %w", err)
	}
	return rows, nil
}

// HighConfidenceDecisions returns decisions from trusted sources at or above
// the confidence floor, newest first, for bootstrap replay.
func (s *Store) HighConfidenceDecisions(ctx context.Context, minConfidence, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 500
	}
	query, args, err := sqlx.In(`
		SELECT * FROM decisions
		WHERE confidence >= ? AND source IN (?)
		ORDER BY created_at DESC LIMIT ?`,
		minConfidence, trustedSources, limit)
	if err != nil {
		return nil, fmt.Errorf("building bootstrap query: %w", err)
	}
	var rows []Decision
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetching high-confidence decisions: %w", err)
	}
	return rows, nil
}

// GetBootstrapState returns the seeding flag, or nil if bootstrap has never
// run.
func (s *Store) GetBootstrapState(ctx context.Context) (*BootstrapState, error) {
	var state BootstrapState
	err := s.db.GetContext(ctx, &state,
		`SELECT * FROM bootstrap_state WHERE key = 'SEEDED'`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching bootstrap state: %w", err)
	}
	return &state, nil
}

// SetBootstrapSeeded records that the one-time replay completed.
func (s *Store) SetBootstrapSeeded(ctx context.Context, totalSeeded int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bootstrap_state (key, seeded_at, total_seeded)
		VALUES ('SEEDED', ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			seeded_at = excluded.seeded_at,
			total_seeded = excluded.total_seeded`,
		time.Now().UTC(), totalSeeded)
	if err != nil {
		return fmt.Errorf("%w: recording bootstrap state: %v", ErrWriteFailed, err)
	}
	return nil
}
