package ledger

import "time"

// Decision sources.
const (
	SourceRule    = "rule"
	SourceModel   = "model"
	SourcePattern = "pattern"
	SourceHybrid  = "hybrid"
)

// Pattern sources.
const (
	PatternSourceManual  = "manual"
	PatternSourceLearned = "learned"
)

// ValidSource reports whether s is a recognized decision source.
func ValidSource(s string) bool {
	switch s {
	case SourceRule, SourceModel, SourcePattern, SourceHybrid:
		return true
	}
	return false
}

// Decision is one agent decision: the authoritative, compliance-grade audit
// record. Rows are never deleted. WasCorrect and CorrectedTo are set exactly
// once, when a correction arrives.
type Decision struct {
	ID               string    `db:"id"`
	TenantID         string    `db:"tenant_id"`
	AgentType        string    `db:"agent_type"`
	InputText        string    `db:"input_text"`
	InputFingerprint string    `db:"input_fingerprint"`
	DecisionPayload  string    `db:"decision_payload"`
	Confidence       int       `db:"confidence"`
	Source           string    `db:"source"`
	WasCorrect       *bool     `db:"was_correct"`
	CorrectedTo      *string   `db:"corrected_to"`
	CreatedAt        time.Time `db:"created_at"`
}

// Correction is one human override of a Decision. AppliedToPattern flips
// from false to true exactly once, when the learner promotes it.
type Correction struct {
	ID               string    `db:"id"`
	TenantID         string    `db:"tenant_id"`
	DecisionID       string    `db:"decision_id"`
	OriginalValue    string    `db:"original_value"`
	CorrectedValue   string    `db:"corrected_value"`
	CorrectedBy      string    `db:"corrected_by"`
	Reason           string    `db:"reason"`
	AppliedToPattern bool      `db:"applied_to_pattern"`
	CreatedAt        time.Time `db:"created_at"`
}

// Pattern is a durable, directly matchable rule mapping a normalized input
// signature to a target value. Unique per (tenant_id, match_key). Manual
// patterns are never overwritten by learned ones; patterns are deactivated,
// never hard-deleted.
type Pattern struct {
	ID          int64     `db:"id"`
	TenantID    string    `db:"tenant_id"`
	MatchKey    string    `db:"match_key"`
	TargetValue string    `db:"target_value"`
	MatchCount  int       `db:"match_count"`
	Confidence  float64   `db:"confidence"`
	Source      string    `db:"source"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// BootstrapState is the single per-deployment flag gating one-time
// historical replay.
type BootstrapState struct {
	Key         string    `db:"key"`
	SeededAt    time.Time `db:"seeded_at"`
	TotalSeeded int       `db:"total_seeded"`
}

// AccuracyStats aggregates decision review outcomes for a tenant and agent
// type. Rate is correct/reviewed, zero when nothing has been reviewed.
type AccuracyStats struct {
	Total    int     `db:"total"`
	Reviewed int     `db:"reviewed"`
	Correct  int     `db:"correct"`
	Rate     float64 `db:"-"`
}
