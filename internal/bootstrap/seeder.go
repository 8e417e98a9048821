// Package bootstrap replays historical patterns and high-confidence
// decisions into the learner on first startup, so a fresh deployment does
// not begin with an empty learning index.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub006/internal/ledger"
	"github.com/Smashkat12/crechebooks-sub006/internal/learner"
	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
)

// Config tunes the one-time seeding pass.
type Config struct {
	// Enabled gates seeding entirely. When false Run records a skip and
	// returns immediately.
	Enabled bool

	// QualityThreshold is the minimum decision confidence, on a 0-1
	// scale, for a historical decision to be replayed.
	QualityThreshold float64

	// MaxPatterns and MaxDecisions cap how much history one run replays.
	MaxPatterns  int
	MaxDecisions int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.QualityThreshold == 0 {
		c.QualityThreshold = 0.7
	}
	if c.MaxPatterns == 0 {
		c.MaxPatterns = 500
	}
	if c.MaxDecisions == 0 {
		c.MaxDecisions = 500
	}
}

// Stats reports what one Run did.
type Stats struct {
	Seeded                 int
	PatternsSeeded         int
	DecisionsSeeded        int
	ForceLearningTriggered bool
	Skipped                bool
	SkipReason             string
	Duration               time.Duration
}

// Seeder performs the one-time historical replay. It is idempotent: once
// the ledger carries the seeded flag, later runs are no-ops.
type Seeder struct {
	cfg     Config
	store   *ledger.Store
	learner *learner.Learner
	logger  *logging.Logger
	metrics *Metrics
}

// NewSeeder builds a seeder over the ledger store and learner.
func NewSeeder(cfg Config, store *ledger.Store, l *learner.Learner, logger *logging.Logger, metrics *Metrics) (*Seeder, error) {
	if store == nil || l == nil {
		return nil, fmt.Errorf("%w: store and learner are required", ledger.ErrInvalidInput)
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Seeder{
		cfg:     cfg,
		store:   store,
		learner: l,
		logger:  logger.Named("bootstrap"),
		metrics: metrics,
	}, nil
}

// Run executes the seeding pass. It never fails startup: every error path
// degrades to a skip with a reason, and the service continues cold.
func (s *Seeder) Run(ctx context.Context) *Stats {
	start := time.Now()
	stats := &Stats{}
	defer func() { stats.Duration = time.Since(start) }()

	if !s.cfg.Enabled {
		return s.skip(ctx, stats, "bootstrap disabled by configuration")
	}

	state, err := s.store.GetBootstrapState(ctx)
	if err != nil {
		return s.skip(ctx, stats, fmt.Sprintf("reading bootstrap state: %v", err))
	}
	if state != nil {
		return s.skip(ctx, stats, fmt.Sprintf("already seeded at %s (%d records)",
			state.SeededAt.Format(time.RFC3339), state.TotalSeeded))
	}

	patterns, err := s.store.TopPatterns(ctx, s.cfg.MaxPatterns)
	if err != nil {
		return s.skip(ctx, stats, fmt.Sprintf("fetching patterns: %v", err))
	}
	stats.PatternsSeeded = s.feedPatterns(patterns)

	floor := int(s.cfg.QualityThreshold * 100)
	decisions, err := s.store.HighConfidenceDecisions(ctx, floor, s.cfg.MaxDecisions)
	if err != nil {
		return s.skip(ctx, stats, fmt.Sprintf("fetching decisions: %v", err))
	}
	stats.DecisionsSeeded = s.feedDecisions(decisions)

	stats.Seeded = stats.PatternsSeeded + stats.DecisionsSeeded
	s.metrics.recordSeeds(stats.Seeded)

	if stats.Seeded > 0 {
		if err := s.learner.LearnNow(ctx); err != nil {
			s.logger.Warn(ctx, "bootstrap force-learning failed", zap.Error(err))
		} else {
			stats.ForceLearningTriggered = true
		}
	}

	if err := s.store.SetBootstrapSeeded(ctx, stats.Seeded); err != nil {
		// The replay already happened; a missing flag only risks a
		// duplicate replay next boot.
		s.logger.Warn(ctx, "recording bootstrap state failed", zap.Error(err))
	}

	s.logger.Info(ctx, "bootstrap seeding complete",
		zap.Int("patterns", stats.PatternsSeeded),
		zap.Int("decisions", stats.DecisionsSeeded),
		zap.Bool("force_learning", stats.ForceLearningTriggered),
		zap.Duration("duration", time.Since(start)))
	return stats
}

func (s *Seeder) feedPatterns(patterns []ledger.Pattern) int {
	var maxCount int
	for _, p := range patterns {
		if p.MatchCount > maxCount {
			maxCount = p.MatchCount
		}
	}

	fed := 0
	for _, p := range patterns {
		quality := 1.0
		if maxCount > 0 {
			quality = clamp01(float64(p.MatchCount) / float64(maxCount))
		}
		if s.learner.Feed(learner.Trajectory{
			TenantID: p.TenantID,
			State:    p.MatchKey,
			Action:   p.TargetValue,
			Quality:  quality,
		}) {
			fed++
		}
	}
	return fed
}

func (s *Seeder) feedDecisions(decisions []ledger.Decision) int {
	fed := 0
	for _, d := range decisions {
		if s.learner.Feed(learner.Trajectory{
			TenantID: d.TenantID,
			State:    ledger.Normalize(d.InputText),
			Action:   d.DecisionPayload,
			Quality:  clamp01(float64(d.Confidence) / 100),
		}) {
			fed++
		}
	}
	return fed
}

func (s *Seeder) skip(ctx context.Context, stats *Stats, reason string) *Stats {
	stats.Skipped = true
	stats.SkipReason = reason
	s.metrics.recordSkip()
	s.logger.Info(ctx, "bootstrap seeding skipped", zap.String("reason", reason))
	return stats
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
