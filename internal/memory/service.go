// Package memory is the service facade: one object owning the embedding
// pipeline, vector store, decision ledger, pattern learner and bootstrap
// seeder, exposing the operations agents call.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Smashkat12/crechebooks-sub006/internal/bootstrap"
	"github.com/Smashkat12/crechebooks-sub006/internal/config"
	"github.com/Smashkat12/crechebooks-sub006/internal/embeddings"
	"github.com/Smashkat12/crechebooks-sub006/internal/ledger"
	"github.com/Smashkat12/crechebooks-sub006/internal/learner"
	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
	"github.com/Smashkat12/crechebooks-sub006/internal/persist"
	"github.com/Smashkat12/crechebooks-sub006/internal/vectorstore"
)

// Service coordinates the memory subsystems behind one API surface.
type Service struct {
	pipeline *embeddings.Pipeline
	vectors  vectorstore.Store
	ledger   *ledger.Ledger
	learner  *learner.Learner
	seeder   *bootstrap.Seeder
	logger   *logging.Logger

	mu             sync.RWMutex
	bootstrapStats *bootstrap.Stats
}

// NewService assembles a service from prebuilt components. seeder may be
// nil when bootstrap is not wanted.
func NewService(pipeline *embeddings.Pipeline, vectors vectorstore.Store, l *ledger.Ledger, lr *learner.Learner, seeder *bootstrap.Seeder, logger *logging.Logger) (*Service, error) {
	if pipeline == nil || vectors == nil || l == nil || lr == nil {
		return nil, fmt.Errorf("%w: pipeline, vectors, ledger and learner are required", ledger.ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		pipeline: pipeline,
		vectors:  vectors,
		ledger:   l,
		learner:  lr,
		seeder:   seeder,
		logger:   logger.Named("memory"),
	}, nil
}

// Build constructs the full memory service from configuration: persistence
// layout, embedding pipeline, vector store, ledger, learner and seeder.
// reg may be nil to skip metrics registration.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer) (*Service, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	layout, err := persist.NewResolver(cfg, logger).Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving persistence layout: %w", err)
	}

	var (
		embedMetrics   *embeddings.Metrics
		ledgerMetrics  *ledger.Metrics
		learnerMetrics *learner.Metrics
		seedMetrics    *bootstrap.Metrics
	)
	if reg != nil {
		embedMetrics = embeddings.NewMetrics(reg)
		ledgerMetrics = ledger.NewMetrics(reg)
		learnerMetrics = learner.NewMetrics(reg)
		seedMetrics = bootstrap.NewMetrics(reg)
	}

	pipeline, err := embeddings.NewPipeline(ctx, cfg.Embeddings, logger, embedMetrics)
	if err != nil {
		return nil, fmt.Errorf("building embedding pipeline: %w", err)
	}

	vectors, err := vectorstore.NewStore(cfg.VectorStore, layout, logger)
	if err != nil {
		return nil, fmt.Errorf("building vector store: %w", err)
	}

	ledgerPath := layout.LedgerPath
	if !layout.Durable {
		ledgerPath = ledger.InMemoryPath
	}
	store, err := ledger.Open(ledgerPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening decision ledger: %w", err)
	}

	led, err := ledger.NewLedger(store, pipeline, vectors, cfg.Learning.SimilarityThreshold, logger, ledgerMetrics)
	if err != nil {
		return nil, err
	}

	lr, err := learner.NewLearner(learner.Config{
		TrajectoryCapacity: cfg.Learning.TrajectoryCapacity,
		PromotionThreshold: cfg.Learning.PromotionThreshold,
		FlushInterval:      cfg.Learning.FlushInterval.Duration(),
	}, store, pipeline, vectors, logger, learnerMetrics)
	if err != nil {
		return nil, err
	}

	seeder, err := bootstrap.NewSeeder(bootstrap.Config{
		Enabled:          layout.BootstrapEnabled,
		QualityThreshold: cfg.Learning.QualityThreshold,
	}, store, lr, logger, seedMetrics)
	if err != nil {
		return nil, err
	}

	return NewService(pipeline, vectors, led, lr, seeder, logger)
}

// Bootstrap runs the one-time historical replay and caches its outcome for
// GetBootstrapStatus. It never returns an error; failures degrade to a
// skipped run with a reason.
func (s *Service) Bootstrap(ctx context.Context) *bootstrap.Stats {
	if s.seeder == nil {
		return nil
	}
	stats := s.seeder.Run(ctx)

	s.mu.Lock()
	s.bootstrapStats = stats
	s.mu.Unlock()
	return stats
}

// EmbedAndRecordDecision records one agent decision in the durable ledger
// and schedules its vector-index write in the background. It returns the
// decision ID as soon as the ledger write commits.
func (s *Service) EmbedAndRecordDecision(ctx context.Context, params ledger.RecordDecisionParams) (string, error) {
	ctx, err := s.tenantContext(ctx, params.TenantID)
	if err != nil {
		return "", err
	}
	return s.ledger.RecordDecision(ctx, params)
}

// RecordCorrection applies a human override to a decision, then hands it to
// the learner. The correction is durable once this returns, even when the
// learning step reports an error.
func (s *Service) RecordCorrection(ctx context.Context, c *ledger.Correction) (*learner.PatternLearnResult, error) {
	ctx, err := s.tenantContext(ctx, c.TenantID)
	if err != nil {
		return nil, err
	}

	recorded, err := s.ledger.RecordCorrection(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.learner.ProcessCorrection(ctx, recorded)
}

// FindSimilar returns up to k past decisions semantically close to text,
// falling back to exact fingerprint matches when the vector leg fails.
func (s *Service) FindSimilar(ctx context.Context, tenantID, agentType, text string, k int) ([]ledger.Decision, error) {
	ctx, err := s.tenantContext(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.ledger.FindSimilarDecisions(ctx, tenantID, agentType, text, k)
}

// MatchPattern is the fast pre-inference path: an exact lookup of the
// normalized input against the tenant's active patterns. Returns (nil, nil)
// when nothing matches.
func (s *Service) MatchPattern(ctx context.Context, tenantID, input string) (*ledger.Pattern, error) {
	ctx, err := s.tenantContext(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Store().MatchPattern(ctx, tenantID, input)
}

// SaveManualPattern upserts an operator-defined pattern. Manual patterns
// take precedence over learned ones and are never overwritten by learning.
func (s *Service) SaveManualPattern(ctx context.Context, tenantID, matchKey, targetValue string) error {
	ctx, err := s.tenantContext(ctx, tenantID)
	if err != nil {
		return err
	}
	return s.ledger.Store().SaveManualPattern(ctx, tenantID, matchKey, targetValue)
}

// GetAccuracyStats aggregates decision review outcomes for a tenant and
// agent type.
func (s *Service) GetAccuracyStats(ctx context.Context, tenantID, agentType string) (*ledger.AccuracyStats, error) {
	ctx, err := s.tenantContext(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.ledger.GetAccuracyStats(ctx, tenantID, agentType)
}

// GetBootstrapStatus returns the outcome of the bootstrap run, or nil when
// bootstrap has not run in this process.
func (s *Service) GetBootstrapStatus() *bootstrap.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bootstrapStats
}

// LearnNow forces an immediate flush of queued learning signals.
func (s *Service) LearnNow(ctx context.Context) error {
	return s.learner.LearnNow(ctx)
}

// Close shuts the service down: the learner flushes its queue, in-flight
// vector writes finish, and the stores close.
func (s *Service) Close() error {
	var firstErr error
	if err := s.learner.Close(); err != nil {
		firstErr = err
	}
	if err := s.ledger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// tenantContext validates the tenant and stamps it into the context so
// downstream layers operate inside the tenant's namespace.
func (s *Service) tenantContext(ctx context.Context, tenantID string) (context.Context, error) {
	if existing, err := vectorstore.TenantFromContext(ctx); err == nil {
		if existing.TenantID != tenantID {
			return nil, fmt.Errorf("%w: context carries tenant %q, operation targets %q",
				vectorstore.ErrInvalidTenant, existing.TenantID, tenantID)
		}
		return ctx, nil
	}
	tenant := &vectorstore.TenantInfo{TenantID: tenantID}
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	return vectorstore.ContextWithTenant(ctx, tenant), nil
}
