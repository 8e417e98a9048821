package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub006/internal/embeddings"
	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
	"github.com/Smashkat12/crechebooks-sub006/internal/vectorstore"
)

// DecisionEntityType names the vector collection family holding decision
// embeddings; the full collection key is tenant-scoped.
const DecisionEntityType = "decisions"

// vectorWriteTimeout bounds one asynchronous embed-plus-insert. The write is
// detached from the caller's context so a fast caller cannot cancel it.
const vectorWriteTimeout = 30 * time.Second

// Embedder is the slice of the embedding pipeline the ledger needs.
type Embedder interface {
	Embed(ctx context.Context, text string) (*embeddings.Result, error)
}

// Ledger coordinates the dual write: the relational store is the
// authoritative legal record, the vector store a best-effort learning
// accelerator. Ledger write failures propagate; vector write failures are
// logged and swallowed.
type Ledger struct {
	store    *Store
	embedder Embedder
	vectors  vectorstore.Store
	logger   *logging.Logger
	metrics  *Metrics

	// simThreshold is the minimum similarity for a vector hit to count;
	// below it the fingerprint fallback takes over.
	simThreshold float64

	// wg tracks in-flight asynchronous vector writes for clean shutdown.
	wg sync.WaitGroup
}

// RecordDecisionParams are the inputs to RecordDecision.
type RecordDecisionParams struct {
	TenantID        string
	AgentType       string
	InputText       string
	DecisionPayload string
	Confidence      int
	Source          string
}

// NewLedger builds the dual-write coordinator. embedder and vectors may be
// nil only in tests exercising the pure-SQL paths.
func NewLedger(store *Store, embedder Embedder, vectors vectorstore.Store, simThreshold float64, logger *logging.Logger, metrics *Metrics) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	if simThreshold < 0 || simThreshold > 1 {
		return nil, fmt.Errorf("%w: similarity threshold must be in [0,1], got %v", ErrInvalidInput, simThreshold)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ledger{
		store:        store,
		embedder:     embedder,
		vectors:      vectors,
		logger:       logger.Named("ledger"),
		metrics:      metrics,
		simThreshold: simThreshold,
	}, nil
}

// Store exposes the relational layer for the learner and seeder.
func (l *Ledger) Store() *Store {
	return l.store
}

// RecordDecision writes the authoritative audit row and returns its ID.
// The embedding and vector insert are dispatched on a goroutine: the
// caller's decision path never blocks on the vector store and never sees
// its failures.
func (l *Ledger) RecordDecision(ctx context.Context, params RecordDecisionParams) (string, error) {
	if params.InputText == "" {
		return "", fmt.Errorf("%w: input text required", ErrInvalidInput)
	}

	decision := &Decision{
		ID:               uuid.NewString(),
		TenantID:         params.TenantID,
		AgentType:        params.AgentType,
		InputText:        params.InputText,
		InputFingerprint: Fingerprint(params.InputText),
		DecisionPayload:  params.DecisionPayload,
		Confidence:       params.Confidence,
		Source:           params.Source,
		CreatedAt:        time.Now().UTC(),
	}

	if err := l.store.InsertDecision(ctx, decision); err != nil {
		return "", err
	}
	l.metrics.recordDecision()

	if l.embedder != nil && l.vectors != nil {
		l.wg.Add(1)
		go l.writeVector(decision)
	}

	return decision.ID, nil
}

// writeVector embeds the decision input and inserts it into the tenant's
// decision collection. Every failure is logged and dropped; the decision is
// already durable.
func (l *Ledger) writeVector(decision *Decision) {
	defer l.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), vectorWriteTimeout)
	defer cancel()
	// The caller's context is gone; the detached write still runs inside
	// the decision's tenant so the store's isolation check passes.
	ctx = vectorstore.ContextWithTenant(ctx, &vectorstore.TenantInfo{TenantID: decision.TenantID})

	result, err := l.embedder.Embed(ctx, decision.InputText)
	if err != nil {
		l.metrics.recordVectorWriteError()
		l.logger.Warn(ctx, "vector write skipped, embedding failed",
			zap.String("decision_id", decision.ID),
			zap.Error(err))
		return
	}

	collection, err := vectorstore.CollectionKey(DecisionEntityType, decision.TenantID)
	if err != nil {
		l.metrics.recordVectorWriteError()
		l.logger.Warn(ctx, "vector write skipped, bad collection key",
			zap.String("decision_id", decision.ID),
			zap.Error(err))
		return
	}

	if err := l.vectors.EnsureCollection(ctx, collection, result.Dimensions); err != nil {
		l.metrics.recordVectorWriteError()
		l.logger.Warn(ctx, "vector write failed, collection unavailable",
			zap.String("decision_id", decision.ID),
			zap.String("collection", collection),
			zap.Error(err))
		return
	}

	_, err = l.vectors.Insert(ctx, collection, []vectorstore.Document{{
		ID:        decision.ID,
		Content:   decision.InputText,
		Embedding: result.Vector,
		Metadata: map[string]string{
			"agent_type": decision.AgentType,
			"source":     decision.Source,
			"provider":   result.Provider,
		},
		InsertedAt: decision.CreatedAt,
	}})
	if err != nil {
		l.metrics.recordVectorWriteError()
		l.logger.Warn(ctx, "vector write failed",
			zap.String("decision_id", decision.ID),
			zap.String("collection", collection),
			zap.Error(err))
		return
	}

	l.logger.Debug(ctx, "decision vector indexed",
		zap.String("decision_id", decision.ID),
		zap.String("collection", collection),
		zap.String("provider", result.Provider))
}

// RecordCorrection records a human override. The pattern-learning trigger is
// the returned correction, which the caller feeds to the learner.
func (l *Ledger) RecordCorrection(ctx context.Context, c *Correction) (*Correction, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := l.store.ApplyCorrection(ctx, c); err != nil {
		return nil, err
	}
	l.metrics.recordCorrection()
	return c, nil
}

// FindSimilarDecisions prefers semantic vector search; on store outage,
// embedding failure, or zero accepted hits it falls back to an exact match
// on the normalized input fingerprint. The fallback is a permanent safety
// net, never removed.
func (l *Ledger) FindSimilarDecisions(ctx context.Context, tenantID, agentType, text string, k int) ([]Decision, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text required", ErrInvalidInput)
	}
	if k <= 0 {
		k = 10
	}

	if ids := l.similarDecisionIDs(ctx, tenantID, agentType, text, k); len(ids) > 0 {
		decisions, err := l.store.DecisionsByIDs(ctx, tenantID, ids)
		if err != nil {
			return nil, err
		}
		if len(decisions) > 0 {
			return decisions, nil
		}
	}

	l.metrics.recordFallbackSearch()
	l.logger.Debug(ctx, "similarity search degraded to fingerprint fallback",
		zap.String("tenant_id", tenantID),
		zap.String("agent_type", agentType))
	return l.store.DecisionsByFingerprint(ctx, tenantID, agentType, Fingerprint(text), k)
}

// similarDecisionIDs runs the semantic leg of the search. All failures
// collapse to an empty result, handing control to the fallback.
func (l *Ledger) similarDecisionIDs(ctx context.Context, tenantID, agentType, text string, k int) []string {
	if l.embedder == nil || l.vectors == nil {
		return nil
	}

	result, err := l.embedder.Embed(ctx, text)
	if err != nil {
		l.logger.Warn(ctx, "similarity embedding failed", zap.Error(err))
		return nil
	}

	collection, err := vectorstore.CollectionKey(DecisionEntityType, tenantID)
	if err != nil {
		return nil
	}

	exists, err := l.vectors.CollectionExists(ctx, collection)
	if err != nil || !exists {
		return nil
	}

	// Over-fetch so agent-type filtering still fills k results.
	hits, err := l.vectors.Search(ctx, collection, result.Vector, k*2)
	if err != nil {
		l.logger.Warn(ctx, "vector search failed",
			zap.String("collection", collection),
			zap.Error(err))
		return nil
	}

	ids := make([]string, 0, k)
	for _, hit := range hits {
		if float64(hit.Score) < l.simThreshold {
			continue
		}
		if hit.Metadata["agent_type"] != agentType {
			continue
		}
		ids = append(ids, hit.ID)
		if len(ids) == k {
			break
		}
	}
	return ids
}

// GetAccuracyStats aggregates review outcomes for a tenant and agent type.
func (l *Ledger) GetAccuracyStats(ctx context.Context, tenantID, agentType string) (*AccuracyStats, error) {
	return l.store.GetAccuracyStats(ctx, tenantID, agentType)
}

// Wait blocks until all in-flight asynchronous vector writes have finished.
// Called on shutdown and by tests asserting on the vector index.
func (l *Ledger) Wait() {
	l.wg.Wait()
}

// Close waits for pending vector writes and closes the relational store.
func (l *Ledger) Close() error {
	l.wg.Wait()
	return l.store.Close()
}
