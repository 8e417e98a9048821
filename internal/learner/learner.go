// Package learner turns human corrections into learning signals and, once a
// repetition threshold is met, durable patterns.
package learner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub006/internal/ledger"
	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
	"github.com/Smashkat12/crechebooks-sub006/internal/vectorstore"
)

// TrajectoryEntityType names the vector collection family holding learning
// signals; the full collection key is tenant-scoped.
const TrajectoryEntityType = "trajectories"

// flushTimeout bounds one background batch write.
const flushTimeout = 30 * time.Second

// ErrClosed is returned when the learner has been shut down.
var ErrClosed = errors.New("learner is closed")

// Trajectory is a single learning signal: the state observed, the action
// that was (or should have been) taken, and a quality score in [0,1].
type Trajectory struct {
	TenantID string
	State    string
	Action   string
	Quality  float64
}

// PatternLearnResult reports the outcome of processing one correction.
type PatternLearnResult struct {
	// PatternCreated is true when this correction crossed the promotion
	// threshold and a pattern row was created or updated.
	PatternCreated bool

	// Reason explains a false PatternCreated.
	Reason string
}

// Config tunes the learner.
type Config struct {
	// TrajectoryCapacity bounds the in-process signal queue. When full,
	// new signals are dropped and counted, never blocking the caller.
	TrajectoryCapacity int

	// PromotionThreshold is the number of consistent not-yet-applied
	// corrections required before a pattern is materialized.
	PromotionThreshold int

	// FlushInterval is the cadence at which queued trajectories are
	// written to the learning index absent a force-learning trigger.
	FlushInterval time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TrajectoryCapacity == 0 {
		c.TrajectoryCapacity = 256
	}
	if c.PromotionThreshold == 0 {
		c.PromotionThreshold = 3
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = 30 * time.Second
	}
}

type commandKind int

const (
	cmdTrajectory commandKind = iota
	cmdLearnNow
)

// command is one message into the learner's work queue. The force-learning
// trigger travels the same queue as trajectories instead of being a special
// public method.
type command struct {
	kind       commandKind
	trajectory Trajectory
	ack        chan struct{}
}

// Learner consumes corrections: every correction feeds the online learning
// index immediately, and repeated corrections sharing a (tenant, corrected
// value) signature are promoted into a durable ledger pattern.
type Learner struct {
	cfg      Config
	store    *ledger.Store
	embedder ledger.Embedder
	vectors  vectorstore.Store
	logger   *logging.Logger
	metrics  *Metrics

	cmds chan command
	stop chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// NewLearner builds the learner and starts its background flush loop.
// embedder and vectors may be nil only in tests exercising the promotion
// path alone; signals are then counted as drops.
func NewLearner(cfg Config, store *ledger.Store, embedder ledger.Embedder, vectors vectorstore.Store, logger *logging.Logger, metrics *Metrics) (*Learner, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ledger.ErrInvalidInput)
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	l := &Learner{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		logger:   logger.Named("learner"),
		metrics:  metrics,
		cmds:     make(chan command, cfg.TrajectoryCapacity),
		stop:     make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run()
	return l, nil
}

// ProcessCorrection handles one recorded correction.
//
// The correction always feeds the online learning signal first, regardless
// of the threshold. Then not-yet-applied corrections sharing the tenant and
// corrected value are counted; at the promotion threshold a pattern is
// upserted and all contributing corrections flip applied_to_pattern in one
// transaction. Re-processing an already-applied correction is a no-op.
func (l *Learner) ProcessCorrection(ctx context.Context, c *ledger.Correction) (*PatternLearnResult, error) {
	if c == nil || c.TenantID == "" || c.CorrectedValue == "" {
		return nil, fmt.Errorf("%w: correction with tenant and corrected value required", ledger.ErrInvalidInput)
	}

	if c.AppliedToPattern {
		return &PatternLearnResult{
			PatternCreated: false,
			Reason:         "correction already applied to a pattern",
		}, nil
	}

	// Continuous adaptation happens before any threshold check. Human
	// corrections are ground truth, quality 1.
	l.Feed(Trajectory{
		TenantID: c.TenantID,
		State:    ledger.Normalize(c.OriginalValue),
		Action:   c.CorrectedValue,
		Quality:  1,
	})

	count, err := l.store.CountPendingCorrections(ctx, c.TenantID, c.CorrectedValue)
	if err != nil {
		return nil, err
	}
	if count < l.cfg.PromotionThreshold {
		return &PatternLearnResult{
			PatternCreated: false,
			Reason:         fmt.Sprintf("below promotion threshold (%d/%d)", count, l.cfg.PromotionThreshold),
		}, nil
	}

	// Confidence grows with evidence and stays below a manual pattern's 1.0.
	confidence := float64(count) / float64(count+1)
	matchKey := ledger.Normalize(c.OriginalValue)

	flipped, patternWritten, err := l.store.PromotePendingCorrections(ctx, c.TenantID, matchKey, c.CorrectedValue, confidence)
	if err != nil {
		return nil, err
	}
	if flipped == 0 {
		// A concurrent promotion consumed the evidence first.
		return &PatternLearnResult{
			PatternCreated: false,
			Reason:         "corrections already promoted",
		}, nil
	}
	if !patternWritten {
		// The evidence is consumed but a manual pattern holds the key.
		l.logger.Info(ctx, "promotion blocked by manual pattern",
			zap.String("tenant_id", c.TenantID),
			zap.String("match_key", matchKey))
		return &PatternLearnResult{
			PatternCreated: false,
			Reason:         "manual pattern precedence",
		}, nil
	}

	l.metrics.recordPromotion()
	l.logger.Info(ctx, "pattern promoted",
		zap.String("tenant_id", c.TenantID),
		zap.String("match_key", matchKey),
		zap.String("target_value", c.CorrectedValue),
		zap.Int("corrections", flipped))

	return &PatternLearnResult{PatternCreated: true}, nil
}

// Feed enqueues one learning signal without blocking. Returns false when the
// signal was dropped because the queue is full or the learner is closed.
func (l *Learner) Feed(t Trajectory) bool {
	select {
	case <-l.stop:
		l.metrics.recordQueueDrop()
		return false
	default:
	}

	select {
	case l.cmds <- command{kind: cmdTrajectory, trajectory: t}:
		return true
	default:
		l.metrics.recordQueueDrop()
		l.logger.Warn(context.Background(), "trajectory queue full, signal dropped",
			zap.String("tenant_id", t.TenantID))
		return false
	}
}

// LearnNow forces an immediate flush of queued signals and waits for it to
// complete or the context to expire.
func (l *Learner) LearnNow(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case l.cmds <- command{kind: cmdLearnNow, ack: ack}:
	case <-l.stop:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the background loop after a final flush of queued signals.
func (l *Learner) Close() error {
	l.closeOnce.Do(func() {
		close(l.stop)
	})
	l.wg.Wait()
	return nil
}

// run is the background loop: it batches trajectories and flushes them on a
// cadence, on a force-learning command, or at shutdown.
func (l *Learner) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	var batch []Trajectory
	for {
		select {
		case cmd := <-l.cmds:
			switch cmd.kind {
			case cmdTrajectory:
				batch = append(batch, cmd.trajectory)
			case cmdLearnNow:
				batch = l.flush(batch)
				close(cmd.ack)
			}

		case <-ticker.C:
			batch = l.flush(batch)

		case <-l.stop:
			// Drain whatever is already queued, then flush once.
			for {
				select {
				case cmd := <-l.cmds:
					if cmd.kind == cmdTrajectory {
						batch = append(batch, cmd.trajectory)
					} else {
						close(cmd.ack)
					}
					continue
				default:
				}
				break
			}
			l.flush(batch)
			return
		}
	}
}

// flush writes a batch of trajectories into the per-tenant learning
// collections. Failures are logged per signal and never retried; the ledger
// remains the source of truth.
func (l *Learner) flush(batch []Trajectory) []Trajectory {
	if len(batch) == 0 {
		return batch
	}
	l.metrics.recordFlush()

	if l.embedder == nil || l.vectors == nil {
		return batch[:0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	written := 0
	for _, t := range batch {
		if err := l.writeTrajectory(ctx, t); err != nil {
			l.logger.Warn(ctx, "trajectory write failed",
				zap.String("tenant_id", t.TenantID),
				zap.Error(err))
			continue
		}
		written++
	}
	l.metrics.recordTrajectories(written)

	l.logger.Debug(ctx, "trajectory batch flushed",
		zap.Int("written", written),
		zap.Int("batch", len(batch)))
	return batch[:0]
}

func (l *Learner) writeTrajectory(ctx context.Context, t Trajectory) error {
	// Flush runs on a detached context; scope it to the signal's tenant
	// so the store's isolation check passes.
	ctx = vectorstore.ContextWithTenant(ctx, &vectorstore.TenantInfo{TenantID: t.TenantID})

	result, err := l.embedder.Embed(ctx, t.State)
	if err != nil {
		return err
	}

	collection, err := vectorstore.CollectionKey(TrajectoryEntityType, t.TenantID)
	if err != nil {
		return err
	}
	if err := l.vectors.EnsureCollection(ctx, collection, result.Dimensions); err != nil {
		return err
	}

	_, err = l.vectors.Insert(ctx, collection, []vectorstore.Document{{
		ID:        uuid.NewString(),
		Content:   t.State,
		Embedding: result.Vector,
		Metadata: map[string]string{
			"action":  t.Action,
			"quality": fmt.Sprintf("%.4f", t.Quality),
		},
	}})
	return err
}
