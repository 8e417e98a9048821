package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Smashkat12/crechebooks-sub006/internal/config"
	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
)

// maxInputLength caps a single embedding input. The caller sanitizes content;
// the pipeline only enforces length and non-emptiness.
const maxInputLength = 8192

// Result is the outcome of a single embed call.
type Result struct {
	// Vector is the embedding. Its length always equals Dimensions.
	Vector []float32

	// Dimensions is the width of the vector, i.e. the winning provider's
	// declared dimensionality.
	Dimensions int

	// Provider names the provider that produced the vector.
	Provider string

	// Duration is the wall time spent producing the vector, zero on a
	// cache hit.
	Duration time.Duration
}

// Pipeline tries providers strictly in priority order, degrades gracefully,
// and fronts the chain with the single process-wide cache.
type Pipeline struct {
	providers []Provider
	cache     *cache
	logger    *logging.Logger
	metrics   *Metrics
}

// NewPipeline builds the provider chain from configuration. The remote and
// local providers are optional (a failed local model init is logged, not
// fatal); the hash fallback is always constructed and always last unless
// preferred. At least the fallback is guaranteed present.
func NewPipeline(ctx context.Context, cfg config.EmbeddingsConfig, logger *logging.Logger, metrics *Metrics) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("embeddings")

	var providers []Provider

	remote, err := NewRemoteProvider(RemoteConfig{
		BaseURL:   cfg.RemoteBaseURL,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		Timeout:   cfg.RemoteTimeout.Duration(),
		RateLimit: cfg.RemoteRateLimit,
		Dimension: detectDimensionFromModel(cfg.Model),
	})
	if err != nil {
		logger.Warn(ctx, "remote embedding provider not configured", zap.Error(err))
	} else {
		providers = append(providers, remote)
	}

	local, err := NewFastEmbedProvider(FastEmbedConfig{
		Model:    cfg.Model,
		CacheDir: cfg.LocalCacheDir,
	})
	if err != nil {
		logger.Warn(ctx, "local embedding provider unavailable", zap.Error(err))
	} else {
		providers = append(providers, local)
	}

	fallback, err := NewHashProvider(cfg.HashDimensions)
	if err != nil {
		return nil, err
	}
	providers = append(providers, fallback)

	providers = orderProviders(providers, cfg.ProviderPreference)

	c, err := newCache(cfg.CacheMaxEntries, cfg.CacheTTL.Duration())
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		providers: providers,
		cache:     c,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// NewPipelineWithProviders builds a pipeline over an explicit chain.
// Used by tests and by callers with pre-built providers.
func NewPipelineWithProviders(providers []Provider, cacheEntries int, cacheTTL time.Duration, logger *logging.Logger, metrics *Metrics) (*Pipeline, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: at least one provider required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	c, err := newCache(cacheEntries, cacheTTL)
	if err != nil {
		return nil, err
	}
	return &Pipeline{providers: providers, cache: c, logger: logger, metrics: metrics}, nil
}

// Dimension returns the declared dimensionality of the first provider in the
// chain. Any vector store collection written by this pipeline is created with
// this width; a Result from a lower-priority provider may differ, which the
// store detects and rejects.
func (p *Pipeline) Dimension() int {
	return p.providers[0].Dimension()
}

// Embed produces a vector for the given text, trying providers in order.
// Each provider failure is logged and recovered by advancing the chain; an
// exhausted chain means the deterministic fallback failed, which is a
// configuration bug and returns ErrAllProvidersFailed.
func (p *Pipeline) Embed(ctx context.Context, text string) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if len(text) > maxInputLength {
		return nil, fmt.Errorf("input exceeds maximum length of %d characters", maxInputLength)
	}

	if entry, ok := p.cache.get(text); ok {
		p.metrics.recordCacheHit()
		return &Result{
			Vector:     entry.vector,
			Dimensions: len(entry.vector),
			Provider:   entry.provider,
		}, nil
	}

	var lastErr error
	for _, provider := range p.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.metrics.recordAttempt(provider.Name())
		start := time.Now()

		vector, err := provider.EmbedQuery(ctx, text)
		if err != nil {
			// On timeout or failure, advance to the next provider;
			// never retry the same one.
			p.metrics.recordFailure(provider.Name())
			p.logger.Warn(ctx, "embedding provider failed, advancing chain",
				zap.String("provider", provider.Name()),
				zap.Error(err))
			lastErr = err
			continue
		}

		elapsed := time.Since(start)
		p.metrics.recordSuccess(provider.Name(), elapsed)
		p.cache.set(text, cacheEntry{vector: vector, provider: provider.Name()})

		return &Result{
			Vector:     vector,
			Dimensions: len(vector),
			Provider:   provider.Name(),
			Duration:   elapsed,
		}, nil
	}

	return nil, fmt.Errorf("%w: last error: %v", ErrAllProvidersFailed, lastErr)
}

// Close releases all providers and the cache.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, provider := range p.providers {
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.cache.close()
	return firstErr
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 (bge-small family) if the model is unknown.
func detectDimensionFromModel(model string) int {
	if m, ok := modelMapping[model]; ok {
		return modelDimensions[m]
	}
	switch {
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	default:
		return 384
	}
}
