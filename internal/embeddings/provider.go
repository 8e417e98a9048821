// Package embeddings turns sanitized text into fixed-width vectors via an
// ordered provider chain with graceful degradation.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrProviderUnavailable indicates a specific provider failed; the
	// pipeline recovers by advancing the chain, never surfacing this to
	// callers.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrAllProvidersFailed indicates the entire chain failed. The
	// deterministic fallback cannot fail, so this is a configuration bug
	// and is fatal.
	ErrAllProvidersFailed = errors.New("all embedding providers failed")
)

// Provider is a single embedding backend in the fallback chain.
type Provider interface {
	// Name identifies the provider in results, logs and metrics.
	Name() string

	// Dimension returns the fixed output width of this provider.
	Dimension() int

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases resources held by the provider.
	Close() error
}

// Provider name constants, also used as the provider_preference config values.
const (
	ProviderRemote = "remote"
	ProviderLocal  = "local"
	ProviderHash   = "hash"
)

// orderProviders moves the preferred provider to the front, keeping the
// relative order of the rest. The hash fallback always stays last unless
// explicitly preferred.
func orderProviders(providers []Provider, preference string) []Provider {
	for i, p := range providers {
		if p.Name() == preference && i != 0 {
			reordered := make([]Provider, 0, len(providers))
			reordered = append(reordered, p)
			reordered = append(reordered, providers[:i]...)
			reordered = append(reordered, providers[i+1:]...)
			return reordered
		}
	}
	return providers
}
