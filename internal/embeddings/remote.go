package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Smashkat12/crechebooks-sub006/internal/config"
)

// RemoteConfig holds configuration for the remote embedding provider.
type RemoteConfig struct {
	// BaseURL is the base URL for the embedding API (TEI-compatible).
	BaseURL string

	// Model is the embedding model to use.
	Model string

	// APIKey is the API key (optional for TEI).
	APIKey config.Secret

	// Timeout bounds a single embed call. Required; the pipeline relies on
	// it to advance the chain instead of hanging on a dead endpoint.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. 0 disables limiting.
	RateLimit float64

	// Dimension is the declared output width of the configured model.
	Dimension int
}

// Validate validates the configuration.
func (c RemoteConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension required", ErrInvalidConfig)
	}
	return nil
}

// RemoteProvider generates embeddings via an HTTP text-embeddings-inference
// endpoint. Highest quality, highest latency; may fail on network, auth or
// rate-limit errors, all of which the pipeline treats as ProviderUnavailable.
type RemoteProvider struct {
	config  RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewRemoteProvider creates a remote provider with the given configuration.
func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &RemoteProvider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}, nil
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// Name implements Provider.
func (p *RemoteProvider) Name() string { return ProviderRemote }

// Dimension implements Provider.
func (p *RemoteProvider) Dimension() int { return p.config.Dimension }

// EmbedQuery generates an embedding for a single query.
func (p *RemoteProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vectors, err := p.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrProviderUnavailable)
	}
	return vectors[0], nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *RemoteProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	return p.embed(ctx, texts)
}

func (p *RemoteProvider) embed(ctx context.Context, inputs interface{}) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", ErrProviderUnavailable, err)
		}
	}

	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey.IsSet() {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey.Value())
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrProviderUnavailable, err)
	}

	return vectors, nil
}

// Close is a no-op; the provider holds no persistent connections.
func (p *RemoteProvider) Close() error { return nil }
