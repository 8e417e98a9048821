// Package config provides configuration loading for the categorization memory store.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the memory store.
type Config struct {
	Memory      MemoryConfig      `koanf:"memory"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Learning    LearningConfig    `koanf:"learning"`
	Logging     LoggingConfig     `koanf:"logging"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// MemoryConfig controls storage locations and cold-start behavior.
type MemoryConfig struct {
	// DataDirectory is the base directory for all persisted state
	// (vector collections and the decision ledger).
	DataDirectory string `koanf:"data_directory"`

	// BootstrapEnabled gates the one-time historical replay at startup.
	BootstrapEnabled bool `koanf:"bootstrap_enabled"`
}

// EmbeddingsConfig controls the embedding provider chain.
type EmbeddingsConfig struct {
	// ProviderPreference orders the chain: "remote", "local" or "hash".
	// The named provider is tried first; the rest keep their relative order.
	ProviderPreference string `koanf:"provider_preference"`

	// RemoteBaseURL is the base URL for the remote embedding API (TEI-compatible).
	RemoteBaseURL string `koanf:"remote_base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// APIKey authenticates against the remote provider (optional for TEI).
	APIKey Secret `koanf:"api_key"`

	// RemoteTimeout bounds a single remote embedding call. On timeout the
	// pipeline advances to the next provider.
	RemoteTimeout Duration `koanf:"remote_timeout"`

	// RemoteRateLimit is the maximum remote requests per second. 0 disables.
	RemoteRateLimit float64 `koanf:"remote_rate_limit"`

	// LocalCacheDir is the directory for local model files.
	LocalCacheDir string `koanf:"local_cache_dir"`

	// HashDimensions is the width of the deterministic fallback projection.
	HashDimensions int `koanf:"hash_dimensions"`

	// CacheMaxEntries bounds the process-wide embedding cache.
	CacheMaxEntries int `koanf:"cache_max_entries"`

	// CacheTTL bounds the lifetime of cached embeddings.
	CacheTTL Duration `koanf:"cache_ttl"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`

	// Compress enables gzip compression for the embedded store.
	Compress bool `koanf:"compress"`

	Qdrant QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig holds connection settings for the optional remote backend.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// LearningConfig tunes the pattern learner and similarity recall.
type LearningConfig struct {
	// QualityThreshold is the minimum decision confidence (0-1 scale) for
	// a historical decision to be replayed during bootstrap.
	QualityThreshold float64 `koanf:"quality_threshold"`

	// TrajectoryCapacity bounds the learner's in-process trajectory queue.
	TrajectoryCapacity int `koanf:"trajectory_capacity"`

	// PromotionThreshold is the number of consistent corrections required
	// before a learned pattern is materialized.
	PromotionThreshold int `koanf:"promotion_threshold"`

	// SimilarityThreshold is the minimum similarity score for a vector
	// match to count as "similar enough"; below it the ledger falls back
	// to exact fingerprint lookup.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`

	// FlushInterval is the cadence at which queued trajectories are
	// written to the learning index absent an explicit learn-now trigger.
	FlushInterval Duration `koanf:"flush_interval"`
}

// LoggingConfig is the logging section of the file/env configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig controls the Prometheus endpoint exposed by the daemon.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Memory.DataDirectory == "" {
		cfg.Memory.DataDirectory = "~/.local/share/agentmem"
	}

	if cfg.Embeddings.ProviderPreference == "" {
		cfg.Embeddings.ProviderPreference = "remote"
	}
	if cfg.Embeddings.RemoteBaseURL == "" {
		cfg.Embeddings.RemoteBaseURL = "http://localhost:8080"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.RemoteTimeout == 0 {
		cfg.Embeddings.RemoteTimeout = Duration(5 * time.Second)
	}
	if cfg.Embeddings.HashDimensions == 0 {
		cfg.Embeddings.HashDimensions = 384
	}
	if cfg.Embeddings.CacheMaxEntries == 0 {
		cfg.Embeddings.CacheMaxEntries = 4096
	}
	if cfg.Embeddings.CacheTTL == 0 {
		cfg.Embeddings.CacheTTL = Duration(15 * time.Minute)
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}

	if cfg.Learning.QualityThreshold == 0 {
		cfg.Learning.QualityThreshold = 0.7
	}
	if cfg.Learning.TrajectoryCapacity == 0 {
		cfg.Learning.TrajectoryCapacity = 256
	}
	if cfg.Learning.PromotionThreshold == 0 {
		cfg.Learning.PromotionThreshold = 3
	}
	if cfg.Learning.SimilarityThreshold == 0 {
		cfg.Learning.SimilarityThreshold = 0.55
	}
	if cfg.Learning.FlushInterval == 0 {
		cfg.Learning.FlushInterval = Duration(30 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9464"
	}
}

// Validate checks the configuration for contradictions and out-of-range values.
func (c *Config) Validate() error {
	switch c.Embeddings.ProviderPreference {
	case "remote", "local", "hash":
	default:
		return fmt.Errorf("embeddings.provider_preference must be remote, local or hash, got %q", c.Embeddings.ProviderPreference)
	}

	if c.Embeddings.HashDimensions <= 0 {
		return fmt.Errorf("embeddings.hash_dimensions must be positive, got %d", c.Embeddings.HashDimensions)
	}
	if c.Embeddings.RemoteRateLimit < 0 {
		return fmt.Errorf("embeddings.remote_rate_limit cannot be negative")
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("vectorstore.provider must be chromem or qdrant, got %q", c.VectorStore.Provider)
	}
	if c.VectorStore.Provider == "qdrant" {
		if c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("vectorstore.qdrant.port out of range: %d", c.VectorStore.Qdrant.Port)
		}
	}

	if c.Learning.QualityThreshold < 0 || c.Learning.QualityThreshold > 1 {
		return fmt.Errorf("learning.quality_threshold must be in [0,1], got %f", c.Learning.QualityThreshold)
	}
	if c.Learning.SimilarityThreshold < 0 || c.Learning.SimilarityThreshold > 1 {
		return fmt.Errorf("learning.similarity_threshold must be in [0,1], got %f", c.Learning.SimilarityThreshold)
	}
	if c.Learning.PromotionThreshold < 1 {
		return fmt.Errorf("learning.promotion_threshold must be at least 1, got %d", c.Learning.PromotionThreshold)
	}
	if c.Learning.TrajectoryCapacity < 1 {
		return fmt.Errorf("learning.trajectory_capacity must be at least 1, got %d", c.Learning.TrajectoryCapacity)
	}

	return nil
}
