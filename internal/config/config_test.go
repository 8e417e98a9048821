package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Memory.BootstrapEnabled)
	assert.Equal(t, "remote", cfg.Embeddings.ProviderPreference)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, 3, cfg.Learning.PromotionThreshold)
	assert.Equal(t, 0.55, cfg.Learning.SimilarityThreshold)
	assert.Equal(t, 384, cfg.Embeddings.HashDimensions)
	assert.Equal(t, 5*time.Second, cfg.Embeddings.RemoteTimeout.Duration())

	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Memory.BootstrapEnabled)
	assert.Equal(t, 3, cfg.Learning.PromotionThreshold)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
memory:
  data_directory: /data/agentmem
  bootstrap_enabled: false
embeddings:
  provider_preference: local
  remote_timeout: 2s
learning:
  promotion_threshold: 5
  similarity_threshold: 0.8
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/agentmem", cfg.Memory.DataDirectory)
	assert.False(t, cfg.Memory.BootstrapEnabled)
	assert.Equal(t, "local", cfg.Embeddings.ProviderPreference)
	assert.Equal(t, 2*time.Second, cfg.Embeddings.RemoteTimeout.Duration())
	assert.Equal(t, 5, cfg.Learning.PromotionThreshold)
	assert.Equal(t, 0.8, cfg.Learning.SimilarityThreshold)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("learning:\n  promotion_threshold: 5\n"), 0o600))

	t.Setenv("LEARNING_PROMOTION_THRESHOLD", "7")
	t.Setenv("MEMORY_DATA_DIRECTORY", "/var/lib/agentmem")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Learning.PromotionThreshold)
	assert.Equal(t, "/var/lib/agentmem", cfg.Memory.DataDirectory)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "bad provider preference",
			mutate: func(c *Config) { c.Embeddings.ProviderPreference = "gpu" },
		},
		{
			name:   "bad vector store provider",
			mutate: func(c *Config) { c.VectorStore.Provider = "milvus" },
		},
		{
			name:   "similarity threshold out of range",
			mutate: func(c *Config) { c.Learning.SimilarityThreshold = 1.5 },
		},
		{
			name:   "quality threshold out of range",
			mutate: func(c *Config) { c.Learning.QualityThreshold = -0.1 },
		},
		{
			name:   "promotion threshold below one",
			mutate: func(c *Config) { c.Learning.PromotionThreshold = 0 },
		},
		{
			name:   "qdrant port out of range",
			mutate: func(c *Config) { c.VectorStore.Provider = "qdrant"; c.VectorStore.Qdrant.Port = 70000 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "hunter2", s.Value())
	assert.True(t, s.IsSet())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hunter2")
}
