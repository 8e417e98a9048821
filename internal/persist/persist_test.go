package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub006/internal/config"
	"github.com/Smashkat12/crechebooks-sub006/internal/logging"
)

func TestResolver_CreatesLayout(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Memory.DataDirectory = dir

	r := NewResolver(cfg, logging.NewNop())
	layout, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, dir, layout.DataDir)
	assert.Equal(t, filepath.Join(dir, "collections"), layout.CollectionsDir)
	assert.Equal(t, filepath.Join(dir, "ledger", "agentmem.db"), layout.LedgerPath)
	assert.True(t, layout.BootstrapEnabled)

	// Subdirectories must exist after resolution.
	for _, d := range []string{layout.CollectionsDir, filepath.Dir(layout.LedgerPath)} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolver_TempDirIsNotDurable(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.DataDirectory = t.TempDir()

	layout, err := NewResolver(cfg, logging.NewNop()).Resolve(context.Background())
	require.NoError(t, err)
	assert.False(t, layout.Durable, "temp dirs must be treated as ephemeral")
}

func TestResolver_PersistentRootOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(persistentRootEnv, dir)

	cfg := config.Default()
	cfg.Memory.DataDirectory = filepath.Join(dir, "agentmem")

	layout, err := NewResolver(cfg, logging.NewNop()).Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, layout.Durable)
}

func TestResolver_CachesResult(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.DataDirectory = t.TempDir()

	r := NewResolver(cfg, logging.NewNop())
	first, err := r.Resolve(context.Background())
	require.NoError(t, err)

	// Mutating config after first resolution must not change the layout.
	cfg.Memory.DataDirectory = "/nowhere"
	second, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestResolver_BootstrapDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.DataDirectory = t.TempDir()
	cfg.Memory.BootstrapEnabled = false

	layout, err := NewResolver(cfg, logging.NewNop()).Resolve(context.Background())
	require.NoError(t, err)
	assert.False(t, layout.BootstrapEnabled)
}
