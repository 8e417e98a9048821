package vectorstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionRegistry_RegisterAndCheck(t *testing.T) {
	r := newMemoryDimensionRegistry()

	require.NoError(t, r.register("decisions_acme", 384))

	// Same width again is a no-op.
	require.NoError(t, r.register("decisions_acme", 384))

	// A different width is rejected.
	err := r.register("decisions_acme", 768)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// Width checks against the registered value.
	assert.NoError(t, r.check("decisions_acme", 384))
	assert.ErrorIs(t, r.check("decisions_acme", 768), ErrDimensionMismatch)
	assert.ErrorIs(t, r.check("unknown", 384), ErrCollectionNotFound)
}

func TestDimensionRegistry_RejectsBadWidth(t *testing.T) {
	r := newMemoryDimensionRegistry()
	assert.ErrorIs(t, r.register("c", 0), ErrInvalidConfig)
	assert.ErrorIs(t, r.register("c", -1), ErrInvalidConfig)
}

func TestDimensionRegistry_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()

	r, err := newDimensionRegistry(dir)
	require.NoError(t, err)
	require.NoError(t, r.register("decisions_acme", 384))
	require.NoError(t, r.register("patterns_acme", 768))

	// A fresh registry over the same directory sees the same widths.
	reloaded, err := newDimensionRegistry(dir)
	require.NoError(t, err)

	d, ok := reloaded.lookup("decisions_acme")
	require.True(t, ok)
	assert.Equal(t, 384, d)

	assert.ErrorIs(t, reloaded.register("decisions_acme", 512), ErrDimensionMismatch)
}

func TestDimensionRegistry_Remove(t *testing.T) {
	dir := t.TempDir()

	r, err := newDimensionRegistry(dir)
	require.NoError(t, err)
	require.NoError(t, r.register("decisions_acme", 384))
	require.NoError(t, r.remove("decisions_acme"))
	require.NoError(t, r.remove("decisions_acme"), "removing twice is a no-op")

	_, ok := r.lookup("decisions_acme")
	assert.False(t, ok)

	// The registered width may now be replaced.
	require.NoError(t, r.register("decisions_acme", 512))
}

func TestDimensionRegistry_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dimensionsFileName), []byte("{not json"), 0o600))

	_, err := newDimensionRegistry(dir)
	assert.Error(t, err)
}
