package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Smashkat12/crechebooks-sub006/internal/config"
	"github.com/Smashkat12/crechebooks-sub006/internal/persist"
)

func TestNewStore_DefaultsToChromem(t *testing.T) {
	layout := &persist.Layout{
		CollectionsDir: t.TempDir(),
		Durable:        true,
	}

	store, err := NewStore(config.VectorStoreConfig{}, layout, nil)
	require.NoError(t, err)
	defer store.Close()

	cs, ok := store.(*ChromemStore)
	require.True(t, ok)
	assert.Equal(t, layout.CollectionsDir, cs.config.Path)
}

func TestNewStore_NonDurableLayoutIsInMemory(t *testing.T) {
	layout := &persist.Layout{
		CollectionsDir: t.TempDir(),
		Durable:        false,
	}

	store, err := NewStore(config.VectorStoreConfig{Provider: "chromem"}, layout, nil)
	require.NoError(t, err)
	defer store.Close()

	cs, ok := store.(*ChromemStore)
	require.True(t, ok)
	assert.Empty(t, cs.config.Path, "non-durable layout must not write collections to disk")

	// The in-memory store still serves reads and writes.
	ctx := tenantCtx("acme")
	require.NoError(t, store.EnsureCollection(ctx, "decisions_acme", 4))
	_, err = store.Insert(ctx, "decisions_acme", []Document{
		{ID: "d1", Content: "ephemeral", Embedding: unitVector(4, 0)},
	})
	require.NoError(t, err)
}

func TestNewStore_UnknownProvider(t *testing.T) {
	_, err := NewStore(config.VectorStoreConfig{Provider: "pinecone"}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
