package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHashProvider_RejectsBadDimension(t *testing.T) {
	_, err := NewHashProvider(0)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewHashProvider(-5)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHashProvider_Deterministic(t *testing.T) {
	p, err := NewHashProvider(128)
	require.NoError(t, err)

	a, err := p.EmbedQuery(context.Background(), "Woolworths Foods")
	require.NoError(t, err)
	b, err := p.EmbedQuery(context.Background(), "Woolworths Foods")
	require.NoError(t, err)

	assert.Equal(t, a, b, "identical input must produce identical vectors")
	assert.Len(t, a, 128)
}

func TestHashProvider_UnitNorm(t *testing.T) {
	p, err := NewHashProvider(64)
	require.NoError(t, err)

	for _, text := range []string{"coffee shop", "SALARY MARCH 2026", "x", "payment ref 8841-AA"} {
		vec, err := p.EmbedQuery(context.Background(), text)
		require.NoError(t, err)

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5, "vector for %q must be unit length", text)
	}
}

func TestHashProvider_SimilarTextsOverlap(t *testing.T) {
	p, err := NewHashProvider(256)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := p.EmbedQuery(ctx, "woolworths foods sandton")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "woolworths foods rosebank")
	require.NoError(t, err)
	c, err := p.EmbedQuery(ctx, "annual insurance premium")
	require.NoError(t, err)

	simAB := dot(a, b)
	simAC := dot(a, c)
	assert.Greater(t, simAB, simAC, "shared tokens must score higher than disjoint tokens")
}

func TestHashProvider_EmptyInput(t *testing.T) {
	p, err := NewHashProvider(64)
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestHashProvider_DegenerateInput(t *testing.T) {
	p, err := NewHashProvider(32)
	require.NoError(t, err)

	// Punctuation-only input has no tokens but must still yield a valid
	// unit vector, since this provider can never fail.
	vec, err := p.EmbedQuery(context.Background(), "!!! ???")
	require.NoError(t, err)
	assert.Len(t, vec, 32)
	assert.Equal(t, float32(1), vec[0])
}

func TestHashProvider_EmbedDocuments(t *testing.T) {
	p, err := NewHashProvider(64)
	require.NoError(t, err)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	single, err := p.EmbedQuery(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[0])
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
