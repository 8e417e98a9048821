package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// HashProvider projects text into a fixed-width space by feature hashing.
// It carries no semantic signal beyond token overlap, but it is fully
// deterministic, never fails and is never unavailable, which makes it the
// mandatory terminal link of the provider chain.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates the deterministic fallback provider.
func NewHashProvider(dimension int) (*HashProvider, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension)
	}
	return &HashProvider{dimension: dimension}, nil
}

// Name implements Provider.
func (p *HashProvider) Name() string { return ProviderHash }

// Dimension implements Provider.
func (p *HashProvider) Dimension() int { return p.dimension }

// EmbedQuery hashes a single text into a unit vector.
func (p *HashProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	return p.project(text), nil
}

// EmbedDocuments hashes multiple texts.
func (p *HashProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.project(t)
	}
	return out, nil
}

// project applies signed feature hashing: each token lands in a bucket
// derived from its FNV-1a hash, with the hash's top bit choosing the sign.
// Unigrams and bigrams are combined so token order contributes. The result
// is L2-normalized so cosine similarity behaves like the semantic providers.
func (p *HashProvider) project(text string) []float32 {
	vec := make([]float32, p.dimension)
	tokens := tokenize(text)

	for i, tok := range tokens {
		p.accumulate(vec, tok)
		if i+1 < len(tokens) {
			p.accumulate(vec, tok+" "+tokens[i+1])
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Degenerate input (e.g. punctuation only): deterministic unit
		// vector on the first axis so the result is still valid.
		vec[0] = 1
		return vec
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (p *HashProvider) accumulate(vec []float32, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(p.dimension))
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		default:
			return r < 0x80 // keep non-ASCII runes inside tokens
		}
	})
}

// Close is a no-op.
func (p *HashProvider) Close() error { return nil }
