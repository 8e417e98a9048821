package embeddings

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// cacheEntry is the stored value; the provider name travels with the vector
// so cache hits report which provider originally produced them.
type cacheEntry struct {
	vector   []float32
	provider string
}

// cache is the single process-wide embedding cache sitting in front of the
// provider chain. Bounded entries, bounded TTL, keyed by normalized text.
// Callers must not layer a second cache on top.
type cache struct {
	inner *ristretto.Cache
	ttl   time.Duration
}

func newCache(maxEntries int, ttl time.Duration) (*cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config{
		// 10x counters per entry, per ristretto guidance.
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &cache{inner: inner, ttl: ttl}, nil
}

func (c *cache) get(text string) (cacheEntry, bool) {
	v, ok := c.inner.Get(cacheKey(text))
	if !ok {
		return cacheEntry{}, false
	}
	entry, ok := v.(cacheEntry)
	return entry, ok
}

func (c *cache) set(text string, entry cacheEntry) {
	c.inner.SetWithTTL(cacheKey(text), entry, 1, c.ttl)
}

func (c *cache) close() {
	c.inner.Close()
}

// cacheKey normalizes text so trivially different spellings share an entry.
func cacheKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
