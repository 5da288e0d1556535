package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of embeddings kept in memory.
const DefaultCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache so repeated queries
// skip the encoder round-trip.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// Verify interface implementation at compile time
var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder creates a cached embedder wrapping the given encoder.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// cacheKey keys entries by encoder identity and text.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached embedding when available, otherwise computes and
// caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds the uncached subset in one inner call and stitches the
// cached rows back into position.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, text)
		}
	}

	if len(missTexts) > 0 {
		vecs, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, i := range missIdx {
			results[i] = vecs[j]
			c.cache.Add(c.cacheKey(texts[i]), vecs[j])
		}
	}

	return results, nil
}

// Dimensions returns the inner encoder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the inner encoder's identity.
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Available reports the inner encoder's availability.
func (c *CachedEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close closes the inner encoder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
