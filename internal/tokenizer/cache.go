package tokenizer

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

// DefaultCacheEntries bounds how many distinct strings CachedCounter remembers.
const DefaultCacheEntries = 50_000

// CachedCounter memoizes per-string token counts. Chat clients resend the
// whole conversation on every turn, so earlier messages hit the cache.
type CachedCounter struct {
	next  Tokenizer
	cache *ristretto.Cache[string, int]
}

// NewCachedCounter wraps next with a ristretto cache holding up to maxEntries counts.
func NewCachedCounter(next Tokenizer, maxEntries int64) (*CachedCounter, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, int]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}
	return &CachedCounter{next: next, cache: cache}, nil
}

// CountTokens returns the cached count for (model, text) or computes it.
func (c *CachedCounter) CountTokens(text string, model string) (int, error) {
	if text == "" {
		return 0, nil
	}

	key := cacheKey(text, model)
	if n, ok := c.cache.Get(key); ok {
		return n, nil
	}

	n, err := c.next.CountTokens(text, model)
	if err != nil {
		return 0, err
	}
	c.cache.Set(key, n, 1)
	return n, nil
}

// CountMessages counts a transcript using cached per-string counts.
func (c *CachedCounter) CountMessages(messages []types.Message, model string) (int, error) {
	return countMessages(c.CountTokens, messages, model)
}

// Close stops the cache's background goroutines.
func (c *CachedCounter) Close() {
	c.cache.Close()
}

// cacheKey keys by encoding rather than model so aliases share entries.
func cacheKey(text, model string) string {
	return resolveEncoding(model) + "\x00" + text
}
