package semantic

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/spigell/talent-ranker/internal/ai"
)

type cacheEntry struct {
	key    string
	vector []float32
}

// CachedEmbedder memoises vectors of an inner embedder in a bounded LRU.
// Only texts that miss the cache are sent to the inner embedder.
type CachedEmbedder struct {
	inner ai.Embedder
	size  int

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element
}

// NewCachedEmbedder wraps inner. A non-positive size disables caching.
func NewCachedEmbedder(inner ai.Embedder, size int) ai.Embedder {
	if size <= 0 {
		return inner
	}
	return &CachedEmbedder{
		inner: inner,
		size:  size,
		order: list.New(),
		items: make(map[string]*list.Element, size),
	}
}

// Model returns the inner model name.
func (c *CachedEmbedder) Model() string { return c.inner.Model() }

// Embed returns vectors for texts, consulting the cache first.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   = make(map[string][]int)
	)

	c.mu.Lock()
	for i, text := range texts {
		if el, ok := c.items[text]; ok {
			c.order.MoveToFront(el)
			out[i] = el.Value.(*cacheEntry).vector
			continue
		}
		if _, queued := slots[text]; !queued {
			missing = append(missing, text)
		}
		slots[text] = append(slots[text], i)
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, text := range missing {
		for _, slot := range slots[text] {
			out[slot] = vectors[i]
		}
		c.put(text, vectors[i])
	}
	return out, nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedEmbedder) put(key string, vector []float32) {
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).vector = vector
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, vector: vector})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}
