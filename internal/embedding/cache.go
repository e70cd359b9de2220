package embedding

import (
	"container/list"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/joubun/internal/kanji"
)

// EmbeddingCache is an LRU cache of query embeddings. Keys are normalized
// (trimmed, full-width digits folded) so "民法第１条" and "民法第1条" share an
// entry. Returned slices are shared and must not be modified.
type EmbeddingCache struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	hits     atomic.Int64
	misses   atomic.Int64
}

type cacheEntry struct {
	key    string
	vector []float32
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// NewEmbeddingCache creates a cache holding at most capacity embeddings.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func cacheKey(text string) string {
	return kanji.NormalizeDigits(strings.TrimSpace(text))
}

// Get returns the cached embedding for text.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	key := cacheKey(text)
	c.mu.Lock()
	elem, ok := c.entries[key]
	if ok {
		c.order.MoveToFront(elem)
	}
	c.mu.Unlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return elem.Value.(*cacheEntry).vector, true
}

// Set stores the embedding for text, evicting the least recently used entry
// when full.
func (c *EmbeddingCache) Set(text string, vector []float32) {
	if c.capacity <= 0 {
		return
	}
	key := cacheKey(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).vector = vector
		c.order.MoveToFront(elem)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, vector: vector})
	for c.order.Len() > c.capacity {
		oldest := c.order.Remove(c.order.Back()).(*cacheEntry)
		delete(c.entries, oldest.key)
	}
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the entry count and hit/miss counters.
func (c *EmbeddingCache) Stats() CacheStats {
	return CacheStats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
