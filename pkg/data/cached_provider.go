package data

import (
	"sync"

	"github.com/quantlab/signal-backtester/pkg/types"
)

// MemoryCache is an in-memory Cache. Stored and returned slices are
// copied so callers cannot mutate cached series.
type MemoryCache struct {
	mu    sync.RWMutex
	cache map[string][]types.OHLCV
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: make(map[string][]types.OHLCV)}
}

func (c *MemoryCache) Get(key string) ([]types.OHLCV, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	out := make([]types.OHLCV, len(data))
	copy(out, data)
	return out, true
}

func (c *MemoryCache) Set(key string, data []types.OHLCV) {
	stored := make([]types.OHLCV, len(data))
	copy(stored, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = stored
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string][]types.OHLCV)
}

func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// CachedProvider decorates a Provider with a MemoryCache, so repeated runs
// over the same file do not reparse it.
type CachedProvider struct {
	provider Provider
	cache    Cache
}

func NewCachedProvider(provider Provider) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    NewMemoryCache(),
	}
}

func (p *CachedProvider) GetName() string {
	return p.provider.GetName() + " (cached)"
}

func (p *CachedProvider) LoadData(source string) ([]types.OHLCV, error) {
	if data, ok := p.cache.Get(source); ok {
		return data, nil
	}

	data, err := p.provider.LoadData(source)
	if err != nil {
		return nil, err
	}
	p.cache.Set(source, data)
	return data, nil
}
