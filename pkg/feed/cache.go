package feed

import (
	"context"
	"sync"
	"time"
)

// CachedFeed wraps a MarketDataFeed and memoizes 1-minute bar fetches for a
// short TTL, so the scanner and the per-ticker evaluation in the same poll
// iteration share a single fetch. Gainer lists pass through uncached.
type CachedFeed struct {
	inner MarketDataFeed
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	bars      []Bar
	count     int
	fetchedAt time.Time
}

// NewCachedFeed creates a caching wrapper with the given TTL.
func NewCachedFeed(inner MarketDataFeed, ttl time.Duration) *CachedFeed {
	return &CachedFeed{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedFeed) TopGainers(ctx context.Context) ([]GainerEntry, error) {
	return c.inner.TopGainers(ctx)
}

func (c *CachedFeed) PreMarketGainers(ctx context.Context) ([]GainerEntry, error) {
	return c.inner.PreMarketGainers(ctx)
}

func (c *CachedFeed) AfterMarketGainers(ctx context.Context) ([]GainerEntry, error) {
	return c.inner.AfterMarketGainers(ctx)
}

// OneMinuteBars returns cached bars when a fresh-enough entry with at least
// count bars exists, otherwise fetches and stores.
func (c *CachedFeed) OneMinuteBars(ctx context.Context, tickerID string, count int) ([]Bar, error) {
	c.mu.Lock()
	entry, ok := c.entries[tickerID]
	c.mu.Unlock()

	if ok && entry.count >= count && time.Since(entry.fetchedAt) < c.ttl {
		bars := entry.bars
		if len(bars) > count {
			bars = bars[len(bars)-count:]
		}
		return bars, nil
	}

	bars, err := c.inner.OneMinuteBars(ctx, tickerID, count)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[tickerID] = cacheEntry{bars: bars, count: count, fetchedAt: time.Now()}
	c.mu.Unlock()

	return bars, nil
}

// Invalidate drops the cached bars for a ticker.
func (c *CachedFeed) Invalidate(tickerID string) {
	c.mu.Lock()
	delete(c.entries, tickerID)
	c.mu.Unlock()
}
