package feed

import (
	"context"
	"fmt"
	"sync"
)

// StaticFeed serves canned gainer lists and bar sequences. It backs the
// replay command and tests.
type StaticFeed struct {
	mu      sync.Mutex
	gainers []GainerEntry
	bars    map[string][]Bar
}

// NewStaticFeed creates an empty static feed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{
		bars: make(map[string][]Bar),
	}
}

// SetGainers replaces the gainer list served by all three gainer methods.
func (f *StaticFeed) SetGainers(entries []GainerEntry) {
	f.mu.Lock()
	f.gainers = entries
	f.mu.Unlock()
}

// SetBars replaces the bar sequence for a ticker.
func (f *StaticFeed) SetBars(tickerID string, bars []Bar) {
	f.mu.Lock()
	f.bars[tickerID] = bars
	f.mu.Unlock()
}

// AppendBar appends one bar to a ticker's sequence.
func (f *StaticFeed) AppendBar(tickerID string, bar Bar) {
	f.mu.Lock()
	f.bars[tickerID] = append(f.bars[tickerID], bar)
	f.mu.Unlock()
}

func (f *StaticFeed) TopGainers(ctx context.Context) ([]GainerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GainerEntry(nil), f.gainers...), nil
}

func (f *StaticFeed) PreMarketGainers(ctx context.Context) ([]GainerEntry, error) {
	return f.TopGainers(ctx)
}

func (f *StaticFeed) AfterMarketGainers(ctx context.Context) ([]GainerEntry, error) {
	return f.TopGainers(ctx)
}

// OneMinuteBars returns the most recent count bars for a ticker, oldest first.
func (f *StaticFeed) OneMinuteBars(ctx context.Context, tickerID string, count int) ([]Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bars, ok := f.bars[tickerID]
	if !ok {
		return nil, fmt.Errorf("no bars for ticker %s", tickerID)
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return append([]Bar(nil), bars...), nil
}
