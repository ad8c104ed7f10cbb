package feed

import (
	"context"
	"testing"
	"time"
)

// countingFeed wraps StaticFeed and counts bar fetches hitting the inner
// feed.
type countingFeed struct {
	*StaticFeed
	barCalls int
}

func (c *countingFeed) OneMinuteBars(ctx context.Context, tickerID string, count int) ([]Bar, error) {
	c.barCalls++
	return c.StaticFeed.OneMinuteBars(ctx, tickerID, count)
}

func TestCachedFeedMemoizesBars(t *testing.T) {
	ctx := context.Background()
	inner := &countingFeed{StaticFeed: NewStaticFeed()}
	inner.SetBars("t-xyz", []Bar{{Close: 10}, {Close: 11}})

	cached := NewCachedFeed(inner, time.Minute)

	if _, err := cached.OneMinuteBars(ctx, "t-xyz", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.OneMinuteBars(ctx, "t-xyz", 2); err != nil {
		t.Fatal(err)
	}
	if inner.barCalls != 1 {
		t.Errorf("inner calls = %d, want 1 within the TTL", inner.barCalls)
	}

	// a bigger window cannot be served from the smaller cached one
	if _, err := cached.OneMinuteBars(ctx, "t-xyz", 5); err != nil {
		t.Fatal(err)
	}
	if inner.barCalls != 2 {
		t.Errorf("inner calls = %d, want 2 after a wider request", inner.barCalls)
	}
}

func TestCachedFeedInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &countingFeed{StaticFeed: NewStaticFeed()}
	inner.SetBars("t-xyz", []Bar{{Close: 10}})

	cached := NewCachedFeed(inner, time.Minute)
	if _, err := cached.OneMinuteBars(ctx, "t-xyz", 1); err != nil {
		t.Fatal(err)
	}
	cached.Invalidate("t-xyz")
	if _, err := cached.OneMinuteBars(ctx, "t-xyz", 1); err != nil {
		t.Fatal(err)
	}
	if inner.barCalls != 2 {
		t.Errorf("inner calls = %d, want 2 after invalidate", inner.barCalls)
	}
}
