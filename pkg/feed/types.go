package feed

import (
	"context"
	"time"
)

// Bar represents one OHLCV candle with its session VWAP. Bars are immutable
// once recorded.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	VWAP   float64
}

// GainerEntry is one row of a top-gainers (or top-losers) feed.
type GainerEntry struct {
	Symbol    string
	TickerID  string
	ChangePct float64 // 0.09 means +9%
}

// MarketDataFeed is the market-data surface the bot scans and evaluates with.
// Implementations return an error for transport failures; callers treat that
// as "no data this cycle" and retry on the next poll.
type MarketDataFeed interface {
	// TopGainers returns the regular-hours gainer list.
	TopGainers(ctx context.Context) ([]GainerEntry, error)

	// PreMarketGainers returns the pre-market gainer list.
	PreMarketGainers(ctx context.Context) ([]GainerEntry, error)

	// AfterMarketGainers returns the after-hours gainer list.
	AfterMarketGainers(ctx context.Context) ([]GainerEntry, error)

	// OneMinuteBars returns up to count recent 1-minute bars, oldest first.
	OneMinuteBars(ctx context.Context, tickerID string, count int) ([]Bar, error)
}
