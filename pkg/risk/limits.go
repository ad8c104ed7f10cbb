package risk

import (
	"sync"
	"time"
)

// DailyLimits accumulates realized P&L for the trading day and gates new
// entries once the configured loss cap is breached. A zero cap disables the
// gate. The counters reset when a trade lands on a new calendar day in the
// session's location; after-hours sessions cross UTC midnight mid-day, so
// the rollover must follow local time.
type DailyLimits struct {
	mu           sync.Mutex
	maxDailyLoss float64
	loc          *time.Location

	day      string // YYYY-MM-DD in loc
	realized float64
	trades   int
	wins     int
	lossHit  bool
}

// NewDailyLimits creates a limiter with the given loss cap (positive dollars;
// 0 disables). loc is the location whose calendar day bounds the counters;
// nil means UTC.
func NewDailyLimits(maxDailyLoss float64, loc *time.Location) *DailyLimits {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyLimits{maxDailyLoss: maxDailyLoss, loc: loc}
}

// Record adds one closed trade's realized P&L.
func (d *DailyLimits) Record(pnl float64, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := at.In(d.loc).Format("2006-01-02")
	if d.day != "" && day != d.day {
		d.realized = 0
		d.trades = 0
		d.wins = 0
		d.lossHit = false
	}
	d.day = day
	d.realized += pnl
	d.trades++
	if pnl > 0 {
		d.wins++
	}
	if d.maxDailyLoss > 0 && d.realized <= -d.maxDailyLoss {
		d.lossHit = true
	}
}

// CanEnter reports whether new entries are still allowed.
func (d *DailyLimits) CanEnter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.lossHit
}

// Realized returns today's accumulated realized P&L.
func (d *DailyLimits) Realized() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.realized
}

// Trades returns today's closed-trade count and winners.
func (d *DailyLimits) Trades() (total, wins int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trades, d.wins
}
