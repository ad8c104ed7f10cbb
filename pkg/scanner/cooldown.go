package scanner

import "time"

// Cooldown keeps recently exited symbols out of the scanner for a fixed
// interval so the bot does not chase a name it just sold.
type Cooldown struct {
	interval time.Duration
	until    map[string]time.Time
}

// NewCooldown creates a cooldown tracker with the given re-entry interval.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{interval: interval, until: make(map[string]time.Time)}
}

// MarkSold starts the cooldown clock for a symbol.
func (c *Cooldown) MarkSold(symbol string, at time.Time) {
	c.until[symbol] = at.Add(c.interval)
}

// Active reports whether a symbol is still cooling down.
func (c *Cooldown) Active(symbol string, now time.Time) bool {
	deadline, ok := c.until[symbol]
	if !ok {
		return false
	}
	if now.Before(deadline) {
		return true
	}
	delete(c.until, symbol)
	return false
}

// Sweep drops expired entries.
func (c *Cooldown) Sweep(now time.Time) {
	for sym, deadline := range c.until {
		if !now.Before(deadline) {
			delete(c.until, sym)
		}
	}
}
