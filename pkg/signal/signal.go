// Package signal evaluates entry and exit rules over 1-minute bar sequences.
// Everything here is pure: callers pass ordered bars (oldest to newest) plus
// thresholds and get back a decision with a human-readable reason, suitable
// for logging and trade notes.
package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/surge-intraday-bot/pkg/feed"
)

// Exit reasons, in evaluation priority order.
const (
	ReasonChannelLow  = "channel low breakout"
	ReasonStopPrice   = "stop price"
	ReasonProfitTaken = "profit target"
	ReasonStopLoss    = "stop loss"
	ReasonHeldTooLong = "held too long"
	ReasonPriceFixed  = "price fixed"
)

// EntryParams are the thresholds for the breakout entry rule.
type EntryParams struct {
	EMAPeriod         int     // 9 for EMA9
	MaxBidAskGapRatio float64 // (ask-bid)/bid ceiling
}

// Decision is a boolean outcome plus the diagnostic reason behind it.
type Decision struct {
	Act    bool
	Reason string
}

// EvaluateEntry applies the breakout rule to the latest bar: its low must sit
// above both the session VWAP and the EMA over closes, its high must exceed
// the previous bar's high, and the bid/ask gap must be tight enough to enter.
func EvaluateEntry(bars []feed.Bar, bid, ask float64, p EntryParams) Decision {
	period := p.EMAPeriod
	if period <= 0 {
		period = 9
	}
	if len(bars) < period+1 {
		return Decision{Reason: fmt.Sprintf("not enough bars (%d, need %d)", len(bars), period+1)}
	}

	latest := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	ema := EMA(Closes(bars), period)
	emaNow := ema[len(ema)-1]
	if math.IsNaN(emaNow) {
		return Decision{Reason: "ema not ready"}
	}

	if latest.Low <= latest.VWAP {
		return Decision{Reason: fmt.Sprintf("low %.4f not above vwap %.4f", latest.Low, latest.VWAP)}
	}
	if latest.Low <= emaNow {
		return Decision{Reason: fmt.Sprintf("low %.4f not above ema%d %.4f", latest.Low, period, emaNow)}
	}
	if latest.High <= prev.High {
		return Decision{Reason: fmt.Sprintf("high %.4f not above previous high %.4f", latest.High, prev.High)}
	}

	if bid <= 0 || ask <= 0 {
		return Decision{Reason: "no usable quote"}
	}
	gap := (ask - bid) / bid
	if gap > p.MaxBidAskGapRatio {
		return Decision{Reason: fmt.Sprintf("bid/ask gap %.4f above limit %.4f", gap, p.MaxBidAskGapRatio)}
	}

	return Decision{
		Act: true,
		Reason: fmt.Sprintf("breakout: low %.4f > vwap %.4f, ema%d %.4f; high %.4f > prev %.4f; gap %.4f",
			latest.Low, latest.VWAP, period, emaNow, latest.High, prev.High, gap),
	}
}

// ExitParams describes one holding under exit evaluation.
type ExitParams struct {
	EntryCost          float64
	EntryTime          time.Time
	Now                time.Time
	StopPrice          float64 // hard per-ticker stop; 0 disables
	ChannelLookback    int
	ProfitTargetRatio  float64
	StopLossRatio      float64
	HoldTimeout        time.Duration
	MinHoldProfitRatio float64
}

// EvaluateExit checks the exit rules in priority order and returns the first
// that fires. The order is load-bearing: a channel-low breakout must win over
// a simultaneous stop-loss so the recorded note names the channel break.
func EvaluateExit(bars []feed.Bar, p ExitParams) Decision {
	if len(bars) == 0 {
		return Decision{Reason: "no bars"}
	}
	price := bars[len(bars)-1].Close

	// 1. turtle-style channel low
	if low, ok := ChannelLow(bars, p.ChannelLookback); ok && price < low {
		return Decision{Act: true, Reason: fmt.Sprintf("%s: close %.4f below %d-bar low %.4f", ReasonChannelLow, price, p.ChannelLookback, low)}
	}

	// 2. hard stop price
	if p.StopPrice > 0 && price < p.StopPrice {
		return Decision{Act: true, Reason: fmt.Sprintf("%s: close %.4f below stop %.4f", ReasonStopPrice, price, p.StopPrice)}
	}

	// 3. profit / loss ratio
	if p.EntryCost > 0 {
		ratio := (price - p.EntryCost) / p.EntryCost
		if ratio >= p.ProfitTargetRatio {
			return Decision{Act: true, Reason: fmt.Sprintf("%s: ratio %.4f >= %.4f", ReasonProfitTaken, ratio, p.ProfitTargetRatio)}
		}
		if ratio <= p.StopLossRatio {
			return Decision{Act: true, Reason: fmt.Sprintf("%s: ratio %.4f <= %.4f", ReasonStopLoss, ratio, p.StopLossRatio)}
		}

		// 4. held too long without reaching the minimum profit
		if p.HoldTimeout > 0 && p.Now.Sub(p.EntryTime) >= p.HoldTimeout && ratio < p.MinHoldProfitRatio {
			return Decision{Act: true, Reason: fmt.Sprintf("%s: held %s with ratio %.4f", ReasonHeldTooLong, p.Now.Sub(p.EntryTime).Round(time.Second), ratio)}
		}
	}

	// 5. price fixed over the last 3 bars
	if priceFixed(bars, 3) {
		return Decision{Act: true, Reason: fmt.Sprintf("%s: no close movement over last 3 bars", ReasonPriceFixed)}
	}

	return Decision{Reason: "holding"}
}

// priceFixed reports whether the last n closes are identical. Feeds quote in
// whole cents, so exact equality is the intended comparison.
func priceFixed(bars []feed.Bar, n int) bool {
	if len(bars) < n {
		return false
	}
	last := bars[len(bars)-1].Close
	for _, b := range bars[len(bars)-n : len(bars)-1] {
		if b.Close != last {
			return false
		}
	}
	return true
}
