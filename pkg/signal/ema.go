package signal

import (
	"math"

	"github.com/surge-intraday-bot/pkg/feed"
)

// EMA returns the n-period exponential moving average of closes, aligned to
// the input. The series is seeded at index n-1 with the simple average of the
// first n closes and then follows the standard recurrence with multiplier
// 2/(n+1). Indices before the seed are NaN.
func EMA(closes []float64, n int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if n <= 0 || len(closes) < n {
		return out
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += closes[i]
	}
	out[n-1] = sum / float64(n)

	k := 2.0 / float64(n+1)
	for i := n; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

// Closes extracts the close series from a bar sequence.
func Closes(bars []feed.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// ChannelLow returns the minimum close over the lookback bars preceding the
// latest bar. ok is false when there are not enough bars to form the channel.
func ChannelLow(bars []feed.Bar, lookback int) (low float64, ok bool) {
	if lookback <= 0 || len(bars) < lookback+1 {
		return 0, false
	}
	low = math.Inf(1)
	for _, b := range bars[len(bars)-1-lookback : len(bars)-1] {
		if b.Close < low {
			low = b.Close
		}
	}
	return low, true
}

// ChannelHigh returns the maximum close over the lookback bars preceding the
// latest bar.
func ChannelHigh(bars []feed.Bar, lookback int) (high float64, ok bool) {
	if lookback <= 0 || len(bars) < lookback+1 {
		return 0, false
	}
	high = math.Inf(-1)
	for _, b := range bars[len(bars)-1-lookback : len(bars)-1] {
		if b.Close > high {
			high = b.Close
		}
	}
	return high, true
}
