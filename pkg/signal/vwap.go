package signal

import (
	"github.com/surge-intraday-bot/pkg/feed"
)

// FillVWAP computes a cumulative session VWAP over bars that lack one, using
// the typical price (high+low+close)/3 weighted by volume. Bars that already
// carry a VWAP are left untouched. Used by replay inputs recorded without a
// VWAP column.
func FillVWAP(bars []feed.Bar) []feed.Bar {
	out := make([]feed.Bar, len(bars))
	var volumeSum, priceVolumeSum float64
	for i, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3.0
		volumeSum += float64(b.Volume)
		priceVolumeSum += typical * float64(b.Volume)
		out[i] = b
		if out[i].VWAP == 0 && volumeSum > 0 {
			out[i].VWAP = priceVolumeSum / volumeSum
		}
	}
	return out
}
