// Package scanner turns the raw gainer feed into admissible trade
// candidates. A candidate must clear the surge thresholds on its latest
// one-minute bar and must not be blacklisted, already tracked, or cooling
// down after a recent exit.
package scanner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/surge-intraday-bot/pkg/config"
	"github.com/surge-intraday-bot/pkg/feed"
	"github.com/surge-intraday-bot/pkg/metrics"
)

// Candidate is a symbol that passed every admission filter this scan.
type Candidate struct {
	Symbol       string
	TickerID     string
	ChangePct    float64
	LatestClose  float64
	LatestVolume int64
}

// Scanner filters the gainer feed down to candidates worth tracking.
type Scanner struct {
	feed feed.MarketDataFeed
	cfg  *config.Settings
	log  *zap.Logger
}

// New creates a scanner.
func New(f feed.MarketDataFeed, cfg *config.Settings, log *zap.Logger) *Scanner {
	return &Scanner{feed: f, cfg: cfg, log: log}
}

// Gainers fetches the gainer list for the configured trading window.
func (s *Scanner) Gainers(ctx context.Context) ([]feed.GainerEntry, error) {
	switch s.cfg.Window {
	case config.WindowPreMarket:
		return s.feed.PreMarketGainers(ctx)
	case config.WindowAfterHours:
		return s.feed.AfterMarketGainers(ctx)
	default:
		return s.feed.TopGainers(ctx)
	}
}

// Scan applies the admission filters to a gainer list. isExcluded covers
// caller-side exclusions (already tracked, cooling down). Symbols whose bars
// cannot be fetched are skipped, not failed.
func (s *Scanner) Scan(ctx context.Context, gainers []feed.GainerEntry, isExcluded func(symbol string) bool) []Candidate {
	var out []Candidate
	for _, g := range gainers {
		if g.ChangePct < s.cfg.MinSurgeChangePct {
			continue
		}
		if s.cfg.IsBlacklisted(g.Symbol) {
			continue
		}
		if isExcluded != nil && isExcluded(g.Symbol) {
			continue
		}

		bars, err := s.feed.OneMinuteBars(ctx, g.TickerID, s.cfg.BarFetchCount)
		if err != nil {
			s.log.Debug("scan: bar fetch failed", zap.String("symbol", g.Symbol), zap.Error(err))
			continue
		}
		if len(bars) == 0 {
			continue
		}

		latest := bars[len(bars)-1]
		if latest.Close*float64(latest.Volume) < s.cfg.MinSurgeAmount {
			continue
		}
		if latest.Volume < s.cfg.MinSurgeVolume {
			continue
		}
		if latest.Close < latest.VWAP {
			continue
		}

		out = append(out, Candidate{
			Symbol:       g.Symbol,
			TickerID:     g.TickerID,
			ChangePct:    g.ChangePct,
			LatestClose:  latest.Close,
			LatestVolume: latest.Volume,
		})
		metrics.IncScanCandidate()
		s.log.Info("scan candidate",
			zap.String("symbol", g.Symbol),
			zap.String("change", fmt.Sprintf("%.1f%%", g.ChangePct*100)),
			zap.Float64("close", latest.Close),
			zap.Int64("volume", latest.Volume))
	}
	return out
}
