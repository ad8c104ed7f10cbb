// Package session runs the trading day: one single-threaded poll loop that
// scans for candidates, evaluates entries and exits, drives the order
// lifecycle, and settles at the end of the window. Per-symbol work is
// isolated, so one bad feed response or broker hiccup never stalls the rest
// of the book.
package session

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/surge-intraday-bot/pkg/broker"
	"github.com/surge-intraday-bot/pkg/config"
	"github.com/surge-intraday-bot/pkg/feed"
	"github.com/surge-intraday-bot/pkg/metrics"
	"github.com/surge-intraday-bot/pkg/report"
	"github.com/surge-intraday-bot/pkg/risk"
	"github.com/surge-intraday-bot/pkg/scanner"
	"github.com/surge-intraday-bot/pkg/signal"
	"github.com/surge-intraday-bot/pkg/tracker"
)

const liquidationNote = "end of session liquidation"

// Clock abstracts wall time so replay and tests can drive the loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Session owns one trading day from login to settlement.
type Session struct {
	cfg      *config.Settings
	feed     feed.MarketDataFeed
	gateway  broker.Gateway
	store    report.Store
	scanner  *scanner.Scanner
	tracker  *tracker.Tracker
	cooldown *scanner.Cooldown
	limits   *risk.DailyLimits
	log      *zap.Logger

	clock     Clock
	loc       *time.Location
	lastLogin time.Time
}

// New wires a session from its collaborators.
func New(cfg *config.Settings, f feed.MarketDataFeed, gw broker.Gateway, store report.Store, log *zap.Logger) (*Session, error) {
	loc, err := config.GetLocation()
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:     cfg,
		feed:    f,
		gateway: gw,
		store:   store,
		scanner: scanner.New(f, cfg, log),
		tracker: tracker.New(gw, store, tracker.Config{
			PendingOrderTimeout: cfg.PendingOrderTimeout,
			MaxSellResubmits:    cfg.MaxSellResubmits,
			HardStopRatio:       cfg.HardStopRatio,
			Paper:               cfg.Paper,
		}, log),
		cooldown: scanner.NewCooldown(cfg.CooldownInterval),
		limits:   risk.NewDailyLimits(cfg.MaxDailyLoss, loc),
		log:      log,
		clock:    SystemClock{},
		loc:      loc,
	}, nil
}

// SetClock overrides the time source for the session and its tracker.
func (s *Session) SetClock(c Clock) {
	s.clock = c
	s.tracker.SetClock(c.Now)
}

// Tracker exposes the lifecycle state machine, mainly for replay summaries.
func (s *Session) Tracker() *tracker.Tracker { return s.tracker }

// Run executes the trading day and blocks until the window closes or ctx is
// cancelled. Cancellation liquidates and settles before returning.
func (s *Session) Run(ctx context.Context) error {
	if err := s.gateway.Login(ctx, s.cfg.Paper); err != nil {
		return err
	}
	s.lastLogin = s.clock.Now()
	s.saveSettings()
	s.log.Info("session started",
		zap.String("broker", s.gateway.Name()),
		zap.String("window", string(s.cfg.Window)),
		zap.Bool("paper", s.cfg.Paper))

	for {
		if ctx.Err() != nil {
			s.log.Info("shutdown requested, liquidating")
			s.liquidate(context.Background())
			break
		}

		now := s.clock.Now().In(s.loc)
		open, close := s.cfg.WindowBounds(now, s.loc)

		if now.Before(open) {
			// sleep in poll-interval slices so a shutdown signal is
			// observed promptly during the pre-open wait
			wait := open.Sub(now)
			if wait > s.cfg.PollInterval {
				wait = s.cfg.PollInterval
			}
			s.clock.Sleep(wait)
			continue
		}
		if !now.Before(close) {
			break
		}

		if !now.Before(close.Add(-s.cfg.LiquidateBefore)) {
			s.liquidate(ctx)
			break
		}

		s.refreshLogin(ctx, now)
		s.iterate(ctx, now)
		s.clock.Sleep(s.cfg.PollInterval)
	}

	s.settle(ctx)
	return nil
}

// iterate is one poll cycle. Positions are fetched once; if that fails the
// whole cycle is a no-op and state carries to the next poll.
func (s *Session) iterate(ctx context.Context, now time.Time) {
	positions, err := s.gateway.Positions(ctx)
	if err != nil {
		metrics.IncBrokerError()
		s.log.Warn("position fetch failed, skipping cycle", zap.Error(err))
		return
	}
	s.adoptForeign(positions, now)

	for _, tt := range s.tracker.All() {
		ev := s.tracker.Poll(ctx, tt, positions)
		if ev.Type == tracker.EventSellFilled {
			s.cooldown.MarkSold(ev.Symbol, now)
			s.limits.Record(ev.PnL, now)
			metrics.SetDailyPnL(s.limits.Realized())
			metrics.IncExitReason(reasonLabel(ev.Note))
		}
	}

	for _, tt := range s.tracker.All() {
		switch tt.State {
		case tracker.StateHolding:
			s.evaluateExit(ctx, tt, now)
		case tracker.StateWatching:
			if now.Sub(tt.StartTime) >= s.cfg.ObserveTimeout {
				s.tracker.Drop(tt.Symbol, "no setup within observe window")
				continue
			}
			s.evaluateEntry(ctx, tt)
		}
	}

	if s.tracker.Len() < s.cfg.MaxTrackedTickers {
		s.scanAndAdmit(ctx, now)
	}
}

// adoptForeign brings broker positions the tracker does not know about under
// management, e.g. after a restart mid-session. Adoption may exceed the
// tracked-ticker cap; existing holdings always get managed.
func (s *Session) adoptForeign(positions []broker.Position, now time.Time) {
	for _, pos := range positions {
		if pos.Quantity <= 0 || s.tracker.IsTracked(pos.Symbol) {
			continue
		}
		tt := s.tracker.Track(pos.Symbol, pos.TickerID)
		tt.State = tracker.StateHolding
		tt.Holdings = pos.Quantity
		tt.EntryCost = pos.CostPrice
		tt.StopPrice = pos.CostPrice * (1 + s.cfg.HardStopRatio)
		tt.OrderFilledTime = now
		tt.Setup = "adopted"
		s.log.Info("adopted existing position",
			zap.String("symbol", pos.Symbol),
			zap.Int("qty", pos.Quantity),
			zap.Float64("cost", pos.CostPrice))
	}
}

func (s *Session) evaluateEntry(ctx context.Context, tt *tracker.TrackedTicker) {
	if !s.limits.CanEnter() {
		return
	}

	bars, err := s.feed.OneMinuteBars(ctx, tt.TickerID, s.cfg.BarFetchCount)
	if err != nil {
		s.log.Debug("entry: bar fetch failed", zap.String("symbol", tt.Symbol), zap.Error(err))
		return
	}
	quote, err := s.gateway.GetQuote(ctx, tt.TickerID)
	if err != nil {
		metrics.IncBrokerError()
		s.log.Debug("entry: quote failed", zap.String("symbol", tt.Symbol), zap.Error(err))
		return
	}

	d := signal.EvaluateEntry(bars, quote.Bid, quote.Ask, signal.EntryParams{
		EMAPeriod:         9,
		MaxBidAskGapRatio: s.cfg.MaxBidAskGapRatio,
	})
	if !d.Act {
		s.log.Debug("no entry", zap.String("symbol", tt.Symbol), zap.String("reason", d.Reason))
		return
	}

	metrics.IncDecision("entry")
	qty := risk.SharesForAmount(s.cfg.BuyAmount, quote.Ask)
	if qty <= 0 {
		s.log.Debug("entry skipped, price above buy amount",
			zap.String("symbol", tt.Symbol), zap.Float64("ask", quote.Ask))
		return
	}
	s.log.Info("entry signal", zap.String("symbol", tt.Symbol), zap.String("reason", d.Reason))
	s.tracker.SubmitBuy(ctx, tt, quote.Ask, qty, "vwap breakout")
}

func (s *Session) evaluateExit(ctx context.Context, tt *tracker.TrackedTicker, now time.Time) {
	bars, err := s.feed.OneMinuteBars(ctx, tt.TickerID, s.cfg.BarFetchCount)
	if err != nil || len(bars) == 0 {
		if err != nil {
			s.log.Debug("exit: bar fetch failed", zap.String("symbol", tt.Symbol), zap.Error(err))
		}
		return
	}

	bid := bars[len(bars)-1].Close
	if quote, err := s.gateway.GetQuote(ctx, tt.TickerID); err == nil && quote.Bid > 0 {
		bid = quote.Bid
	} else if err != nil {
		metrics.IncBrokerError()
	}
	s.tracker.UpdateExtremes(tt, bid)

	d := signal.EvaluateExit(bars, signal.ExitParams{
		EntryCost:          tt.EntryCost,
		EntryTime:          tt.OrderFilledTime,
		Now:                now,
		StopPrice:          tt.StopPrice,
		ChannelLookback:    s.cfg.ChannelLookback,
		ProfitTargetRatio:  s.cfg.ProfitTargetRatio,
		StopLossRatio:      s.cfg.StopLossRatio,
		HoldTimeout:        s.cfg.HoldTimeout,
		MinHoldProfitRatio: s.cfg.MinHoldProfitRatio,
	})
	if !d.Act {
		return
	}

	metrics.IncDecision("exit")
	s.log.Info("exit signal", zap.String("symbol", tt.Symbol), zap.String("reason", d.Reason))
	s.tracker.SubmitSell(ctx, tt, bid, d.Reason)
}

func (s *Session) scanAndAdmit(ctx context.Context, now time.Time) {
	gainers, err := s.scanner.Gainers(ctx)
	if err != nil {
		s.log.Warn("gainer fetch failed", zap.Error(err))
		return
	}
	candidates := s.scanner.Scan(ctx, gainers, func(symbol string) bool {
		return s.tracker.IsTracked(symbol) || s.cooldown.Active(symbol, now)
	})
	for _, c := range candidates {
		if s.tracker.Len() >= s.cfg.MaxTrackedTickers {
			break
		}
		s.tracker.Track(c.Symbol, c.TickerID)
		s.log.Info("tracking new candidate",
			zap.String("symbol", c.Symbol),
			zap.Float64("change_pct", c.ChangePct))
	}
}

// liquidate force-exits the whole book and drains pending orders until they
// resolve or the drain timeout expires.
func (s *Session) liquidate(ctx context.Context) {
	s.tracker.Liquidate(ctx, liquidationNote)

	deadline := s.clock.Now().Add(s.cfg.DrainTimeout)
	for s.clock.Now().Before(deadline) {
		pending := false
		positions, err := s.gateway.Positions(ctx)
		if err != nil {
			metrics.IncBrokerError()
			s.clock.Sleep(s.cfg.PollInterval)
			continue
		}
		for _, tt := range s.tracker.All() {
			ev := s.tracker.Poll(ctx, tt, positions)
			if ev.Type == tracker.EventSellFilled {
				s.limits.Record(ev.PnL, s.clock.Now())
				metrics.SetDailyPnL(s.limits.Realized())
				metrics.IncExitReason(reasonLabel(ev.Note))
			}
			if tt.HasPending() {
				pending = true
			}
			if tt.State == tracker.StateHolding {
				// cancelled or rejected during liquidation; try again
				s.tracker.Liquidate(ctx, liquidationNote)
				pending = true
			}
		}
		if !pending && s.tracker.Len() == 0 {
			return
		}
		s.clock.Sleep(s.cfg.PollInterval)
	}

	for _, tt := range s.tracker.All() {
		s.log.Warn("unresolved at drain timeout",
			zap.String("symbol", tt.Symbol),
			zap.String("state", tt.State.String()),
			zap.String("order_id", tt.PendingOrderID))
	}
}

func (s *Session) refreshLogin(ctx context.Context, now time.Time) {
	if now.Sub(s.lastLogin) < s.cfg.LoginRefreshInterval {
		return
	}
	if err := s.gateway.Login(ctx, s.cfg.Paper); err != nil {
		metrics.IncBrokerError()
		s.log.Warn("login refresh failed", zap.Error(err))
		return
	}
	s.lastLogin = now
}

// settle writes the end-of-day rows: the daily P&L settlement and a final
// account snapshot.
func (s *Session) settle(ctx context.Context) {
	now := s.clock.Now().In(s.loc)
	trades, wins := s.limits.Trades()
	realized := s.limits.Realized()

	if err := s.store.SaveDailySettlement(&report.DailySettlement{
		Day:         now.Format("2006-01-02"),
		RealizedPnL: realized,
		Trades:      trades,
		Wins:        wins,
		Paper:       s.cfg.Paper,
	}); err != nil {
		s.log.Warn("settlement save failed", zap.Error(err))
	}

	snap := &report.AccountSnapshot{
		DayPnL:  realized,
		Paper:   s.cfg.Paper,
		TakenAt: now,
	}
	if positions, err := s.gateway.Positions(ctx); err == nil {
		snap.Holdings = len(positions)
		for _, pos := range positions {
			snap.NetLiquidation += pos.LastPrice * float64(pos.Quantity)
		}
	}
	if err := s.store.SaveAccountSnapshot(snap); err != nil {
		s.log.Warn("account snapshot save failed", zap.Error(err))
	}

	s.log.Info("session settled",
		zap.Float64("realized_pnl", realized),
		zap.Int("trades", trades),
		zap.Int("wins", wins))
}

func (s *Session) saveSettings() {
	err := s.store.SaveSettings(&report.SettingsSnapshot{
		Window:            string(s.cfg.Window),
		Paper:             s.cfg.Paper,
		BuyAmount:         s.cfg.BuyAmount,
		MinSurgeChangePct: s.cfg.MinSurgeChangePct,
		MinSurgeAmount:    s.cfg.MinSurgeAmount,
		MinSurgeVolume:    s.cfg.MinSurgeVolume,
		ProfitTargetRatio: s.cfg.ProfitTargetRatio,
		StopLossRatio:     s.cfg.StopLossRatio,
	})
	if err != nil {
		s.log.Warn("settings snapshot save failed", zap.Error(err))
	}
}

// reasonLabel reduces a full exit note to its leading reason tag for the
// metrics label, e.g. "profit target: ratio 0.02 >= 0.02" -> "profit target".
func reasonLabel(note string) string {
	if i := strings.IndexByte(note, ':'); i > 0 {
		return note[:i]
	}
	if note == "" {
		return "unknown"
	}
	return note
}
