// Package tracker owns the per-symbol order lifecycle: a ticker moves
// watching -> pending-buy -> holding -> pending-sell -> closed, with cancel
// and resubmit paths on pending timeouts. All broker failures are converted
// to logged no-ops; the tracker never lets one symbol's error escape to the
// session loop.
package tracker

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/surge-intraday-bot/pkg/broker"
	"github.com/surge-intraday-bot/pkg/metrics"
	"github.com/surge-intraday-bot/pkg/report"
)

// State is a ticker's place in the order lifecycle.
type State int

const (
	StateWatching State = iota // admitted, no position, no pending order
	StatePendingBuy
	StateHolding
	StatePendingSell
)

func (s State) String() string {
	switch s {
	case StatePendingBuy:
		return "pending_buy"
	case StateHolding:
		return "holding"
	case StatePendingSell:
		return "pending_sell"
	default:
		return "watching"
	}
}

// TrackedTicker is the mutable tracking record for one symbol. At most one
// pending order is outstanding at a time.
type TrackedTicker struct {
	Symbol   string
	TickerID string
	State    State

	PendingOrderID  string
	PendingSince    time.Time
	PendingSide     broker.OrderSide
	PendingPrice    float64
	PendingQuantity int

	Holdings        int
	EntryCost       float64
	StopPrice       float64
	OrderFilledTime time.Time

	StartTime      time.Time
	MaxProfitRatio float64
	MinProfitRatio float64
	ExitNote       string
	ResubmitCount  int
	Setup          string

	resubmitCapLogged bool
}

// HasPending reports whether an order is outstanding for this ticker.
func (t *TrackedTicker) HasPending() bool {
	return t.State == StatePendingBuy || t.State == StatePendingSell
}

// EventType labels a lifecycle transition surfaced by Poll.
type EventType int

const (
	EventNone EventType = iota
	EventBuyFilled
	EventBuyCancelled
	EventSellFilled
	EventSellResubmitted
)

// Event is one lifecycle transition. SellFilled events carry the realized
// P&L of the closed trade.
type Event struct {
	Type   EventType
	Symbol string
	Price  float64
	PnL    float64
	Note   string
}

// Config holds the tracker's lifecycle knobs.
type Config struct {
	PendingOrderTimeout time.Duration
	MaxSellResubmits    int
	HardStopRatio       float64 // stop price = entry cost * (1 + this)
	Paper               bool
}

// Tracker runs the lifecycle state machine for every tracked symbol.
type Tracker struct {
	gateway broker.Gateway
	store   report.Store
	cfg     Config
	log     *zap.Logger
	now     func() time.Time

	tickers map[string]*TrackedTicker
}

// New creates a tracker.
func New(gateway broker.Gateway, store report.Store, cfg Config, log *zap.Logger) *Tracker {
	return &Tracker{
		gateway: gateway,
		store:   store,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		tickers: make(map[string]*TrackedTicker),
	}
}

// SetClock overrides the time source. Used by replay and tests.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// Track admits a symbol into tracking in the watching state.
func (t *Tracker) Track(symbol, tickerID string) *TrackedTicker {
	tt := &TrackedTicker{
		Symbol:    symbol,
		TickerID:  tickerID,
		State:     StateWatching,
		StartTime: t.now(),
	}
	t.tickers[symbol] = tt
	metrics.SetTrackedTickers(len(t.tickers))
	return tt
}

// Drop removes a symbol from tracking.
func (t *Tracker) Drop(symbol, reason string) {
	if _, ok := t.tickers[symbol]; !ok {
		return
	}
	delete(t.tickers, symbol)
	metrics.SetTrackedTickers(len(t.tickers))
	t.log.Info("dropped ticker", zap.String("symbol", symbol), zap.String("reason", reason))
}

// Get returns the tracking record for a symbol.
func (t *Tracker) Get(symbol string) (*TrackedTicker, bool) {
	tt, ok := t.tickers[symbol]
	return tt, ok
}

// IsTracked reports whether a symbol is under tracking.
func (t *Tracker) IsTracked(symbol string) bool {
	_, ok := t.tickers[symbol]
	return ok
}

// Len returns the number of tracked symbols.
func (t *Tracker) Len() int { return len(t.tickers) }

// All returns the tracked tickers in stable symbol order.
func (t *Tracker) All() []*TrackedTicker {
	out := make([]*TrackedTicker, 0, len(t.tickers))
	for _, tt := range t.tickers {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// SubmitBuy places a limit buy at the ask. A broker business rejection keeps
// the ticker in watching; a transport error is a logged no-op.
func (t *Tracker) SubmitBuy(ctx context.Context, tt *TrackedTicker, ask float64, qty int, setup string) {
	if tt.HasPending() || qty <= 0 {
		return
	}
	req := broker.LimitRequest(tt.Symbol, tt.TickerID, broker.SideBuy, ask, qty)
	result, err := t.gateway.BuyLimit(ctx, req)
	if err != nil {
		metrics.IncBrokerError()
		t.log.Warn("buy submit failed", zap.String("symbol", tt.Symbol), zap.Error(err))
		return
	}
	if result.Rejected() {
		t.log.Warn("buy rejected by broker",
			zap.String("symbol", tt.Symbol), zap.String("msg", result.Message))
		return
	}

	tt.State = StatePendingBuy
	tt.PendingOrderID = result.OrderID
	tt.PendingSince = t.now()
	tt.PendingSide = broker.SideBuy
	tt.PendingPrice = ask
	tt.PendingQuantity = qty
	tt.Setup = setup

	t.saveOrder(tt, broker.SideBuy, broker.StatusWorking, ask, qty, result.OrderID)
	metrics.IncOrder(t.mode(), string(broker.SideBuy))
	t.log.Info("buy submitted",
		zap.String("symbol", tt.Symbol), zap.String("order_id", result.OrderID),
		zap.Float64("limit", ask), zap.Int("qty", qty))
}

// SubmitSell places a limit sell at the bid for the entire holding and
// records the exit note carried to the trade annotation on fill.
func (t *Tracker) SubmitSell(ctx context.Context, tt *TrackedTicker, bid float64, note string) {
	if tt.State != StateHolding || tt.Holdings <= 0 {
		return
	}
	req := broker.LimitRequest(tt.Symbol, tt.TickerID, broker.SideSell, bid, tt.Holdings)
	result, err := t.gateway.SellLimit(ctx, req)
	if err != nil {
		metrics.IncBrokerError()
		t.log.Warn("sell submit failed", zap.String("symbol", tt.Symbol), zap.Error(err))
		return
	}
	if result.Rejected() {
		t.log.Warn("sell rejected by broker",
			zap.String("symbol", tt.Symbol), zap.String("msg", result.Message))
		return
	}

	tt.State = StatePendingSell
	tt.PendingOrderID = result.OrderID
	tt.PendingSince = t.now()
	tt.PendingSide = broker.SideSell
	tt.PendingPrice = bid
	tt.PendingQuantity = tt.Holdings
	tt.ExitNote = note

	t.saveOrder(tt, broker.SideSell, broker.StatusWorking, bid, tt.Holdings, result.OrderID)
	metrics.IncOrder(t.mode(), string(broker.SideSell))
	t.log.Info("sell submitted",
		zap.String("symbol", tt.Symbol), zap.String("order_id", result.OrderID),
		zap.Float64("limit", bid), zap.Int("qty", tt.Holdings), zap.String("note", note))
}

// Poll reconciles one ticker against the latest broker positions and drives
// timeout handling. The caller passes positions fetched once per iteration;
// a failed fetch means Poll is simply not called this cycle.
func (t *Tracker) Poll(ctx context.Context, tt *TrackedTicker, positions []broker.Position) Event {
	switch tt.State {
	case StatePendingBuy:
		return t.pollPendingBuy(ctx, tt, positions)
	case StatePendingSell:
		return t.pollPendingSell(ctx, tt, positions)
	}
	return Event{Type: EventNone}
}

func (t *Tracker) pollPendingBuy(ctx context.Context, tt *TrackedTicker, positions []broker.Position) Event {
	if pos := findPosition(positions, tt.Symbol); pos != nil && pos.Quantity > 0 {
		orderID := tt.PendingOrderID
		cost := pos.CostPrice
		if cost <= 0 {
			cost = tt.PendingPrice
		}
		tt.State = StateHolding
		tt.Holdings = pos.Quantity
		tt.EntryCost = cost
		tt.StopPrice = cost * (1 + t.cfg.HardStopRatio)
		tt.OrderFilledTime = t.now()
		tt.PendingOrderID = ""
		tt.MaxProfitRatio = 0
		tt.MinProfitRatio = 0

		t.saveOrder(tt, broker.SideBuy, broker.StatusFilled, cost, pos.Quantity, orderID)
		t.log.Info("buy filled",
			zap.String("symbol", tt.Symbol), zap.String("order_id", orderID),
			zap.Float64("cost", cost), zap.Int("qty", pos.Quantity))
		return Event{Type: EventBuyFilled, Symbol: tt.Symbol, Price: cost}
	}

	if t.now().Sub(tt.PendingSince) < t.cfg.PendingOrderTimeout {
		return Event{Type: EventNone}
	}

	ok, err := t.gateway.CancelOrder(ctx, tt.PendingOrderID)
	if err != nil {
		metrics.IncBrokerError()
		t.log.Warn("buy cancel failed", zap.String("symbol", tt.Symbol), zap.Error(err))
		return Event{Type: EventNone}
	}
	if !ok {
		// cancel refused, most likely just filled; the next poll will see
		// the position
		return Event{Type: EventNone}
	}

	orderID := tt.PendingOrderID
	t.saveOrder(tt, broker.SideBuy, broker.StatusCancelled, tt.PendingPrice, tt.PendingQuantity, orderID)
	tt.State = StateWatching
	tt.PendingOrderID = ""
	t.log.Info("buy cancelled after timeout",
		zap.String("symbol", tt.Symbol), zap.String("order_id", orderID))
	return Event{Type: EventBuyCancelled, Symbol: tt.Symbol}
}

func (t *Tracker) pollPendingSell(ctx context.Context, tt *TrackedTicker, positions []broker.Position) Event {
	pos := findPosition(positions, tt.Symbol)
	if pos == nil || pos.Quantity == 0 {
		// position gone: the sell filled
		orderID := tt.PendingOrderID
		price := tt.PendingPrice
		pnl := (price - tt.EntryCost) * float64(tt.PendingQuantity)

		t.saveOrder(tt, broker.SideSell, broker.StatusFilled, price, tt.PendingQuantity, orderID)
		if tt.ExitNote != "" {
			if err := t.store.SaveTradeNote(orderID, tt.ExitNote); err != nil {
				t.log.Warn("trade note save failed", zap.String("order_id", orderID), zap.Error(err))
			}
		}

		note := tt.ExitNote
		delete(t.tickers, tt.Symbol)
		metrics.SetTrackedTickers(len(t.tickers))
		t.log.Info("sell filled, position closed",
			zap.String("symbol", tt.Symbol), zap.String("order_id", orderID),
			zap.Float64("price", price), zap.Float64("pnl", pnl), zap.String("note", note))
		return Event{Type: EventSellFilled, Symbol: tt.Symbol, Price: price, PnL: pnl, Note: note}
	}

	if t.now().Sub(tt.PendingSince) < t.cfg.PendingOrderTimeout {
		return Event{Type: EventNone}
	}

	if tt.ResubmitCount >= t.cfg.MaxSellResubmits {
		if !tt.resubmitCapLogged {
			tt.resubmitCapLogged = true
			t.log.Warn("sell resubmit ceiling reached, leaving order outstanding",
				zap.String("symbol", tt.Symbol), zap.Int("resubmits", tt.ResubmitCount))
		}
		return Event{Type: EventNone}
	}

	ok, err := t.gateway.CancelOrder(ctx, tt.PendingOrderID)
	if err != nil {
		metrics.IncBrokerError()
		t.log.Warn("sell cancel failed", zap.String("symbol", tt.Symbol), zap.Error(err))
		return Event{Type: EventNone}
	}
	if !ok {
		// cancel refused, fill should show up next poll
		return Event{Type: EventNone}
	}
	t.saveOrder(tt, broker.SideSell, broker.StatusCancelled, tt.PendingPrice, tt.PendingQuantity, tt.PendingOrderID)

	// resubmit at the current bid; fall back to the stale price if the
	// quote is unavailable this cycle
	bid := tt.PendingPrice
	if q, err := t.gateway.GetQuote(ctx, tt.TickerID); err == nil && q.Bid > 0 {
		bid = q.Bid
	} else if err != nil {
		metrics.IncBrokerError()
	}

	// the cancelled order may have partially filled; never resubmit more
	// than the broker still shows held
	qty := tt.PendingQuantity
	if pos.Quantity < qty {
		qty = pos.Quantity
	}

	req := broker.LimitRequest(tt.Symbol, tt.TickerID, broker.SideSell, bid, qty)
	result, err := t.gateway.SellLimit(ctx, req)
	if err != nil || result.Rejected() {
		// shares are back in hand; the next evaluation will resubmit
		if err != nil {
			metrics.IncBrokerError()
			t.log.Warn("sell resubmit failed", zap.String("symbol", tt.Symbol), zap.Error(err))
		} else {
			t.log.Warn("sell resubmit rejected",
				zap.String("symbol", tt.Symbol), zap.String("msg", result.Message))
		}
		tt.State = StateHolding
		tt.Holdings = pos.Quantity
		tt.PendingOrderID = ""
		return Event{Type: EventNone}
	}

	tt.PendingOrderID = result.OrderID
	tt.PendingSince = t.now()
	tt.PendingPrice = bid
	tt.PendingQuantity = qty
	tt.ResubmitCount++

	t.saveOrder(tt, broker.SideSell, broker.StatusWorking, bid, qty, result.OrderID)
	metrics.IncOrder(t.mode(), string(broker.SideSell))
	metrics.IncSellResubmit()
	t.log.Info("sell resubmitted",
		zap.String("symbol", tt.Symbol), zap.String("order_id", result.OrderID),
		zap.Float64("bid", bid), zap.Int("qty", qty), zap.Int("attempt", tt.ResubmitCount))
	return Event{Type: EventSellResubmitted, Symbol: tt.Symbol, Price: bid}
}

// UpdateExtremes records the best and worst observed P&L ratios while a
// position is held.
func (t *Tracker) UpdateExtremes(tt *TrackedTicker, price float64) {
	if tt.State != StateHolding || tt.EntryCost <= 0 {
		return
	}
	ratio := (price - tt.EntryCost) / tt.EntryCost
	if ratio > tt.MaxProfitRatio {
		tt.MaxProfitRatio = ratio
	}
	if ratio < tt.MinProfitRatio {
		tt.MinProfitRatio = ratio
	}
}

// Liquidate force-exits everything at session end: watching tickers are
// dropped, pending buys cancelled, and holdings sold at the current bid.
func (t *Tracker) Liquidate(ctx context.Context, note string) {
	for _, tt := range t.All() {
		switch tt.State {
		case StateWatching:
			t.Drop(tt.Symbol, note)
		case StatePendingBuy:
			ok, err := t.gateway.CancelOrder(ctx, tt.PendingOrderID)
			if err != nil {
				metrics.IncBrokerError()
				t.log.Warn("liquidate: buy cancel failed", zap.String("symbol", tt.Symbol), zap.Error(err))
				continue
			}
			if ok {
				t.saveOrder(tt, broker.SideBuy, broker.StatusCancelled, tt.PendingPrice, tt.PendingQuantity, tt.PendingOrderID)
				t.Drop(tt.Symbol, note)
			}
		case StateHolding:
			bid := tt.EntryCost
			if q, err := t.gateway.GetQuote(ctx, tt.TickerID); err == nil && q.Bid > 0 {
				bid = q.Bid
			} else if err != nil {
				metrics.IncBrokerError()
			}
			t.SubmitSell(ctx, tt, bid, note)
		}
	}
}

func (t *Tracker) saveOrder(tt *TrackedTicker, side broker.OrderSide, status broker.OrderStatus, price float64, qty int, orderID string) {
	rec := &report.OrderRecord{
		OrderID:  orderID,
		Symbol:   tt.Symbol,
		Side:     string(side),
		Status:   string(status),
		Price:    price,
		Quantity: qty,
		Setup:    tt.Setup,
		Paper:    t.cfg.Paper,
		PlacedAt: tt.PendingSince,
	}
	if err := t.store.SaveOrder(rec); err != nil {
		t.log.Warn("order save failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (t *Tracker) mode() string {
	if t.cfg.Paper {
		return "paper"
	}
	return "live"
}

func findPosition(positions []broker.Position, symbol string) *broker.Position {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i]
		}
	}
	return nil
}
