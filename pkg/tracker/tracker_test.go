package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/surge-intraday-bot/pkg/broker"
	"github.com/surge-intraday-bot/pkg/report"
)

// scriptGateway is a broker.Gateway whose every answer is preloaded by the
// test.
type scriptGateway struct {
	positions []broker.Position
	posErr    error

	buyResult  *broker.OrderResult
	buyErr     error
	sellQueue  []*broker.OrderResult
	sellErr    error
	cancelOK   bool
	cancelErr  error
	quote      *broker.Quote
	quoteErr   error

	buys      []broker.OrderRequest
	sells     []broker.OrderRequest
	cancelled []string
}

func (g *scriptGateway) Name() string                                { return "script" }
func (g *scriptGateway) Login(ctx context.Context, paper bool) error { return nil }
func (g *scriptGateway) Positions(ctx context.Context) ([]broker.Position, error) {
	return g.positions, g.posErr
}
func (g *scriptGateway) GetQuote(ctx context.Context, tickerID string) (*broker.Quote, error) {
	return g.quote, g.quoteErr
}
func (g *scriptGateway) BuyLimit(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	g.buys = append(g.buys, req)
	return g.buyResult, g.buyErr
}
func (g *scriptGateway) SellLimit(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	if g.sellErr != nil {
		return nil, g.sellErr
	}
	g.sells = append(g.sells, req)
	r := g.sellQueue[0]
	if len(g.sellQueue) > 1 {
		g.sellQueue = g.sellQueue[1:]
	}
	return r, nil
}
func (g *scriptGateway) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if g.cancelErr != nil {
		return false, g.cancelErr
	}
	g.cancelled = append(g.cancelled, orderID)
	return g.cancelOK, nil
}
func (g *scriptGateway) HistoryOrders(ctx context.Context, status broker.OrderStatus, count int) ([]broker.HistoryOrder, error) {
	return nil, nil
}

func newTestTracker(gw broker.Gateway, store report.Store) (*Tracker, *time.Time) {
	tr := New(gw, store, Config{
		PendingOrderTimeout: time.Minute,
		MaxSellResubmits:    2,
		HardStopRatio:       -0.03,
		Paper:               true,
	}, zap.NewNop())
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := &now
	tr.SetClock(func() time.Time { return *clock })
	return tr, clock
}

func TestBuyFillTransition(t *testing.T) {
	gw := &scriptGateway{buyResult: &broker.OrderResult{OrderID: "B1"}}
	store := report.NewMemoryStore()
	tr, _ := newTestTracker(gw, store)
	ctx := context.Background()

	tt := tr.Track("XYZ", "t-xyz")
	tr.SubmitBuy(ctx, tt, 12.50, 80, "vwap breakout")
	if tt.State != StatePendingBuy || tt.PendingOrderID != "B1" {
		t.Fatalf("after submit: state=%v order=%q", tt.State, tt.PendingOrderID)
	}

	gw.positions = []broker.Position{{Symbol: "XYZ", TickerID: "t-xyz", Quantity: 80, CostPrice: 12.50}}
	ev := tr.Poll(ctx, tt, gw.positions)
	if ev.Type != EventBuyFilled {
		t.Fatalf("event = %v, want buy filled", ev.Type)
	}
	if tt.State != StateHolding || tt.Holdings != 80 || tt.EntryCost != 12.50 {
		t.Errorf("holding state wrong: %+v", tt)
	}
	if tt.PendingOrderID != "" {
		t.Error("pending order id not cleared after fill")
	}
	if tt.OrderFilledTime.IsZero() {
		t.Error("filled time not set")
	}
	if want := 12.50 * 0.97; tt.StopPrice != want {
		t.Errorf("stop price = %v, want %v", tt.StopPrice, want)
	}

	orders := store.Orders()
	last := orders[len(orders)-1]
	if last.OrderID != "B1" || last.Status != string(broker.StatusFilled) {
		t.Errorf("last order record = %+v, want B1 FILLED", last)
	}
}

func TestBuyTimeoutCancels(t *testing.T) {
	gw := &scriptGateway{buyResult: &broker.OrderResult{OrderID: "B1"}, cancelOK: true}
	store := report.NewMemoryStore()
	tr, clock := newTestTracker(gw, store)
	ctx := context.Background()

	tt := tr.Track("XYZ", "t-xyz")
	tr.SubmitBuy(ctx, tt, 12.50, 80, "vwap breakout")

	*clock = clock.Add(61 * time.Second)
	ev := tr.Poll(ctx, tt, nil)
	if ev.Type != EventBuyCancelled {
		t.Fatalf("event = %v, want buy cancelled", ev.Type)
	}
	if tt.State != StateWatching || tt.PendingOrderID != "" {
		t.Errorf("state = %v order = %q, want watching with no order", tt.State, tt.PendingOrderID)
	}
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "B1" {
		t.Errorf("cancelled = %v, want [B1]", gw.cancelled)
	}
}

func TestBuyCancelRefusedKeepsWaiting(t *testing.T) {
	gw := &scriptGateway{buyResult: &broker.OrderResult{OrderID: "B1"}, cancelOK: false}
	tr, clock := newTestTracker(gw, report.NewMemoryStore())
	ctx := context.Background()

	tt := tr.Track("XYZ", "t-xyz")
	tr.SubmitBuy(ctx, tt, 12.50, 80, "vwap breakout")
	*clock = clock.Add(61 * time.Second)

	if ev := tr.Poll(ctx, tt, nil); ev.Type != EventNone {
		t.Fatalf("event = %v, want none while cancel refused", ev.Type)
	}
	if tt.State != StatePendingBuy {
		t.Errorf("state = %v, want pending buy", tt.State)
	}
}

func TestSellFillClosesPosition(t *testing.T) {
	gw := &scriptGateway{sellQueue: []*broker.OrderResult{{OrderID: "S1"}}}
	store := report.NewMemoryStore()
	tr, _ := newTestTracker(gw, store)
	ctx := context.Background()

	tt := tr.Track("XYZ", "t-xyz")
	tt.State = StateHolding
	tt.Holdings = 80
	tt.EntryCost = 12.00

	tr.SubmitSell(ctx, tt, 12.50, "profit target")
	if tt.State != StatePendingSell {
		t.Fatalf("state = %v, want pending sell", tt.State)
	}

	// position gone means the sell filled
	ev := tr.Poll(ctx, tt, nil)
	if ev.Type != EventSellFilled {
		t.Fatalf("event = %v, want sell filled", ev.Type)
	}
	if want := (12.50 - 12.00) * 80; ev.PnL != want {
		t.Errorf("pnl = %v, want %v", ev.PnL, want)
	}
	if tr.IsTracked("XYZ") {
		t.Error("symbol still tracked after close")
	}

	notes := store.Notes()
	if len(notes) != 1 || notes[0].OrderID != "S1" || notes[0].Note != "profit target" {
		t.Errorf("notes = %+v, want one profit-target note on S1", notes)
	}
}

func TestSellTimeoutResubmitsAtBid(t *testing.T) {
	gw := &scriptGateway{
		sellQueue: []*broker.OrderResult{{OrderID: "S1"}, {OrderID: "S2"}},
		cancelOK:  true,
		quote:     &broker.Quote{Bid: 9.80, Ask: 9.85},
	}
	tr, clock := newTestTracker(gw, report.NewMemoryStore())
	ctx := context.Background()

	tt := tr.Track("XYZ", "t-xyz")
	tt.State = StateHolding
	tt.Holdings = 80
	tt.EntryCost = 10.00
	tr.SubmitSell(ctx, tt, 10.00, "stop loss")

	held := []broker.Position{{Symbol: "XYZ", TickerID: "t-xyz", Quantity: 80}}
	*clock = clock.Add(61 * time.Second)
	ev := tr.Poll(ctx, tt, held)
	if ev.Type != EventSellResubmitted {
		t.Fatalf("event = %v, want sell resubmitted", ev.Type)
	}
	if tt.PendingOrderID != "S2" || tt.PendingPrice != 9.80 || tt.ResubmitCount != 1 {
		t.Errorf("after resubmit: order=%q price=%v count=%d", tt.PendingOrderID, tt.PendingPrice, tt.ResubmitCount)
	}

	last := gw.sells[len(gw.sells)-1]
	if !last.LimitPrice.Equal(decimal.NewFromFloat(9.80).Round(2)) {
		t.Errorf("resubmit limit = %v, want 9.80", last.LimitPrice)
	}
}

func TestSellResubmitClampsToRemainingPosition(t *testing.T) {
	gw := &scriptGateway{
		sellQueue: []*broker.OrderResult{{OrderID: "S1"}, {OrderID: "S2"}},
		cancelOK:  true,
		quote:     &broker.Quote{Bid: 9.80, Ask: 9.85},
	}
	tr, clock := newTestTracker(gw, report.NewMemoryStore())
	ctx := context.Background()

	tt := tr.Track("XYZ", "t-xyz")
	tt.State = StateHolding
	tt.Holdings = 80
	tt.EntryCost = 10.00
	tr.SubmitSell(ctx, tt, 10.00, "stop loss")

	// the cancelled order partially filled: only 30 shares remain
	held := []broker.Position{{Symbol: "XYZ", TickerID: "t-xyz", Quantity: 30}}
	*clock = clock.Add(61 * time.Second)
	if ev := tr.Poll(ctx, tt, held); ev.Type != EventSellResubmitted {
		t.Fatalf("event = %v, want sell resubmitted", ev.Type)
	}

	last := gw.sells[len(gw.sells)-1]
	if last.Quantity != 30 {
		t.Errorf("resubmit quantity = %d, want the 30 shares still held", last.Quantity)
	}
	if tt.PendingQuantity != 30 {
		t.Errorf("pending quantity = %d, want 30", tt.PendingQuantity)
	}
}

func TestSellResubmitCeiling(t *testing.T) {
	gw := &scriptGateway{
		sellQueue: []*broker.OrderResult{{OrderID: "S1"}},
		cancelOK:  true,
		quote:     &broker.Quote{Bid: 9.80, Ask: 9.85},
	}
	tr, clock := newTestTracker(gw, report.NewMemoryStore())
	ctx := context.Background()

	tt := tr.Track("XYZ", "t-xyz")
	tt.State = StateHolding
	tt.Holdings = 80
	tt.EntryCost = 10.00
	tr.SubmitSell(ctx, tt, 10.00, "stop loss")
	tt.ResubmitCount = 2 // at the ceiling

	held := []broker.Position{{Symbol: "XYZ", TickerID: "t-xyz", Quantity: 80}}
	*clock = clock.Add(61 * time.Second)
	if ev := tr.Poll(ctx, tt, held); ev.Type != EventNone {
		t.Fatalf("event = %v, want none at resubmit ceiling", ev.Type)
	}
	if len(gw.cancelled) != 0 {
		t.Error("order cancelled despite resubmit ceiling")
	}
	if tt.State != StatePendingSell || tt.PendingOrderID != "S1" {
		t.Errorf("order must stay outstanding: state=%v order=%q", tt.State, tt.PendingOrderID)
	}
}

func TestTransportErrorsAreNoOps(t *testing.T) {
	gw := &scriptGateway{buyErr: errors.New("connection refused")}
	tr, _ := newTestTracker(gw, report.NewMemoryStore())
	ctx := context.Background()

	tt := tr.Track("XYZ", "t-xyz")
	tr.SubmitBuy(ctx, tt, 12.50, 80, "vwap breakout")
	if tt.State != StateWatching || tt.PendingOrderID != "" {
		t.Errorf("transport error must leave state untouched: %+v", tt)
	}

	// cancel transport error keeps the pending order alive
	gw2 := &scriptGateway{buyResult: &broker.OrderResult{OrderID: "B1"}, cancelErr: errors.New("timeout")}
	tr2, clock := newTestTracker(gw2, report.NewMemoryStore())
	tt2 := tr2.Track("ABC", "t-abc")
	tr2.SubmitBuy(ctx, tt2, 5.00, 100, "vwap breakout")
	*clock = clock.Add(2 * time.Minute)
	if ev := tr2.Poll(ctx, tt2, nil); ev.Type != EventNone {
		t.Errorf("cancel transport error must be a no-op")
	}
	if tt2.State != StatePendingBuy {
		t.Errorf("state = %v, want pending buy", tt2.State)
	}
}

func TestBuyRejectionStaysWatching(t *testing.T) {
	gw := &scriptGateway{buyResult: &broker.OrderResult{Message: "insufficient funds"}}
	tr, _ := newTestTracker(gw, report.NewMemoryStore())

	tt := tr.Track("XYZ", "t-xyz")
	tr.SubmitBuy(context.Background(), tt, 12.50, 80, "vwap breakout")
	if tt.State != StateWatching {
		t.Errorf("state = %v, want watching after rejection", tt.State)
	}
}

func TestLiquidateSellsHoldingsAndDropsWatchers(t *testing.T) {
	gw := &scriptGateway{
		sellQueue: []*broker.OrderResult{{OrderID: "S1"}},
		cancelOK:  true,
		quote:     &broker.Quote{Bid: 11.00, Ask: 11.05},
	}
	tr, _ := newTestTracker(gw, report.NewMemoryStore())
	ctx := context.Background()

	tr.Track("WATCH", "t-w")
	held := tr.Track("HELD", "t-h")
	held.State = StateHolding
	held.Holdings = 50
	held.EntryCost = 10.00

	tr.Liquidate(ctx, "end of session liquidation")

	if tr.IsTracked("WATCH") {
		t.Error("watcher not dropped by liquidation")
	}
	if held.State != StatePendingSell || held.ExitNote != "end of session liquidation" {
		t.Errorf("holding not sold: state=%v note=%q", held.State, held.ExitNote)
	}
	if len(gw.sells) != 1 || gw.sells[0].Quantity != 50 {
		t.Errorf("sells = %+v, want one 50-share order", gw.sells)
	}
}
