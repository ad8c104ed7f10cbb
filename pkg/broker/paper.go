package broker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PaperGateway is an in-memory broker. Limit orders rest until they are
// marketable against the latest posted quote and the configured fill delay
// has elapsed, so pending-order states are exercised the same way they are
// against a real broker.
type PaperGateway struct {
	mu        sync.Mutex
	fillDelay time.Duration
	loggedIn  bool
	quotes    map[string]Quote // keyed by ticker id
	working   map[string]*paperOrder
	history   []HistoryOrder
	positions map[string]*Position // keyed by symbol
	now       func() time.Time
}

type paperOrder struct {
	req      OrderRequest
	orderID  string
	placedAt time.Time
}

// NewPaperGateway creates a paper broker. fillDelay is how long a marketable
// order rests before it fills; zero fills on the next reconciliation.
func NewPaperGateway(fillDelay time.Duration) *PaperGateway {
	return &PaperGateway{
		fillDelay: fillDelay,
		quotes:    make(map[string]Quote),
		working:   make(map[string]*paperOrder),
		positions: make(map[string]*Position),
		now:       time.Now,
	}
}

// SetClock overrides the time source. Used by replay and tests.
func (p *PaperGateway) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// SetQuote posts the current bid/ask for a ticker.
func (p *PaperGateway) SetQuote(tickerID string, bid, ask float64) {
	p.mu.Lock()
	p.quotes[tickerID] = Quote{Bid: bid, Ask: ask, BidSize: 100, AskSize: 100, Time: p.now()}
	p.mu.Unlock()
}

func (p *PaperGateway) Name() string { return "paper" }

func (p *PaperGateway) Login(ctx context.Context, paper bool) error {
	p.mu.Lock()
	p.loggedIn = true
	p.mu.Unlock()
	return nil
}

func (p *PaperGateway) GetQuote(ctx context.Context, tickerID string) (*Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.quotes[tickerID]
	if !ok {
		return nil, errNoQuote(tickerID)
	}
	return &q, nil
}

func (p *PaperGateway) BuyLimit(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	return p.place(req, SideBuy)
}

func (p *PaperGateway) SellLimit(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	p.mu.Lock()
	pos, ok := p.positions[req.Symbol]
	held := 0
	if ok {
		held = pos.Quantity
	}
	p.mu.Unlock()
	if req.Quantity > held {
		return &OrderResult{Message: "not enough shares to sell"}, nil
	}
	return p.place(req, SideSell)
}

func (p *PaperGateway) place(req OrderRequest, side OrderSide) (*OrderResult, error) {
	if req.Quantity <= 0 {
		return &OrderResult{Message: "quantity must be > 0"}, nil
	}
	req.Side = side

	p.mu.Lock()
	defer p.mu.Unlock()

	id := uuid.New().String()
	p.working[id] = &paperOrder{req: req, orderID: id, placedAt: p.now()}
	return &OrderResult{OrderID: id}, nil
}

// Positions settles any marketable working orders, then returns holdings.
func (p *PaperGateway) Positions(ctx context.Context) ([]Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settle()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if pos.Quantity > 0 {
			out = append(out, *pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (p *PaperGateway) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settle()

	o, ok := p.working[orderID]
	if !ok {
		// already filled or unknown
		return false, nil
	}
	delete(p.working, orderID)
	p.history = append(p.history, HistoryOrder{
		OrderID:  o.orderID,
		Symbol:   o.req.Symbol,
		Side:     o.req.Side,
		Status:   StatusCancelled,
		Price:    priceOf(o.req),
		PlacedAt: o.placedAt, UpdatedAt: p.now(),
	})
	return true, nil
}

func (p *PaperGateway) HistoryOrders(ctx context.Context, status OrderStatus, count int) ([]HistoryOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settle()

	out := make([]HistoryOrder, 0, count)
	for i := len(p.history) - 1; i >= 0 && len(out) < count; i-- {
		if status == "" || p.history[i].Status == status {
			out = append(out, p.history[i])
		}
	}
	return out, nil
}

// settle fills working orders that are marketable and past the fill delay.
// Caller holds the lock.
func (p *PaperGateway) settle() {
	now := p.now()
	for id, o := range p.working {
		if now.Sub(o.placedAt) < p.fillDelay {
			continue
		}
		limit := priceOf(o.req)
		q, hasQuote := p.quotes[o.req.TickerID]
		if hasQuote {
			// marketability against the posted quote
			if o.req.Side == SideBuy && q.Ask > limit {
				continue
			}
			if o.req.Side == SideSell && q.Bid < limit {
				continue
			}
		}
		p.fill(o, limit)
		delete(p.working, id)
	}
}

func (p *PaperGateway) fill(o *paperOrder, price float64) {
	pos, ok := p.positions[o.req.Symbol]
	if !ok {
		pos = &Position{Symbol: o.req.Symbol, TickerID: o.req.TickerID}
		p.positions[o.req.Symbol] = pos
	}
	if o.req.Side == SideBuy {
		total := pos.CostPrice*float64(pos.Quantity) + price*float64(o.req.Quantity)
		pos.Quantity += o.req.Quantity
		pos.CostPrice = total / float64(pos.Quantity)
	} else {
		pos.Quantity -= o.req.Quantity
		if pos.Quantity <= 0 {
			delete(p.positions, o.req.Symbol)
		}
	}
	pos.LastPrice = price

	p.history = append(p.history, HistoryOrder{
		OrderID:        o.orderID,
		Symbol:         o.req.Symbol,
		Side:           o.req.Side,
		Status:         StatusFilled,
		Price:          price,
		FilledQuantity: o.req.Quantity,
		PlacedAt:       o.placedAt,
		UpdatedAt:      p.now(),
	})
}

func priceOf(req OrderRequest) float64 {
	f, _ := req.LimitPrice.Float64()
	return f
}

type errNoQuote string

func (e errNoQuote) Error() string { return "no quote for ticker " + string(e) }
