package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the side of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus is the broker-reported lifecycle state of an order.
type OrderStatus string

const (
	StatusWorking   OrderStatus = "WORKING"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusFailed    OrderStatus = "FAILED"
)

// OrderRequest is a limit-order submission. Prices are carried as decimals so
// they serialize to exact cents at the broker boundary.
type OrderRequest struct {
	Symbol     string          `json:"symbol"`
	TickerID   string          `json:"ticker_id"`
	Side       OrderSide       `json:"side"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Quantity   int             `json:"quantity"`
}

// LimitRequest builds an OrderRequest with the price rounded to cents.
func LimitRequest(symbol, tickerID string, side OrderSide, price float64, qty int) OrderRequest {
	return OrderRequest{
		Symbol:     symbol,
		TickerID:   tickerID,
		Side:       side,
		LimitPrice: decimal.NewFromFloat(price).Round(2),
		Quantity:   qty,
	}
}

// OrderResult is the broker's answer to a submission. Exactly one of OrderID
// and Message is set: a Message with no OrderID is a business rejection
// (insufficient funds, halted symbol, ...), not a transport error.
type OrderResult struct {
	OrderID string `json:"order_id"`
	Message string `json:"msg"`
}

// Rejected reports whether the submission was refused by the broker.
func (r *OrderResult) Rejected() bool {
	return r != nil && r.OrderID == ""
}

// Position is one holding row from the broker.
type Position struct {
	Symbol    string  `json:"symbol"`
	TickerID  string  `json:"ticker_id"`
	Quantity  int     `json:"quantity"`
	CostPrice float64 `json:"cost_price"`
	LastPrice float64 `json:"last_price"`
}

// Quote is a bid/ask snapshot.
type Quote struct {
	Bid     float64   `json:"bid"`
	Ask     float64   `json:"ask"`
	BidSize int64     `json:"bid_size"`
	AskSize int64     `json:"ask_size"`
	Time    time.Time `json:"time"`
}

// GapRatio returns the relative bid/ask spread (ask-bid)/bid.
func (q *Quote) GapRatio() float64 {
	if q == nil || q.Bid <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / q.Bid
}

// HistoryOrder is one row of the broker's order history.
type HistoryOrder struct {
	OrderID        string      `json:"order_id"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Status         OrderStatus `json:"status"`
	Price          float64     `json:"price"`
	FilledQuantity int         `json:"filled_quantity"`
	PlacedAt       time.Time   `json:"placed_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Gateway is the minimal brokerage surface the bot needs. Any call may fail
// with a transport error; callers treat that as "no update this poll" and
// retry on the next cycle.
type Gateway interface {
	Name() string

	// Login establishes or refreshes the broker session token.
	Login(ctx context.Context, paper bool) error

	// Positions returns current holdings.
	Positions(ctx context.Context) ([]Position, error)

	// GetQuote returns the current bid/ask for a ticker.
	GetQuote(ctx context.Context, tickerID string) (*Quote, error)

	// BuyLimit and SellLimit submit limit orders.
	BuyLimit(ctx context.Context, req OrderRequest) (*OrderResult, error)
	SellLimit(ctx context.Context, req OrderRequest) (*OrderResult, error)

	// CancelOrder requests cancellation; false means the broker refused
	// (typically because the order already filled).
	CancelOrder(ctx context.Context, orderID string) (bool, error)

	// HistoryOrders returns recent orders filtered by status.
	HistoryOrders(ctx context.Context, status OrderStatus, count int) ([]HistoryOrder, error)
}
