package report

import (
	"time"
)

// OrderRecord is one submitted order as the dashboard sees it. Rows are
// upserted by broker order id as reconciliation progresses.
type OrderRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	OrderID   string `gorm:"index" json:"order_id"`
	Symbol    string `gorm:"index" json:"symbol"`
	Side      string `json:"side"`
	Status    string `json:"status"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Setup     string  `json:"setup"` // strategy tag that triggered the trade
	Paper     bool    `json:"paper"`
	PlacedAt  time.Time `json:"placed_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TradeNote is a free-form annotation attached to an order, typically the
// exit reason recorded by the lifecycle tracker.
type TradeNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   string    `gorm:"index" json:"order_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountSnapshot is a point-in-time view of the account.
type AccountSnapshot struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	NetLiquidation float64   `json:"net_liquidation"`
	DayPnL         float64   `json:"day_pnl"`
	Holdings       int       `json:"holdings"`
	Paper          bool      `json:"paper"`
	TakenAt        time.Time `json:"taken_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// DailySettlement is the end-of-day P&L row, one per trading day.
type DailySettlement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Day         string    `gorm:"uniqueIndex" json:"day"` // YYYY-MM-DD
	RealizedPnL float64   `json:"realized_pnl"`
	Trades      int       `json:"trades"`
	Wins        int       `json:"wins"`
	Paper       bool      `json:"paper"`
	CreatedAt   time.Time `json:"created_at"`
}

// SettingsSnapshot is a versioned copy of the thresholds a session ran with.
// Exactly one row is active at a time.
type SettingsSnapshot struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	Active            bool    `gorm:"index" json:"active"`
	Window            string  `json:"window"`
	Paper             bool    `json:"paper"`
	BuyAmount         float64 `json:"buy_amount"`
	MinSurgeChangePct float64 `json:"min_surge_change_pct"`
	MinSurgeAmount    float64 `json:"min_surge_amount"`
	MinSurgeVolume    int64   `json:"min_surge_volume"`
	ProfitTargetRatio float64 `json:"profit_target_ratio"`
	StopLossRatio     float64 `json:"stop_loss_ratio"`
	CreatedAt         time.Time `json:"created_at"`
}
