// Package metrics exposes the bot's Prometheus collectors. They are
// registered in init() and served by the HTTP handler started in main at
// /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders submitted to the broker",
		},
		[]string{"mode", "side"}, // mode: paper|live
	)

	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Per-ticker decisions taken each poll",
		},
		[]string{"signal"}, // enter|exit|hold|drop
	)

	exitReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_exit_reasons_total",
			Help: "Forced exits split by reason",
		},
		[]string{"reason"},
	)

	trackedTickers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_tracked_tickers",
			Help: "Tickers currently under tracking",
		},
	)

	dailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_daily_realized_pnl_usd",
			Help: "Realized P&L for the current trading day",
		},
	)

	brokerErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_broker_errors_total",
			Help: "Broker calls that failed and were treated as no-ops",
		},
	)

	scanCandidates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_scan_candidates_total",
			Help: "Symbols admitted to tracking by the scanner",
		},
	)

	sellResubmits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_sell_resubmits_total",
			Help: "Sell orders resubmitted after a pending timeout",
		},
	)
)

func init() {
	prometheus.MustRegister(orders, decisions, exitReasons)
	prometheus.MustRegister(trackedTickers, dailyPnL)
	prometheus.MustRegister(brokerErrors, scanCandidates, sellResubmits)
}

func IncOrder(mode, side string)  { orders.WithLabelValues(mode, side).Inc() }
func IncDecision(signal string)   { decisions.WithLabelValues(signal).Inc() }
func IncExitReason(reason string) { exitReasons.WithLabelValues(reason).Inc() }
func SetTrackedTickers(n int)     { trackedTickers.Set(float64(n)) }
func SetDailyPnL(v float64)       { dailyPnL.Set(v) }
func IncBrokerError()             { brokerErrors.Inc() }
func IncScanCandidate()           { scanCandidates.Inc() }
func IncSellResubmit()            { sellResubmits.Inc() }
