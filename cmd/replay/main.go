// Command replay runs the entry/exit rules and the order lifecycle over a
// CSV of historical 1-minute bars against the in-memory paper gateway, then
// prints a trade summary. It is the offline harness for tuning thresholds
// without touching a live feed or broker.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/surge-intraday-bot/pkg/broker"
	"github.com/surge-intraday-bot/pkg/config"
	"github.com/surge-intraday-bot/pkg/feed"
	"github.com/surge-intraday-bot/pkg/report"
	"github.com/surge-intraday-bot/pkg/risk"
	"github.com/surge-intraday-bot/pkg/signal"
	"github.com/surge-intraday-bot/pkg/tracker"
)

// replayClock is a manual clock stepped bar by bar.
type replayClock struct{ now time.Time }

func (c *replayClock) Now() time.Time { return c.now }

func main() {
	fileFlag := flag.String("file", "", "CSV of 1-minute bars: time,open,high,low,close,volume[,vwap]")
	symbolFlag := flag.String("symbol", "SIM", "Symbol label for the replayed series")
	amountFlag := flag.Float64("amount", 1000, "Dollars committed per entry")
	spreadFlag := flag.Float64("spread", 0.01, "Simulated half-spread in dollars")
	verboseFlag := flag.Bool("v", false, "Log every decision")
	flag.Parse()

	if *fileFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -file bars.csv [-symbol SIM] [-amount 1000]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verboseFlag {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	bars, err := loadBars(*fileFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load bars: %v\n", err)
		os.Exit(1)
	}
	bars = signal.FillVWAP(bars)
	fmt.Printf("Replaying %d bars of %s (%s to %s)\n\n",
		len(bars), *symbolFlag,
		bars[0].Time.Format("2006-01-02 15:04"),
		bars[len(bars)-1].Time.Format("15:04"))

	symbol := *symbolFlag
	ctx := context.Background()
	clock := &replayClock{now: bars[0].Time}

	store := report.NewMemoryStore()
	gateway := broker.NewPaperGateway(0)
	gateway.SetClock(clock.Now)

	tr := tracker.New(gateway, store, tracker.Config{
		PendingOrderTimeout: cfg.PendingOrderTimeout,
		MaxSellResubmits:    cfg.MaxSellResubmits,
		HardStopRatio:       cfg.HardStopRatio,
		Paper:               true,
	}, logger)
	tr.SetClock(clock.Now)
	tr.Track(symbol, symbol)

	var realized float64
	var trades, wins int

	warmup := 10 // EMA9 seed plus one comparison bar
	for i := warmup; i < len(bars); i++ {
		b := bars[i]
		clock.now = b.Time
		bid, ask := b.Close-*spreadFlag, b.Close+*spreadFlag
		gateway.SetQuote(symbol, bid, ask)

		positions, _ := gateway.Positions(ctx)
		for _, tt := range tr.All() {
			ev := tr.Poll(ctx, tt, positions)
			if ev.Type == tracker.EventSellFilled {
				realized += ev.PnL
				trades++
				if ev.PnL > 0 {
					wins++
				}
				fmt.Printf("%s  CLOSED %.2f P&L  (%s)\n", b.Time.Format("15:04"), ev.PnL, ev.Note)
			}
		}

		window := bars[:i+1]
		if len(window) > cfg.BarFetchCount {
			window = window[len(window)-cfg.BarFetchCount:]
		}

		tt, ok := tr.Get(symbol)
		if !ok {
			// position closed this bar; re-track so the series can trade again
			tr.Track(symbol, symbol)
			continue
		}

		switch tt.State {
		case tracker.StateWatching:
			d := signal.EvaluateEntry(window, bid, ask, signal.EntryParams{
				EMAPeriod:         9,
				MaxBidAskGapRatio: cfg.MaxBidAskGapRatio,
			})
			if d.Act {
				qty := risk.SharesForAmount(*amountFlag, ask)
				if qty > 0 {
					fmt.Printf("%s  BUY %d @ %.2f  (%s)\n", b.Time.Format("15:04"), qty, ask, d.Reason)
					tr.SubmitBuy(ctx, tt, ask, qty, "vwap breakout")
				}
			}
		case tracker.StateHolding:
			tr.UpdateExtremes(tt, bid)
			d := signal.EvaluateExit(window, signal.ExitParams{
				EntryCost:          tt.EntryCost,
				EntryTime:          tt.OrderFilledTime,
				Now:                b.Time,
				StopPrice:          tt.StopPrice,
				ChannelLookback:    cfg.ChannelLookback,
				ProfitTargetRatio:  cfg.ProfitTargetRatio,
				StopLossRatio:      cfg.StopLossRatio,
				HoldTimeout:        cfg.HoldTimeout,
				MinHoldProfitRatio: cfg.MinHoldProfitRatio,
			})
			if d.Act {
				fmt.Printf("%s  SELL %d @ %.2f  (%s)\n", b.Time.Format("15:04"), tt.Holdings, bid, d.Reason)
				tr.SubmitSell(ctx, tt, bid, d.Reason)
			}
		}
	}

	// force-close anything still open at the last bar
	last := bars[len(bars)-1]
	clock.now = last.Time.Add(cfg.PendingOrderTimeout + time.Second)
	tr.Liquidate(ctx, "end of replay")
	positions, _ := gateway.Positions(ctx)
	for _, tt := range tr.All() {
		ev := tr.Poll(ctx, tt, positions)
		if ev.Type == tracker.EventSellFilled {
			realized += ev.PnL
			trades++
			if ev.PnL > 0 {
				wins++
			}
		}
	}

	fmt.Printf("\n=== Replay Summary ===\n")
	fmt.Printf("Trades:   %d (%d winners)\n", trades, wins)
	fmt.Printf("Realized: $%.2f\n", realized)
	fmt.Printf("Orders:   %d recorded\n", len(store.Orders()))
}

// loadBars reads a CSV of 1-minute bars. Timestamps may be RFC3339 or unix
// seconds; a header row is skipped automatically.
func loadBars(path string) ([]feed.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var bars []feed.Bar
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("row %d: need at least 6 fields, got %d", i+1, len(row))
		}
		t, err := parseTime(row[0])
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("row %d: bad time %q", i+1, row[0])
		}
		open, err1 := strconv.ParseFloat(row[1], 64)
		high, err2 := strconv.ParseFloat(row[2], 64)
		low, err3 := strconv.ParseFloat(row[3], 64)
		closePx, err4 := strconv.ParseFloat(row[4], 64)
		volume, err5 := strconv.ParseInt(row[5], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			return nil, fmt.Errorf("row %d: bad numeric field", i+1)
		}
		b := feed.Bar{Time: t, Open: open, High: high, Low: low, Close: closePx, Volume: volume}
		if len(row) > 6 {
			if vwap, err := strconv.ParseFloat(row[6], 64); err == nil {
				b.VWAP = vwap
			}
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars in %s", path)
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
