package scanner

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/surge-intraday-bot/pkg/config"
	"github.com/surge-intraday-bot/pkg/feed"
)

func scanSettings() *config.Settings {
	return &config.Settings{
		Window:            config.WindowRegular,
		MinSurgeChangePct: 0.08,
		MinSurgeAmount:    21000,
		MinSurgeVolume:    3000,
		BarFetchCount:     20,
	}
}

func surgeBar(close float64, volume int64, vwap float64) feed.Bar {
	return feed.Bar{
		Time:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Open:   close, High: close, Low: close, Close: close,
		Volume: volume,
		VWAP:   vwap,
	}
}

func TestScanAdmitsSurgingTicker(t *testing.T) {
	f := feed.NewStaticFeed()
	f.SetGainers([]feed.GainerEntry{{Symbol: "XYZ", TickerID: "t-xyz", ChangePct: 0.09}})
	// close*volume = 50000 >= 21000, volume 10000 >= 3000, close above vwap
	f.SetBars("t-xyz", []feed.Bar{surgeBar(5.00, 10000, 4.90)})

	sc := New(f, scanSettings(), zap.NewNop())
	got := sc.Scan(context.Background(), mustGainers(t, sc), nil)
	if len(got) != 1 || got[0].Symbol != "XYZ" {
		t.Fatalf("candidates = %+v, want [XYZ]", got)
	}
	if got[0].LatestClose != 5.00 || got[0].LatestVolume != 10000 {
		t.Errorf("candidate detail = %+v", got[0])
	}
}

func TestScanFilters(t *testing.T) {
	cases := []struct {
		name      string
		changePct float64
		bar       feed.Bar
	}{
		{"change below threshold", 0.07, surgeBar(5.00, 10000, 4.90)},
		{"dollar volume too small", 0.09, surgeBar(2.00, 10000, 1.90)},
		{"share volume too small", 0.09, surgeBar(10.00, 2500, 9.90)},
		{"close below vwap", 0.09, surgeBar(5.00, 10000, 5.10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := feed.NewStaticFeed()
			f.SetGainers([]feed.GainerEntry{{Symbol: "XYZ", TickerID: "t-xyz", ChangePct: tc.changePct}})
			f.SetBars("t-xyz", []feed.Bar{tc.bar})

			sc := New(f, scanSettings(), zap.NewNop())
			if got := sc.Scan(context.Background(), mustGainers(t, sc), nil); len(got) != 0 {
				t.Errorf("candidates = %+v, want none", got)
			}
		})
	}
}

func TestScanSkipsExcludedAndBlacklisted(t *testing.T) {
	f := feed.NewStaticFeed()
	f.SetGainers([]feed.GainerEntry{
		{Symbol: "TRACKED", TickerID: "t-1", ChangePct: 0.10},
		{Symbol: "BANNED", TickerID: "t-2", ChangePct: 0.10},
		{Symbol: "FRESH", TickerID: "t-3", ChangePct: 0.10},
	})
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		f.SetBars(id, []feed.Bar{surgeBar(5.00, 10000, 4.90)})
	}

	cfg := scanSettings()
	cfg.Blacklist = []string{"banned"}
	sc := New(f, cfg, zap.NewNop())

	got := sc.Scan(context.Background(), mustGainers(t, sc), func(symbol string) bool {
		return symbol == "TRACKED"
	})
	if len(got) != 1 || got[0].Symbol != "FRESH" {
		t.Fatalf("candidates = %+v, want [FRESH]", got)
	}
}

func TestScanSkipsTickersWithoutBars(t *testing.T) {
	f := feed.NewStaticFeed()
	f.SetGainers([]feed.GainerEntry{{Symbol: "NOBAR", TickerID: "t-n", ChangePct: 0.10}})

	sc := New(f, scanSettings(), zap.NewNop())
	if got := sc.Scan(context.Background(), mustGainers(t, sc), nil); len(got) != 0 {
		t.Errorf("candidates = %+v, want none when bars are unavailable", got)
	}
}

func TestCooldown(t *testing.T) {
	c := NewCooldown(15 * time.Minute)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	c.MarkSold("XYZ", start)
	if !c.Active("XYZ", start.Add(14*time.Minute)) {
		t.Error("expected cooldown active inside the interval")
	}
	if c.Active("XYZ", start.Add(15*time.Minute)) {
		t.Error("expected cooldown expired at the interval boundary")
	}
	if c.Active("NEVER", start) {
		t.Error("unknown symbol must not be cooling down")
	}
}

func mustGainers(t *testing.T, sc *Scanner) []feed.GainerEntry {
	t.Helper()
	gainers, err := sc.Gainers(context.Background())
	if err != nil {
		t.Fatalf("gainers: %v", err)
	}
	return gainers
}
