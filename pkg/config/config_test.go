package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("BUY_AMOUNT", "2500")
	t.Setenv("TRADING_WINDOW", "PreMarket")
	t.Setenv("BLACKLIST", "gme, amc ,BBBY")
	t.Setenv("HOLD_TIMEOUT", "45m")

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.BuyAmount != 2500 {
		t.Errorf("BuyAmount = %v, want 2500", s.BuyAmount)
	}
	if s.Window != WindowPreMarket {
		t.Errorf("Window = %q, want premarket", s.Window)
	}
	if s.HoldTimeout != 45*time.Minute {
		t.Errorf("HoldTimeout = %v, want 45m", s.HoldTimeout)
	}
	if s.MinSurgeChangePct != 0.08 {
		t.Errorf("MinSurgeChangePct default = %v, want 0.08", s.MinSurgeChangePct)
	}
	if len(s.Blacklist) != 3 {
		t.Errorf("Blacklist = %v, want 3 entries", s.Blacklist)
	}
}

func TestLoadRejectsUnknownWindow(t *testing.T) {
	t.Setenv("TRADING_WINDOW", "overnight")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unknown window")
	}
}

func TestIsBlacklistedIgnoresCase(t *testing.T) {
	s := &Settings{Blacklist: []string{"GME", "amc"}}
	for _, sym := range []string{"gme", "GME", "Amc"} {
		if !s.IsBlacklisted(sym) {
			t.Errorf("IsBlacklisted(%q) = false, want true", sym)
		}
	}
	if s.IsBlacklisted("TSLA") {
		t.Error("IsBlacklisted(TSLA) = true, want false")
	}
}

func TestWindowBounds(t *testing.T) {
	loc, err := GetLocation()
	if err != nil {
		t.Fatal(err)
	}
	day := time.Date(2026, 3, 2, 12, 0, 0, 0, loc)

	cases := []struct {
		window              Window
		openHour, closeHour int
		openMin             int
	}{
		{WindowRegular, 9, 16, 30},
		{WindowPreMarket, 4, 9, 0},
		{WindowAfterHours, 16, 20, 0},
	}
	for _, tc := range cases {
		s := &Settings{Window: tc.window}
		open, close := s.WindowBounds(day, loc)
		if open.Hour() != tc.openHour || open.Minute() != tc.openMin {
			t.Errorf("%s open = %v", tc.window, open)
		}
		if close.Hour() != tc.closeHour {
			t.Errorf("%s close = %v", tc.window, close)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := &Settings{
		BuyAmount:         1000,
		MaxTrackedTickers: 6,
		ChannelLookback:   10,
		FeedAPIKey:        "key",
	}
	if err := valid.Validate(false); err != nil {
		t.Errorf("valid paper config rejected: %v", err)
	}
	if err := valid.Validate(true); err == nil {
		t.Error("live config without BROKER_BASE_URL accepted")
	}

	missingKey := *valid
	missingKey.FeedAPIKey = ""
	if err := missingKey.Validate(false); err == nil {
		t.Error("config without FEED_API_KEY accepted")
	}
}
