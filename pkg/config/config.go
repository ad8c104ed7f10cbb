package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Window identifies which trading-hour window a session runs in.
type Window string

const (
	WindowRegular    Window = "regular"    // 9:30 AM - 4:00 PM ET
	WindowPreMarket  Window = "premarket"  // 4:00 AM - 9:30 AM ET
	WindowAfterHours Window = "afterhours" // 4:00 PM - 8:00 PM ET
)

// Settings holds one immutable configuration snapshot for a trading session.
// It is loaded once at startup and never mutated while the session runs.
type Settings struct {
	// Mode
	Paper  bool
	Window Window

	// Entry sizing
	BuyAmount         float64 // dollars committed per entry
	MaxTrackedTickers int

	// Surge / scan thresholds
	MinSurgeChangePct float64 // gainer change percentage, e.g. 0.08 for 8%
	MinSurgeAmount    float64 // latest close * latest volume floor
	MinSurgeVolume    int64
	MaxBidAskGapRatio float64 // (ask-bid)/bid ceiling for entries
	BarFetchCount     int     // 1m bars fetched per symbol evaluation
	Blacklist         []string

	// Exit thresholds
	ProfitTargetRatio  float64 // take profit when P&L ratio >= this
	StopLossRatio      float64 // cut when P&L ratio <= this (negative)
	HardStopRatio      float64 // per-ticker stop price = entry * (1 + this)
	ChannelLookback    int     // turtle channel width in bars
	HoldTimeout        time.Duration
	MinHoldProfitRatio float64 // below this after HoldTimeout => "held too long"

	// Lifecycle timeouts
	ObserveTimeout      time.Duration // drop flat tickers after this
	PendingOrderTimeout time.Duration
	MaxSellResubmits    int
	CooldownInterval    time.Duration // re-entry block after a sell

	// Session cadence
	PollInterval         time.Duration
	LoginRefreshInterval time.Duration
	LiquidateBefore      time.Duration // start EOD liquidation this early
	DrainTimeout         time.Duration // cap on the post-window drain

	// Risk
	MaxDailyLoss float64 // stop opening entries past this realized loss; 0 disables

	// Collaborator endpoints
	FeedBaseURL   string
	FeedAPIKey    string
	BrokerBaseURL string // empty => in-memory paper gateway
	DatabaseURL   string // empty => in-memory report store
	MetricsAddr   string
}

// Load reads settings from the environment, with .env support.
func Load() (*Settings, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	s := &Settings{
		Paper:  getEnvBool("PAPER_TRADING", true),
		Window: Window(strings.ToLower(getEnv("TRADING_WINDOW", string(WindowRegular)))),

		BuyAmount:         getEnvFloat("BUY_AMOUNT", 1000),
		MaxTrackedTickers: getEnvInt("MAX_TRACKED_TICKERS", 6),

		MinSurgeChangePct: getEnvFloat("MIN_SURGE_CHANGE_PCT", 0.08),
		MinSurgeAmount:    getEnvFloat("MIN_SURGE_AMOUNT", 21000),
		MinSurgeVolume:    int64(getEnvInt("MIN_SURGE_VOLUME", 3000)),
		MaxBidAskGapRatio: getEnvFloat("MAX_BID_ASK_GAP_RATIO", 0.02),
		BarFetchCount:     getEnvInt("BAR_FETCH_COUNT", 20),
		Blacklist:         parseCommaList(getEnv("BLACKLIST", "")),

		ProfitTargetRatio:  getEnvFloat("PROFIT_TARGET_RATIO", 0.02),
		StopLossRatio:      getEnvFloat("STOP_LOSS_RATIO", -0.01),
		HardStopRatio:      getEnvFloat("HARD_STOP_RATIO", -0.03),
		ChannelLookback:    getEnvInt("CHANNEL_LOOKBACK", 10),
		HoldTimeout:        getEnvDuration("HOLD_TIMEOUT", 30*time.Minute),
		MinHoldProfitRatio: getEnvFloat("MIN_HOLD_PROFIT_RATIO", 0.01),

		ObserveTimeout:      getEnvDuration("OBSERVE_TIMEOUT", 3*time.Minute),
		PendingOrderTimeout: getEnvDuration("PENDING_ORDER_TIMEOUT", 60*time.Second),
		MaxSellResubmits:    getEnvInt("MAX_SELL_RESUBMITS", 5),
		CooldownInterval:    getEnvDuration("COOLDOWN_INTERVAL", 15*time.Minute),

		PollInterval:         getEnvDuration("POLL_INTERVAL", time.Second),
		LoginRefreshInterval: getEnvDuration("LOGIN_REFRESH_INTERVAL", 10*time.Minute),
		LiquidateBefore:      getEnvDuration("LIQUIDATE_BEFORE", 10*time.Minute),
		DrainTimeout:         getEnvDuration("DRAIN_TIMEOUT", 2*time.Minute),

		MaxDailyLoss: getEnvFloat("MAX_DAILY_LOSS", 0),

		FeedBaseURL:   getEnv("FEED_BASE_URL", "http://localhost:8085"),
		FeedAPIKey:    getEnv("FEED_API_KEY", ""),
		BrokerBaseURL: getEnv("BROKER_BASE_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9183"),
	}

	switch s.Window {
	case WindowRegular, WindowPreMarket, WindowAfterHours:
	default:
		return nil, fmt.Errorf("invalid TRADING_WINDOW: %q", s.Window)
	}

	return s, nil
}

// Validate checks that required configuration is present before a session starts.
func (s *Settings) Validate(live bool) error {
	if s.BuyAmount <= 0 {
		return fmt.Errorf("BUY_AMOUNT must be > 0")
	}
	if s.MaxTrackedTickers <= 0 {
		return fmt.Errorf("MAX_TRACKED_TICKERS must be > 0")
	}
	if s.ChannelLookback < 2 {
		return fmt.Errorf("CHANNEL_LOOKBACK must be >= 2")
	}
	if s.MaxSellResubmits < 0 {
		return fmt.Errorf("MAX_SELL_RESUBMITS must be >= 0")
	}
	if s.FeedAPIKey == "" {
		return fmt.Errorf("FEED_API_KEY is required")
	}
	if live && s.BrokerBaseURL == "" {
		return fmt.Errorf("BROKER_BASE_URL is required for live trading")
	}
	return nil
}

// IsBlacklisted checks if a symbol is in the blacklist.
func (s *Settings) IsBlacklisted(symbol string) bool {
	for _, b := range s.Blacklist {
		if strings.EqualFold(b, symbol) {
			return true
		}
	}
	return false
}

// WindowBounds returns the open and close times of the configured window for
// the trading day containing t.
func (s *Settings) WindowBounds(t time.Time, location *time.Location) (time.Time, time.Time) {
	et := t.In(location)
	day := func(h, m int) time.Time {
		return time.Date(et.Year(), et.Month(), et.Day(), h, m, 0, 0, location)
	}
	switch s.Window {
	case WindowPreMarket:
		return day(4, 0), day(9, 30)
	case WindowAfterHours:
		return day(16, 0), day(20, 0)
	default:
		return day(9, 30), day(16, 0)
	}
}

// GetLocation returns the ET timezone location for market hours.
func GetLocation() (*time.Location, error) {
	return time.LoadLocation("America/New_York")
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return i
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// parseCommaList parses a comma-separated list and trims whitespace.
func parseCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
