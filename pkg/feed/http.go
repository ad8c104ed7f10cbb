package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFeed implements MarketDataFeed against the market-data sidecar's JSON
// API (gainer lists plus 1-minute aggregates).
type HTTPFeed struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHTTPFeed creates a feed client for the given base URL.
func NewHTTPFeed(baseURL, apiKey string) *HTTPFeed {
	return &HTTPFeed{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TopGainers returns the regular-hours gainer list.
func (f *HTTPFeed) TopGainers(ctx context.Context) ([]GainerEntry, error) {
	return f.gainers(ctx, "regular")
}

// PreMarketGainers returns the pre-market gainer list.
func (f *HTTPFeed) PreMarketGainers(ctx context.Context) ([]GainerEntry, error) {
	return f.gainers(ctx, "pre")
}

// AfterMarketGainers returns the after-hours gainer list.
func (f *HTTPFeed) AfterMarketGainers(ctx context.Context) ([]GainerEntry, error) {
	return f.gainers(ctx, "after")
}

func (f *HTTPFeed) gainers(ctx context.Context, session string) ([]GainerEntry, error) {
	endpoint := fmt.Sprintf("%s/v1/gainers", f.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	q := req.URL.Query()
	q.Add("apiKey", f.apiKey)
	q.Add("session", session)
	req.URL.RawQuery = q.Encode()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gainers: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gainers API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			Symbol    string  `json:"symbol"`
			TickerID  string  `json:"ticker_id"`
			ChangePct float64 `json:"change_percentage"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode gainers response: %v", err)
	}
	if result.Status != "OK" && result.Status != "DELAYED" {
		return nil, fmt.Errorf("gainers API returned non-OK status: %s", result.Status)
	}

	entries := make([]GainerEntry, 0, len(result.Results))
	for _, r := range result.Results {
		entries = append(entries, GainerEntry{
			Symbol:    r.Symbol,
			TickerID:  r.TickerID,
			ChangePct: r.ChangePct,
		})
	}
	return entries, nil
}

// OneMinuteBars fetches up to count recent 1-minute bars, oldest first.
func (f *HTTPFeed) OneMinuteBars(ctx context.Context, tickerID string, count int) ([]Bar, error) {
	endpoint := fmt.Sprintf("%s/v1/bars/%s/1m", f.baseURL, tickerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	q := req.URL.Query()
	q.Add("apiKey", f.apiKey)
	q.Add("count", fmt.Sprintf("%d", count))
	q.Add("sort", "asc")
	req.URL.RawQuery = q.Encode()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bars: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bars API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			T int64   `json:"t"` // timestamp (milliseconds)
			O float64 `json:"o"`
			H float64 `json:"h"`
			L float64 `json:"l"`
			C float64 `json:"c"`
			V float64 `json:"v"` // volume (can be float64 from the API)
			A float64 `json:"a"` // session VWAP
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode bars response: %v", err)
	}
	if result.Status != "OK" && result.Status != "DELAYED" {
		return nil, fmt.Errorf("bars API returned non-OK status: %s", result.Status)
	}

	bars := make([]Bar, 0, len(result.Results))
	for _, r := range result.Results {
		bars = append(bars, Bar{
			Time:   time.Unix(0, r.T*int64(time.Millisecond)),
			Open:   r.O,
			High:   r.H,
			Low:    r.L,
			Close:  r.C,
			Volume: int64(r.V),
			VWAP:   r.A,
		})
	}
	return bars, nil
}
