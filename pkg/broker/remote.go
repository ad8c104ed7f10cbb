package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteGateway talks to the brokerage sidecar over JSON/HTTP. The sidecar
// owns credentials and the wire format; this client only normalizes responses
// for the trading loop.
type RemoteGateway struct {
	baseURL string
	client  *http.Client
}

// NewRemoteGateway creates a gateway client for the given sidecar base URL.
func NewRemoteGateway(baseURL string) *RemoteGateway {
	return &RemoteGateway{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (g *RemoteGateway) Name() string { return "remote" }

// Login establishes or refreshes the sidecar's broker session.
func (g *RemoteGateway) Login(ctx context.Context, paper bool) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"msg"`
	}
	err := g.post(ctx, "/login", map[string]any{"paper": paper}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("login refused: %s", resp.Message)
	}
	return nil
}

// Positions returns current holdings.
func (g *RemoteGateway) Positions(ctx context.Context) ([]Position, error) {
	var resp struct {
		Positions []Position `json:"positions"`
	}
	if err := g.get(ctx, "/positions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// GetQuote returns the current bid/ask for a ticker.
func (g *RemoteGateway) GetQuote(ctx context.Context, tickerID string) (*Quote, error) {
	var q Quote
	if err := g.get(ctx, "/quote", map[string]string{"ticker_id": tickerID}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// BuyLimit submits a buy limit order.
func (g *RemoteGateway) BuyLimit(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	req.Side = SideBuy
	return g.placeOrder(ctx, req)
}

// SellLimit submits a sell limit order.
func (g *RemoteGateway) SellLimit(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	req.Side = SideSell
	return g.placeOrder(ctx, req)
}

func (g *RemoteGateway) placeOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	var result OrderResult
	if err := g.post(ctx, "/orders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelOrder requests cancellation of a working order.
func (g *RemoteGateway) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	var resp struct {
		Success bool `json:"success"`
	}
	err := g.post(ctx, fmt.Sprintf("/orders/%s/cancel", orderID), nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

// HistoryOrders returns recent orders filtered by status.
func (g *RemoteGateway) HistoryOrders(ctx context.Context, status OrderStatus, count int) ([]HistoryOrder, error) {
	var resp struct {
		Orders []HistoryOrder `json:"orders"`
	}
	params := map[string]string{"count": fmt.Sprintf("%d", count)}
	if status != "" {
		params["status"] = string(status)
	}
	if err := g.get(ctx, "/orders", params, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (g *RemoteGateway) get(ctx context.Context, path string, params map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	req.URL.RawQuery = q.Encode()
	return g.do(req, out)
}

func (g *RemoteGateway) post(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("failed to marshal request: %v", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *RemoteGateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("broker request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read broker response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broker error: status %d, body: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode broker response: %v", err)
	}
	return nil
}
