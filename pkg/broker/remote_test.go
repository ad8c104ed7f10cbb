package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteGatewayOrderFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"success":true}`)
		case "/orders":
			var req OrderRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode order: %v", err)
			}
			if req.Side != SideBuy || req.Symbol != "XYZ" {
				t.Errorf("order = %+v", req)
			}
			if req.LimitPrice.String() != "10.75" {
				t.Errorf("limit = %s, want 10.75", req.LimitPrice)
			}
			fmt.Fprint(w, `{"order_id":"B1"}`)
		case "/orders/B1/cancel":
			fmt.Fprint(w, `{"success":true}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	gw := NewRemoteGateway(srv.URL)

	if err := gw.Login(ctx, true); err != nil {
		t.Fatal(err)
	}
	result, err := gw.BuyLimit(ctx, LimitRequest("XYZ", "t-xyz", SideBuy, 10.75, 93))
	if err != nil {
		t.Fatal(err)
	}
	if result.OrderID != "B1" || result.Rejected() {
		t.Fatalf("result = %+v", result)
	}
	ok, err := gw.CancelOrder(ctx, "B1")
	if err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}
}

func TestRemoteGatewayBusinessRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"msg":"insufficient buying power"}`)
	}))
	defer srv.Close()

	gw := NewRemoteGateway(srv.URL)
	result, err := gw.SellLimit(context.Background(), LimitRequest("XYZ", "t-xyz", SideSell, 10.00, 10))
	if err != nil {
		t.Fatalf("business rejection must not be a transport error: %v", err)
	}
	if !result.Rejected() || result.Message != "insufficient buying power" {
		t.Errorf("result = %+v, want a rejection with message", result)
	}
}

func TestRemoteGatewayTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := NewRemoteGateway(srv.URL)
	if _, err := gw.Positions(context.Background()); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestRemoteGatewayLoginRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"msg":"bad credentials"}`)
	}))
	defer srv.Close()

	gw := NewRemoteGateway(srv.URL)
	if err := gw.Login(context.Background(), false); err == nil {
		t.Error("expected an error when login is refused")
	}
}
