package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"weather-engine/pkg/types"
)

func simmerServer(t *testing.T, status int, body string, gotReq *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sdk/trade" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		if gotReq != nil {
			if err := json.NewDecoder(r.Body).Decode(gotReq); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func liveAdapter(t *testing.T, srv *httptest.Server) *LiveAdapter {
	t.Helper()
	client := NewSimmerClient(srv.URL, "test-key", discard())
	return NewLiveAdapter(client, "simmer", discard())
}

func TestLiveBuyFilled(t *testing.T) {
	t.Parallel()

	var req map[string]any
	srv := simmerServer(t, 200,
		`{"success": true, "trade_id": "t-1", "fill_price": 0.08, "shares_bought": 62.5}`, &req)
	adapter := liveAdapter(t, srv)

	result, err := adapter.Execute(context.Background(), testIntent())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusFilled {
		t.Fatalf("status = %s, want FILLED", result.Status)
	}
	if *result.FillPrice != 0.08 || *result.FillSize != 62.5 {
		t.Errorf("fill = %v @ %v", result.FillSize, result.FillPrice)
	}

	if req["side"] != "yes" || req["venue"] != "simmer" || req["source"] != "sdk:weatherchannel" {
		t.Errorf("request = %v", req)
	}
	if req["amount"] != 5.0 {
		t.Errorf("amount = %v, want 5", req["amount"])
	}
	if _, hasAction := req["action"]; hasAction {
		t.Error("buy must not carry action")
	}
}

func TestLiveSellCarriesActionAndShares(t *testing.T) {
	t.Parallel()

	var req map[string]any
	srv := simmerServer(t, 200, `{"success": true, "trade_id": "t-2", "price": 0.55}`, &req)
	adapter := liveAdapter(t, srv)

	intent := testIntent()
	intent.Side = "SELL"
	intent.Price = 0.55
	intent.Shares = 66.67

	result, err := adapter.Execute(context.Background(), intent)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusFilled {
		t.Fatalf("status = %s, want FILLED", result.Status)
	}
	if *result.FillPrice != 0.55 {
		t.Errorf("fill price = %v, want price fallback 0.55", *result.FillPrice)
	}
	if req["action"] != "sell" || req["shares"] != 66.67 {
		t.Errorf("sell request = %v", req)
	}
}

func TestLiveRejection(t *testing.T) {
	t.Parallel()

	srv := simmerServer(t, 200, `{"success": false, "error": "insufficient balance"}`, nil)
	adapter := liveAdapter(t, srv)

	result, err := adapter.Execute(context.Background(), testIntent())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != types.StatusRejected {
		t.Fatalf("status = %s, want REJECTED", result.Status)
	}
	if result.ErrorMessage != "insufficient balance" {
		t.Errorf("message = %q", result.ErrorMessage)
	}
}

func TestLiveServerErrorSurfacesAsError(t *testing.T) {
	t.Parallel()

	srv := simmerServer(t, 500, `{"error": "internal"}`, nil)
	adapter := liveAdapter(t, srv)

	if _, err := adapter.Execute(context.Background(), testIntent()); err == nil {
		t.Fatal("HTTP 500 must surface as an error for the executor to mark FAILED")
	}
}
