package oracle_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moonflip/settlement-engine/internal/oracle"
)

func priceServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") == "" {
			t.Error("missing ids query parameter")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedPrice(t *testing.T) {
	srv := priceServer(t, `{"MINT": {"usdPrice": 1.234567}}`, http.StatusOK)

	price, err := oracle.NewFeed(srv.URL).Price(context.Background(), "MINT")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price != 1_234_567 {
		t.Errorf("price = %d, want 1234567 micro-dollars", price)
	}
}

func TestFeedPrice_Truncates(t *testing.T) {
	// Sub-micro-dollar precision truncates toward zero.
	srv := priceServer(t, `{"MINT": {"usdPrice": 0.0000019}}`, http.StatusOK)

	price, err := oracle.NewFeed(srv.URL).Price(context.Background(), "MINT")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price != 1 {
		t.Errorf("price = %d, want 1", price)
	}
}

func TestFeedPrice_MintMissing(t *testing.T) {
	srv := priceServer(t, `{"OTHER": {"usdPrice": 5}}`, http.StatusOK)

	if _, err := oracle.NewFeed(srv.URL).Price(context.Background(), "MINT"); err == nil {
		t.Error("expected error for missing mint")
	}
}

func TestFeedPrice_Negative(t *testing.T) {
	srv := priceServer(t, `{"MINT": {"usdPrice": -1}}`, http.StatusOK)

	if _, err := oracle.NewFeed(srv.URL).Price(context.Background(), "MINT"); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestFeedPrice_UpstreamError(t *testing.T) {
	srv := priceServer(t, `{"error": "rate limited"}`, http.StatusTooManyRequests)

	if _, err := oracle.NewFeed(srv.URL).Price(context.Background(), "MINT"); err == nil {
		t.Error("expected error for non-200 status")
	}
}
