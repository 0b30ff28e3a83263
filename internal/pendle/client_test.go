package pendle

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleMarkets = `{"markets":[
	{"address":"0xAbCdEf0000000000000000000000000000000001","name":"stETH","expiry":"2026-12-31T00:00:00.000Z","details":{"liquidity":12500000,"impliedApy":0.0312}},
	{"address":"0x0000000000000000000000000000000000000002","name":"sUSDe","expiry":"2026-09-15T00:00:00.000Z","details":{"liquidity":800000,"impliedApy":0.245}}
]}`

func TestFetchActiveMarkets(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleMarkets))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	markets, err := c.FetchActiveMarkets(context.Background(), 42161)
	if err != nil {
		t.Fatalf("FetchActiveMarkets error: %v", err)
	}

	if gotPath != "/42161/markets/active" {
		t.Errorf("request path = %q, want %q", gotPath, "/42161/markets/active")
	}
	if len(markets) != 2 {
		t.Fatalf("markets len = %d, want 2", len(markets))
	}
	if markets[0].Name != "stETH" {
		t.Errorf("name = %q, want stETH", markets[0].Name)
	}
	if got := markets[1].ImpliedAPYPct(); math.Abs(got-24.5) > 1e-9 {
		t.Errorf("ImpliedAPYPct = %v, want 24.5", got)
	}
	if markets[0].Details.Liquidity != 12500000 {
		t.Errorf("liquidity = %v, want 12500000", markets[0].Details.Liquidity)
	}
}

func TestFetchActiveMarketsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.FetchActiveMarkets(context.Background(), 1); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestFetchActiveMarketsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"markets": [{]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.FetchActiveMarkets(context.Background(), 1); err == nil {
		t.Fatal("expected decode error on malformed body")
	}
}

func TestMarketKey(t *testing.T) {
	m := Market{Address: "0xABCdef"}
	if got := m.Key(1); got != "1-0xabcdef" {
		t.Errorf("Key = %q, want %q", got, "1-0xabcdef")
	}
}

func TestExpiresWithin(t *testing.T) {
	tests := []struct {
		name   string
		expiry time.Time
		within time.Duration
		want   bool
	}{
		{"expires tomorrow, 7d window", time.Now().Add(24 * time.Hour), 7 * 24 * time.Hour, true},
		{"expires in 30d, 7d window", time.Now().Add(30 * 24 * time.Hour), 7 * 24 * time.Hour, false},
		{"already expired", time.Now().Add(-time.Hour), 7 * 24 * time.Hour, false},
		{"zero expiry", time.Time{}, 7 * 24 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Market{Expiry: tt.expiry}
			if got := m.ExpiresWithin(tt.within); got != tt.want {
				t.Errorf("ExpiresWithin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChainName(t *testing.T) {
	if got := ChainName(1); got != "Ethereum" {
		t.Errorf("ChainName(1) = %q, want Ethereum", got)
	}
	if got := ChainName(999); got != "Chain 999" {
		t.Errorf("ChainName(999) = %q, want %q", got, "Chain 999")
	}
}
