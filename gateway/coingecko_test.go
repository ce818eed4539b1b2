package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchMarketsMapsNullsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("vs_currency"); got != "usd" {
			t.Errorf("vs_currency = %q", got)
		}
		if got := r.URL.Query().Get("ids"); got != "bitcoin,dogecoin" {
			t.Errorf("ids = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"img","current_price":60000.5,"price_change_percentage_24h":-1.2,"market_cap":1000,"total_volume":500},
			{"id":"dogecoin","symbol":"doge","name":"Dogecoin","current_price":null,"price_change_percentage_24h":null,"market_cap":null,"total_volume":null}
		]`))
	}))
	defer srv.Close()

	c := &CoinGeckoClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	snaps, err := c.FetchMarkets(context.Background(), []string{"bitcoin", "dogecoin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	btc := snaps["bitcoin"]
	if !btc.Price.Valid || btc.Price.Float64 != 60000.5 {
		t.Fatalf("unexpected bitcoin price %+v", btc.Price)
	}
	doge := snaps["dogecoin"]
	if doge.Price.Valid {
		t.Fatalf("null price must be unavailable, not zero: %+v", doge.Price)
	}
	if doge.Price.String() != "N/A" {
		t.Fatalf("expected N/A rendering, got %q", doge.Price)
	}
	if btc.FetchedAt.IsZero() {
		t.Fatalf("FetchedAt not set")
	}
}

func TestFetchMarketsNormalizesVersionedBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/coins/markets" {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// A base already carrying the version segment must not double it.
	c := &CoinGeckoClient{BaseURL: srv.URL + "/api/v3", HTTPClient: srv.Client()}
	if _, err := c.FetchMarkets(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c2 := &CoinGeckoClient{BaseURL: srv.URL + "/api/v3/", HTTPClient: srv.Client()}
	if _, err := c2.FetchMarkets(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c3 := &CoinGeckoClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := c3.FetchMarkets(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchMarketsErrorsWrapErrFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &CoinGeckoClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	if _, err := c.FetchMarkets(context.Background(), nil); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}

	// Malformed payload is the same failure class.
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))
	defer srv2.Close()
	c2 := &CoinGeckoClient{BaseURL: srv2.URL, HTTPClient: srv2.Client()}
	if _, err := c2.FetchMarkets(context.Background(), nil); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}
