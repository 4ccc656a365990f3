package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/betkit/gopoly/clob/types"
)

func TestGetTickSizeDecodesNumericBody(t *testing.T) {
	// The exchange sends the tick size as a JSON number, not a string.
	cases := []struct {
		body string
		want types.TickSize
	}{
		{`{"minimum_tick_size": 0.1}`, types.TickSize01},
		{`{"minimum_tick_size": 0.01}`, types.TickSize001},
		{`{"minimum_tick_size": 0.001}`, types.TickSize0001},
		{`{"minimum_tick_size": 0.0001}`, types.TickSize00001},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, tc.body)
		}))
		c := NewClient(srv.URL, types.ChainPolygon, nil, nil)

		got, err := c.GetTickSize(context.Background(), "777")
		srv.Close()
		if err != nil {
			t.Fatalf("GetTickSize(%s) error: %v", tc.body, err)
		}
		if got != tc.want {
			t.Fatalf("GetTickSize(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestGetTickSizeRejectsUnknownValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"minimum_tick_size": 0.05}`)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, types.ChainPolygon, nil, nil)

	if _, err := c.GetTickSize(context.Background(), "777"); err == nil {
		t.Fatal("expected error for tick size outside the known set")
	}
}

func TestInvalidateMarketAttrsForcesRefetch(t *testing.T) {
	negRisk := false
	var tickCalls, negCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case EndpointGetTickSize:
			tickCalls++
			fmt.Fprint(w, `{"minimum_tick_size": 0.01}`)
		case EndpointGetNegRisk:
			negCalls++
			fmt.Fprintf(w, `{"neg_risk": %t}`, negRisk)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, types.ChainPolygon, nil, nil)
	ctx := context.Background()

	// Warm the cache, then reclassify the market server-side.
	if _, err := c.GetTickSize(ctx, "777"); err != nil {
		t.Fatalf("GetTickSize error: %v", err)
	}
	if nr, err := c.GetNegRisk(ctx, "777"); err != nil || nr {
		t.Fatalf("GetNegRisk = %v, %v, want false", nr, err)
	}
	negRisk = true

	// Still served from cache.
	if nr, _ := c.GetNegRisk(ctx, "777"); nr {
		t.Fatal("cached neg-risk flag unexpectedly refetched")
	}

	c.InvalidateMarketAttrs("777")
	nr, err := c.GetNegRisk(ctx, "777")
	if err != nil {
		t.Fatalf("GetNegRisk error: %v", err)
	}
	if !nr {
		t.Fatal("neg-risk flag still stale after invalidation")
	}
	if _, err := c.GetTickSize(ctx, "777"); err != nil {
		t.Fatalf("GetTickSize error: %v", err)
	}
	if tickCalls != 2 || negCalls != 3 {
		t.Fatalf("calls = %d tick / %d neg-risk, want 2 / 3", tickCalls, negCalls)
	}
}
