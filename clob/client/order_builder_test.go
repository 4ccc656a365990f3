package client

import (
	"math"
	"testing"

	"github.com/betkit/gopoly/clob/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestGetOrderRawAmountsBuy(t *testing.T) {
	rc := RoundingConfig[types.TickSize001]

	maker, taker := getOrderRawAmounts(types.SideBuy, 100, 0.5, rc)
	if taker != 100 {
		t.Fatalf("taker = %v, want 100 (tokens bought)", taker)
	}
	if maker != 50 {
		t.Fatalf("maker = %v, want 50 (dollars paid)", maker)
	}

	// A price*size product with float noise still lands on the allowed
	// amount precision.
	maker, taker = getOrderRawAmounts(types.SideBuy, 67.57, 0.37, rc)
	if taker != 67.57 {
		t.Fatalf("taker = %v, want 67.57", taker)
	}
	if !almostEqual(maker, 25.0009) {
		t.Fatalf("maker = %v, want 25.0009", maker)
	}
	if decimalPlaces(maker) > rc.Amount {
		t.Fatalf("maker %v exceeds %d decimals", maker, rc.Amount)
	}
}

func TestGetOrderRawAmountsSell(t *testing.T) {
	rc := RoundingConfig[types.TickSize001]

	maker, taker := getOrderRawAmounts(types.SideSell, 100.5, 0.5, rc)
	if maker != 100.5 {
		t.Fatalf("maker = %v, want 100.5 (tokens sold)", maker)
	}
	if taker != 50.25 {
		t.Fatalf("taker = %v, want 50.25 (dollars received)", taker)
	}

	// Size beyond two decimals is floored, never rounded up.
	maker, _ = getOrderRawAmounts(types.SideSell, 100.519, 0.5, rc)
	if maker != 100.51 {
		t.Fatalf("maker = %v, want 100.51", maker)
	}
}

func TestParseUnits(t *testing.T) {
	if got := parseUnits(25, CollateralTokenDecimals); got.String() != "25000000" {
		t.Fatalf("parseUnits(25) = %s", got)
	}
	if got := parseUnits(0.5, CollateralTokenDecimals); got.String() != "500000" {
		t.Fatalf("parseUnits(0.5) = %s", got)
	}
}

func TestDecimalPlaces(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{100, 0},
		{0.5, 1},
		{1.25, 2},
		{25.0009, 4},
	}
	for _, tc := range cases {
		if got := decimalPlaces(tc.in); got != tc.want {
			t.Errorf("decimalPlaces(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
