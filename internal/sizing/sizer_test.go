package sizing

import (
	"math"
	"testing"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSizeBuyScenario(t *testing.T) {
	// BUY $25 at 0.37 on a 0.01 market: 25/0.37 = 67.5675... -> 67.57,
	// cost 25.00, no bump needed.
	got, err := Size(domain.TradeParams{
		TokenID:  "123",
		Side:     types.SideBuy,
		Amount:   25,
		Price:    0.37,
		TickSize: types.TickSize001,
	})
	if err != nil {
		t.Fatalf("Size() error: %v", err)
	}
	if !almostEqual(got.RoundedPrice, 0.37) {
		t.Fatalf("RoundedPrice = %v, want 0.37", got.RoundedPrice)
	}
	if !almostEqual(got.Size, 67.57) {
		t.Fatalf("Size = %v, want 67.57", got.Size)
	}
	if !almostEqual(got.TargetCost, 25.00) {
		t.Fatalf("TargetCost = %v, want 25.00", got.TargetCost)
	}
}

func TestSizeMarketOrderMinimumNotional(t *testing.T) {
	got, err := Size(domain.TradeParams{
		Side:          types.SideBuy,
		Amount:        0.50,
		Price:         0.05,
		IsMarketOrder: true,
		TickSize:      types.TickSize001,
	})
	if err != nil {
		t.Fatalf("Size() error: %v", err)
	}
	if !almostEqual(got.TargetCost, 1.00) {
		t.Fatalf("TargetCost = %v, want clamp to 1.00", got.TargetCost)
	}
}

func TestSizeOrderTooSmall(t *testing.T) {
	_, err := Size(domain.TradeParams{
		Side:     types.SideBuy,
		Amount:   2,
		Price:    0.95,
		TickSize: types.TickSize001,
	})
	if err == nil {
		t.Fatal("expected OrderTooSmall, got nil")
	}
	if !domain.IsCode(err, domain.CodeOrderTooSmall) {
		t.Fatalf("error code = %v, want %v", domain.CodeOf(err), domain.CodeOrderTooSmall)
	}
}

func TestSizeCostNeverShort(t *testing.T) {
	tickSizes := []types.TickSize{
		types.TickSize01, types.TickSize001, types.TickSize0001, types.TickSize00001,
	}
	amounts := []float64{5, 10, 25, 33.33, 100, 250.01}
	prices := []float64{0.03, 0.11, 0.37, 0.5, 0.62, 0.87, 0.99}

	for _, ts := range tickSizes {
		for _, amount := range amounts {
			for _, price := range prices {
				got, err := Size(domain.TradeParams{
					Side:     types.SideBuy,
					Amount:   amount,
					Price:    price,
					TickSize: ts,
				})
				if err != nil {
					if domain.IsCode(err, domain.CodeOrderTooSmall) {
						continue
					}
					t.Fatalf("Size(%v, %v, %s) error: %v", amount, price, ts, err)
				}

				actualCost := math.Round(got.Size*got.RoundedPrice*100) / 100
				if actualCost < got.TargetCost-1e-9 {
					t.Fatalf("Size(%v, %v, %s): actualCost %.2f < targetCost %.2f",
						amount, price, ts, actualCost, got.TargetCost)
				}
				if got.Size < domain.MinOrderSize {
					t.Fatalf("Size(%v, %v, %s): size %v below minimum", amount, price, ts, got.Size)
				}
			}
		}
	}
}

func TestSizeMarketSellRoundsDown(t *testing.T) {
	// 10/0.33 = 30.3030...; market sell floors to 30.30, then the
	// reconciliation bump restores the notional (30.30*0.33 = 10.00).
	got, err := Size(domain.TradeParams{
		Side:          types.SideSell,
		Amount:        10,
		Price:         0.33,
		IsMarketOrder: true,
		TickSize:      types.TickSize001,
	})
	if err != nil {
		t.Fatalf("Size() error: %v", err)
	}
	actualCost := math.Round(got.Size*got.RoundedPrice*100) / 100
	if actualCost < got.TargetCost {
		t.Fatalf("actualCost %v < targetCost %v", actualCost, got.TargetCost)
	}
}

func TestSizeRejectsInvalidPrice(t *testing.T) {
	for _, price := range []float64{0, 1, 1.5, -0.2} {
		if _, err := Size(domain.TradeParams{
			Side:     types.SideBuy,
			Amount:   25,
			Price:    price,
			TickSize: types.TickSize001,
		}); err == nil {
			t.Fatalf("price %v: expected error, got nil", price)
		}
	}
}
