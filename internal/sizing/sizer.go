// Package sizing converts a dollar amount at a price into an
// exchange-legal (price, size) pair. Pure arithmetic, no I/O.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/domain"
)

// MinMarketNotional is the exchange's minimum dollar cost for market
// orders.
var MinMarketNotional = decimal.NewFromFloat(1.00)

// sizeStep is one size unit at 2-decimal precision.
var sizeStep = decimal.NewFromFloat(0.01)

// Size derives the order's rounded price, share size and target cost.
// The result always satisfies round(size*price, 2) >= targetCost so
// the filled notional is never silently short of what was asked.
func Size(params domain.TradeParams) (domain.SizedOrder, error) {
	priceDecimals, ok := params.TickSize.PriceDecimals()
	if !ok {
		return domain.SizedOrder{}, domain.NewError(domain.CodeOrderRejected, "unsupported tick size %q", params.TickSize)
	}
	if params.Amount <= 0 {
		return domain.SizedOrder{}, domain.NewError(domain.CodeOrderTooSmall, "amount must be positive, got %v", params.Amount)
	}
	if params.Price <= 0 || params.Price >= 1 {
		return domain.SizedOrder{}, domain.NewError(domain.CodeOrderRejected, "price must be in (0, 1), got %v", params.Price)
	}

	roundedPrice := decimal.NewFromFloat(params.Price).Round(int32(priceDecimals))

	targetCost := decimal.NewFromFloat(params.Amount).Round(2)
	if params.IsMarketOrder && targetCost.LessThan(MinMarketNotional) {
		targetCost = MinMarketNotional
	}

	// Market sells round the size down so we never promise shares the
	// wallet does not hold.
	size := targetCost.Div(roundedPrice)
	if params.IsMarketOrder && params.Side == types.SideSell {
		size = size.RoundDown(2)
	} else {
		size = size.Round(2)
	}

	// A rounded-down size can land the notional just under target; one
	// 0.01-share bump per iteration closes the gap.
	for i := 0; i < 4; i++ {
		actualCost := size.Mul(roundedPrice).Round(2)
		if actualCost.GreaterThanOrEqual(targetCost) {
			break
		}
		size = size.Add(sizeStep)
	}

	if size.LessThan(decimal.NewFromFloat(domain.MinOrderSize)) {
		return domain.SizedOrder{}, domain.NewError(domain.CodeOrderTooSmall,
			"order size %s below exchange minimum of %v shares", size.String(), domain.MinOrderSize)
	}

	return domain.SizedOrder{
		RoundedPrice: roundedPrice.InexactFloat64(),
		Size:         size.InexactFloat64(),
		TargetCost:   targetCost.InexactFloat64(),
	}, nil
}
