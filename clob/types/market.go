package types

// TickSizeResponse is GET /tick-size. The exchange encodes the tick
// size as a JSON number.
type TickSizeResponse struct {
	MinimumTickSize float64 `json:"minimum_tick_size"`
}

// NegRiskResponse is GET /neg-risk.
type NegRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}

// BalanceAllowanceParams selects which balance to report.
type BalanceAllowanceParams struct {
	AssetType     AssetType
	TokenID       *string
	SignatureType *SignatureType
}

// BalanceAllowanceResponse reports custodial balance and spender
// allowance, both in raw 6-decimal units as decimal strings.
type BalanceAllowanceResponse struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// OrderSummary is one price level of the book.
type OrderSummary struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderBookSummary is GET /book.
type OrderBookSummary struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Bids      []OrderSummary `json:"bids"`
	Asks      []OrderSummary `json:"asks"`
	Hash      string         `json:"hash"`
	Timestamp string         `json:"timestamp"`
}
