// Package types holds the wire-level vocabulary of the CLOB API.
package types

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType selects execution semantics.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // rests on the book until cancelled
	OrderTypeFOK OrderType = "FOK" // fill completely or cancel
	OrderTypeGTD OrderType = "GTD" // rests until expiration
	OrderTypeFAK OrderType = "FAK" // fill what is available, cancel the rest
)

// Chain identifies the settlement network.
type Chain int

const (
	ChainPolygon Chain = 137
	ChainAmoy    Chain = 80002
)

// SignatureType tells the exchange how to verify the order signature.
type SignatureType int

const (
	SignatureTypeEOA        SignatureType = 0 // standard wallet, maker == signer
	SignatureTypeProxy      SignatureType = 1 // email-login proxy wallet
	SignatureTypeGnosisSafe SignatureType = 2 // Safe smart wallet, maker = funder
)

// AssetType selects which balance the balance-allowance endpoint reports.
type AssetType string

const (
	AssetTypeCollateral  AssetType = "COLLATERAL"
	AssetTypeConditional AssetType = "CONDITIONAL"
)

// TickSize is the minimum price increment of a market. The string form
// matches the exchange API verbatim.
type TickSize string

const (
	TickSize01    TickSize = "0.1"
	TickSize001   TickSize = "0.01"
	TickSize0001  TickSize = "0.001"
	TickSize00001 TickSize = "0.0001"
)

// TickSizeFromFloat maps the numeric wire form onto its canonical
// string form. ok is false for any value outside the four known ticks.
func TickSizeFromFloat(v float64) (TickSize, bool) {
	switch v {
	case 0.1:
		return TickSize01, true
	case 0.01:
		return TickSize001, true
	case 0.001:
		return TickSize0001, true
	case 0.0001:
		return TickSize00001, true
	}
	return "", false
}

// PriceDecimals is the number of price decimals a tick size admits.
func (t TickSize) PriceDecimals() (int, bool) {
	switch t {
	case TickSize01:
		return 1, true
	case TickSize001:
		return 2, true
	case TickSize0001:
		return 3, true
	case TickSize00001:
		return 4, true
	}
	return 0, false
}

// ApiKeyCreds is the L2 auth triple issued by the exchange.
type ApiKeyCreds struct {
	Key        string
	Secret     string
	Passphrase string
}

// ApiKeyRaw is the derive/create response shape.
type ApiKeyRaw struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Complete reports whether all three credential fields are present; a
// derive call that hits an unregistered signer returns partial bodies.
func (r ApiKeyRaw) Complete() bool {
	return r.ApiKey != "" && r.Secret != "" && r.Passphrase != ""
}
