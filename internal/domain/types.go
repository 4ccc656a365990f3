package domain

import (
	"github.com/betkit/gopoly/clob/types"
)

// MinOrderSize is the exchange's minimum order size in shares.
const MinOrderSize = 5.0

// TradeParams is a single requested trade as the caller expresses it:
// a dollar amount at a price, not yet an exchange-legal order.
type TradeParams struct {
	TokenID       string
	Side          types.Side
	Amount        float64 // USD notional
	Price         float64 // in (0, 1)
	IsMarketOrder bool
	TickSize      types.TickSize
	NegRisk       bool
}

// SizedOrder is the exchange-legal (price, size) pair derived from
// TradeParams. round(Size*RoundedPrice, 2) >= TargetCost holds.
type SizedOrder struct {
	RoundedPrice float64
	Size         float64
	TargetCost   float64
}

// OrderResult is the normalized outcome of one submission attempt.
type OrderResult struct {
	Success     bool
	OrderID     string
	Status      string
	PartialFill bool // FAK filled below requested notional, informational
	RawResponse string
}

// SmartWalletState tracks the derived wallet of one owner. Address is
// a pure function of the owner and never changes; IsDeployed only ever
// flips false to true.
type SmartWalletState struct {
	Owner         string `json:"owner"`
	Address       string `json:"address"`
	IsDeployed    bool   `json:"isDeployed"`
	HasAllowances bool   `json:"hasAllowances"`
}

// CredentialContext distinguishes who funds orders signed by a signer.
type CredentialContext string

const (
	ContextDirect      CredentialContext = "direct"
	ContextSmartWallet CredentialContext = "smart-wallet"
)

// Credentials is the exchange API auth triple bound to its signer and
// funding context.
type Credentials struct {
	ApiKey        string            `json:"apiKey"`
	ApiSecret     string            `json:"apiSecret"`
	ApiPassphrase string            `json:"apiPassphrase"`
	SignerAddress string            `json:"signerAddress"`
	Context       CredentialContext `json:"context"`
}

// ToApiKeyCreds converts to the CLOB client's credential shape.
func (c *Credentials) ToApiKeyCreds() *types.ApiKeyCreds {
	return &types.ApiKeyCreds{
		Key:        c.ApiKey,
		Secret:     c.ApiSecret,
		Passphrase: c.ApiPassphrase,
	}
}
