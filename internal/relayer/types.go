package relayer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BuilderCreds is the relayer's builder API credential triple.
type BuilderCreds struct {
	Key        string
	Secret     string
	Passphrase string
}

// SafeTransaction is one call to execute through the Safe.
type SafeTransaction struct {
	To        common.Address
	Operation uint8 // 0 = Call, 1 = DelegateCall
	Data      []byte
	Value     *big.Int
}

// TransactionRequest is the POST /submit body.
type TransactionRequest struct {
	Type            string           `json:"type"`
	From            string           `json:"from"`
	To              string           `json:"to"`
	ProxyWallet     string           `json:"proxyWallet,omitempty"`
	Data            string           `json:"data"`
	Nonce           string           `json:"nonce,omitempty"`
	Signature       string           `json:"signature"`
	SignatureParams *SignatureParams `json:"signatureParams"`
	Metadata        string           `json:"metadata,omitempty"`
}

// SignatureParams carries the Safe transaction gas parameters.
type SignatureParams struct {
	GasPrice        string `json:"gasPrice"`
	SafeTxnGas      string `json:"safeTxnGas"`
	BaseGas         string `json:"baseGas"`
	PaymentToken    string `json:"paymentToken,omitempty"`
	Payment         string `json:"payment,omitempty"`
	PaymentReceiver string `json:"paymentReceiver,omitempty"`
}

// Response is the relayer's answer to a submitted or queried
// transaction.
type Response struct {
	ID              string `json:"id"`
	TransactionID   string `json:"transactionID"`
	TransactionHash string `json:"transactionHash"`
	ProxyAddress    string `json:"proxyAddress"`
	State           string `json:"state"`
	Error           string `json:"error,omitempty"`
}

// Relayer transaction states. Confirmed and mined both count as
// success; failed and invalid are terminal failures.
const (
	StateNew       = "STATE_NEW"
	StateExecuted  = "STATE_EXECUTED"
	StateMined     = "STATE_MINED"
	StateConfirmed = "STATE_CONFIRMED"
	StateFailed    = "STATE_FAILED"
	StateInvalid   = "STATE_INVALID"
)

// Terminal reports whether the state will not change anymore.
func (r *Response) Terminal() bool {
	switch r.State {
	case StateMined, StateConfirmed, StateFailed, StateInvalid:
		return true
	}
	return false
}

// Succeeded reports a terminal success state.
func (r *Response) Succeeded() bool {
	return r.State == StateMined || r.State == StateConfirmed
}
