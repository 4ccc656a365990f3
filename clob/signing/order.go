package signing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/pkg/wallet"
)

// OrderData is the order struct hashed for the exchange signature.
type OrderData struct {
	Salt          int64
	Maker         string
	Signer        string
	Taker         string
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          types.Side
	SignatureType types.SignatureType
}

// OrderTypedData builds the "Order" EIP-712 payload verified by the
// exchange contract (standard or neg-risk, selected by address).
func OrderTypedData(chainID types.Chain, exchangeAddress string, o *OrderData) apitypes.TypedData {
	side := int64(1) // SELL
	if o.Side == types.SideBuy {
		side = 0
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              ExchangeDomainName,
			Version:           ExchangeDomainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: exchangeAddress,
		},
		Message: map[string]interface{}{
			"salt":          big.NewInt(o.Salt),
			"maker":         common.HexToAddress(o.Maker).Hex(),
			"signer":        common.HexToAddress(o.Signer).Hex(),
			"taker":         common.HexToAddress(o.Taker).Hex(),
			"tokenId":       o.TokenID,
			"makerAmount":   o.MakerAmount,
			"takerAmount":   o.TakerAmount,
			"expiration":    o.Expiration,
			"nonce":         o.Nonce,
			"feeRateBps":    o.FeeRateBps,
			"side":          big.NewInt(side),
			"signatureType": big.NewInt(int64(o.SignatureType)),
		},
	}
}

// BuildOrderSignature signs the order typed data via the wallet and
// returns the 0x-hex signature.
func BuildOrderSignature(ctx context.Context, signer wallet.Signer, chainID types.Chain, exchangeAddress string, o *OrderData) (string, error) {
	sig, err := signer.SignTypedData(ctx, OrderTypedData(chainID, exchangeAddress, o))
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}
	return hexutil.Encode(sig), nil
}
