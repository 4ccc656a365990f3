// Package signing builds the EIP-712 payloads and HMAC signatures the
// exchange's two auth levels require. Actual key operations are
// delegated to a wallet.Signer.
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

// ClobAuthTypedData builds the L1 auth attestation for the given
// signer address. The timestamp is seconds since epoch; the nonce is
// caller-chosen (a fresh timestamp in practice).
func ClobAuthTypedData(address common.Address, chainID types.Chain, timestamp, nonce int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    ClobDomainName,
			Version: ClobVersion,
			ChainId: math.NewHexOrDecimal256(int64(chainID)),
		},
		Message: map[string]interface{}{
			"address":   address.Hex(),
			"timestamp": fmt.Sprintf("%d", timestamp),
			"nonce":     big.NewInt(nonce),
			"message":   MsgToSign,
		},
	}
}

// BuildClobAuthSignature asks the signer for the L1 attestation
// signature and returns it 0x-hex encoded.
func BuildClobAuthSignature(ctx context.Context, signer wallet.Signer, chainID types.Chain, timestamp, nonce int64) (string, error) {
	data := ClobAuthTypedData(signer.Address(), chainID, timestamp, nonce)
	sig, err := signer.SignTypedData(ctx, data)
	if err != nil {
		return "", fmt.Errorf("sign clob auth: %w", err)
	}
	return hexutil.Encode(sig), nil
}
