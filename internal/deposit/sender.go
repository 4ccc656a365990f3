package deposit

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/betkit/gopoly/pkg/wallet"
)

const erc20TransferABIJSON = `[{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`

// TokenSender implements TransferSender with an on-chain ERC-20
// transfer signed by the user's wallet. Amounts are whole tokens and
// scaled by the token's decimals before sending.
type TokenSender struct {
	signer   wallet.Signer
	decimals int32
	abi      abi.ABI
}

// NewTokenSender builds a sender for a token with the given decimals.
func NewTokenSender(signer wallet.Signer, decimals int32) (*TokenSender, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse transfer abi")
	}
	return &TokenSender{signer: signer, decimals: decimals, abi: parsed}, nil
}

func (s *TokenSender) SendToken(ctx context.Context, to, tokenMint string, amount float64) (string, error) {
	raw := rawTokenAmount(amount, s.decimals)
	data, err := s.abi.Pack("transfer", common.HexToAddress(to), raw)
	if err != nil {
		return "", errors.Wrap(err, "encode transfer")
	}
	hash, err := s.signer.SendTransaction(ctx, common.HexToAddress(tokenMint), data, big.NewInt(0))
	if err != nil {
		if errors.Is(err, wallet.ErrRejected) {
			return "", err
		}
		return "", errors.Wrap(err, "send transfer")
	}
	return hash.Hex(), nil
}

// rawTokenAmount scales a whole-token amount to base units, truncating
// anything below one base unit.
func rawTokenAmount(amount float64, decimals int32) *big.Int {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	scaled := new(big.Float).Mul(big.NewFloat(amount), scale)
	raw, _ := scaled.Int(nil)
	return raw
}
