package provision

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/betkit/gopoly/clob/client"
	"github.com/betkit/gopoly/internal/relayer"
)

const erc20ApproveABIJSON = `[{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`

const erc1155ApprovalABIJSON = `[{"inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"name":"setApprovalForAll","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// maxUint256 grants an unlimited allowance; the approvals transfer
// nothing by themselves.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// buildAllowanceTxns packs the full approval batch the exchange needs:
// a USDC approve and a conditional-token setApprovalForAll for each
// spender (exchange, neg-risk exchange, neg-risk adapter).
func buildAllowanceTxns(contracts *client.ContractConfig) ([]relayer.SafeTransaction, error) {
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ApproveABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	erc1155ABI, err := abi.JSON(strings.NewReader(erc1155ApprovalABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc1155 abi: %w", err)
	}

	usdc := common.HexToAddress(contracts.Collateral)
	ctf := common.HexToAddress(contracts.ConditionalTokens)
	spenders := []common.Address{
		common.HexToAddress(contracts.Exchange),
		common.HexToAddress(contracts.NegRiskExchange),
		common.HexToAddress(contracts.NegRiskAdapter),
	}

	var txns []relayer.SafeTransaction
	for _, spender := range spenders {
		approveData, err := erc20ABI.Pack("approve", spender, maxUint256)
		if err != nil {
			return nil, fmt.Errorf("pack approve: %w", err)
		}
		txns = append(txns, relayer.SafeTransaction{
			To:    usdc,
			Data:  approveData,
			Value: big.NewInt(0),
		})

		operatorData, err := erc1155ABI.Pack("setApprovalForAll", spender, true)
		if err != nil {
			return nil, fmt.Errorf("pack setApprovalForAll: %w", err)
		}
		txns = append(txns, relayer.SafeTransaction{
			To:    ctf,
			Data:  operatorData,
			Value: big.NewInt(0),
		})
	}
	return txns, nil
}
