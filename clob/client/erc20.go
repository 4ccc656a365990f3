package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/betkit/gopoly/clob/types"
)

const erc20BalanceOfABI = `[{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}]`

// CollateralClient reads the collateral (USDC) balance of an address
// directly from the chain. Works before exchange credentials exist.
type CollateralClient struct {
	eth      *ethclient.Client
	contract common.Address
	abi      abi.ABI
}

func NewCollateralClient(rpcURL string, chainID types.Chain) (*CollateralClient, error) {
	contracts, err := GetContractConfig(chainID)
	if err != nil {
		return nil, err
	}
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &CollateralClient{
		eth:      eth,
		contract: common.HexToAddress(contracts.Collateral),
		abi:      parsed,
	}, nil
}

// BalanceOf returns the raw 6-decimal collateral balance.
func (c *CollateralClient) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := c.abi.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("encode balanceOf: %w", err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	results, err := c.abi.Unpack("balanceOf", out)
	if err != nil || len(results) == 0 {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result %T", results[0])
	}
	return balance, nil
}

// BalanceUSD returns the balance in whole dollars.
func (c *CollateralClient) BalanceUSD(ctx context.Context, owner common.Address) (float64, error) {
	raw, err := c.BalanceOf(ctx, owner)
	if err != nil {
		return 0, err
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), big.NewFloat(1e6)).Float64()
	return f, nil
}

func (c *CollateralClient) Close() {
	c.eth.Close()
}
