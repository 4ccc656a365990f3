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

const erc1155BalanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

// CTFClient reads the ConditionalTokens ERC1155 contract. Sell-side
// checks use it to confirm the funder actually holds the outcome
// tokens before an order is signed.
type CTFClient struct {
	eth      *ethclient.Client
	contract common.Address
	abi      abi.ABI
}

// NewCTFClient dials the RPC node and binds the ConditionalTokens
// contract of the given chain.
func NewCTFClient(rpcURL string, chainID types.Chain) (*CTFClient, error) {
	contractConfig, err := GetContractConfig(chainID)
	if err != nil {
		return nil, err
	}

	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc1155BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc1155 abi: %w", err)
	}

	return &CTFClient{
		eth:      eth,
		contract: common.HexToAddress(contractConfig.ConditionalTokens),
		abi:      parsed,
	}, nil
}

// BalanceOf returns the raw (6-decimal) outcome-token balance of owner.
func (c *CTFClient) BalanceOf(ctx context.Context, owner common.Address, tokenID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid tokenID: %s", tokenID)
	}

	data, err := c.abi.Pack("balanceOf", owner, id)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	results, err := c.abi.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", results[0])
	}
	return balance, nil
}

// Close releases the underlying RPC connection.
func (c *CTFClient) Close() {
	c.eth.Close()
}
