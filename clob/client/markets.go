package client

import (
	"context"
	"fmt"

	"github.com/betkit/gopoly/clob/signing"
	"github.com/betkit/gopoly/clob/types"
)

// GetTickSize fetches the market's minimum price increment, cached for
// a short window.
func (c *Client) GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error) {
	if ts, ok := c.tickSizes.Get(tokenID); ok {
		return ts, nil
	}

	if err := c.rateLimiter.Wait(ctx, "clob:market:get"); err != nil {
		return "", err
	}

	resp, err := c.httpClient.get(ctx, EndpointGetTickSize, nil, map[string]string{"token_id": tokenID})
	if err != nil {
		return "", fmt.Errorf("get tick size: %w", err)
	}

	var body types.TickSizeResponse
	if err := parseResponse(resp, &body); err != nil {
		return "", fmt.Errorf("get tick size: %w", err)
	}

	ts, ok := types.TickSizeFromFloat(body.MinimumTickSize)
	if !ok {
		return "", fmt.Errorf("get tick size: unexpected value %v", body.MinimumTickSize)
	}

	c.tickSizes.Set(tokenID, ts, marketAttrTTL)
	return ts, nil
}

// GetNegRisk reports whether the token trades on the neg-risk exchange,
// cached for a short window.
func (c *Client) GetNegRisk(ctx context.Context, tokenID string) (bool, error) {
	if nr, ok := c.negRisk.Get(tokenID); ok {
		return nr, nil
	}

	if err := c.rateLimiter.Wait(ctx, "clob:market:get"); err != nil {
		return false, err
	}

	resp, err := c.httpClient.get(ctx, EndpointGetNegRisk, nil, map[string]string{"token_id": tokenID})
	if err != nil {
		return false, fmt.Errorf("get neg risk: %w", err)
	}

	var body types.NegRiskResponse
	if err := parseResponse(resp, &body); err != nil {
		return false, fmt.Errorf("get neg risk: %w", err)
	}

	c.negRisk.Set(tokenID, body.NegRisk, marketAttrTTL)
	return body.NegRisk, nil
}

// InvalidateMarketAttrs drops the cached tick size and neg-risk flag of
// a token so the next lookups hit the exchange. The submit path calls
// this before signing: a market reclassified between cache fills must
// never be signed against the wrong exchange contract.
func (c *Client) InvalidateMarketAttrs(tokenID string) {
	c.tickSizes.Delete(tokenID)
	c.negRisk.Delete(tokenID)
}

// GetOrderBook fetches the current book of a token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	if err := c.rateLimiter.Wait(ctx, "clob:market:get"); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.get(ctx, EndpointGetOrderBook, nil, map[string]string{"token_id": tokenID})
	if err != nil {
		return nil, fmt.Errorf("get order book: %w", err)
	}

	var book types.OrderBookSummary
	if err := parseResponse(resp, &book); err != nil {
		return nil, fmt.Errorf("get order book: %w", err)
	}
	return &book, nil
}

// GetBalanceAllowance queries custodial balance and spender allowance
// for the authenticated account.
func (c *Client) GetBalanceAllowance(ctx context.Context, params *types.BalanceAllowanceParams) (*types.BalanceAllowanceResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}

	queryParams := map[string]string{
		"asset_type": string(params.AssetType),
	}
	if params.TokenID != nil {
		queryParams["token_id"] = *params.TokenID
	}
	if params.SignatureType != nil {
		queryParams["signature_type"] = fmt.Sprintf("%d", int(*params.SignatureType))
	}

	headers, err := signing.CreateL2Headers(c.Address(), c.Creds(), &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: EndpointGetBalanceAllowance,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create L2 headers: %w", err)
	}

	resp, err := c.httpClient.get(ctx, EndpointGetBalanceAllowance, headers.Map(), queryParams)
	if err != nil {
		return nil, fmt.Errorf("get balance allowance: %w", err)
	}

	var balance types.BalanceAllowanceResponse
	if err := parseResponse(resp, &balance); err != nil {
		return nil, fmt.Errorf("get balance allowance: %w", err)
	}
	return &balance, nil
}
