package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/betkit/gopoly/clob/signing"
	"github.com/betkit/gopoly/clob/types"
)

// PostOrder submits a signed order. The body is marshalled once and the
// exact bytes are both signed over (L2 HMAC) and sent.
func (c *Client) PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, "clob:order:post"); err != nil {
		return nil, err
	}

	payload := types.NewOrder{
		Order:     *order,
		Owner:     c.Creds().Key,
		OrderType: orderType,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order payload: %w", err)
	}
	bodyStr := string(bodyBytes)

	headers, err := signing.CreateL2Headers(c.Address(), c.Creds(), &types.L2HeaderArgs{
		Method:      "POST",
		RequestPath: EndpointPostOrder,
		Body:        &bodyStr,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create L2 headers: %w", err)
	}

	resp, err := c.httpClient.post(ctx, EndpointPostOrder, headers.Map(), bodyBytes)
	if err != nil {
		return nil, fmt.Errorf("post order: %w", err)
	}

	var orderResp types.OrderResponse
	if err := parseResponse(resp, &orderResp); err != nil {
		// The exchange reports rejections as 4xx with an errorMsg body;
		// surface those as a structured response, not a transport error.
		var httpErr *httpError
		if errors.As(err, &httpErr) && httpErr.Body != "" {
			if rejected := decodeRejection(httpErr.Body); rejected != nil {
				return rejected, nil
			}
		}
		return nil, fmt.Errorf("post order: %w", err)
	}
	return &orderResp, nil
}

// CancelOrder cancels one resting order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*types.OrderResponse, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, "clob:order:delete"); err != nil {
		return nil, err
	}

	body := map[string]string{"orderID": orderID}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal cancel payload: %w", err)
	}
	bodyStr := string(bodyBytes)

	headers, err := signing.CreateL2Headers(c.Address(), c.Creds(), &types.L2HeaderArgs{
		Method:      "DELETE",
		RequestPath: EndpointCancelOrder,
		Body:        &bodyStr,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create L2 headers: %w", err)
	}

	resp, err := c.httpClient.delete(ctx, EndpointCancelOrder, headers.Map(), bodyBytes)
	if err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	var orderResp types.OrderResponse
	if err := parseResponse(resp, &orderResp); err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return &orderResp, nil
}

// GetOpenOrders lists the account's resting orders, optionally filtered.
func (c *Client) GetOpenOrders(ctx context.Context, params *types.OpenOrderParams) ([]types.OpenOrder, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx, "clob:orders:get"); err != nil {
		return nil, err
	}

	queryParams := make(map[string]string)
	if params != nil {
		if params.ID != nil {
			queryParams["id"] = *params.ID
		}
		if params.Market != nil {
			queryParams["market"] = *params.Market
		}
		if params.AssetID != nil {
			queryParams["asset_id"] = *params.AssetID
		}
	}

	headers, err := signing.CreateL2Headers(c.Address(), c.Creds(), &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: EndpointGetOpenOrders,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create L2 headers: %w", err)
	}

	resp, err := c.httpClient.get(ctx, EndpointGetOpenOrders, headers.Map(), queryParams)
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}

	var apiResp types.OpenOrdersAPIResponse
	if err := parseResponse(resp, &apiResp); err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	return apiResp.Data, nil
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error) {
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}

	endpoint := EndpointGetOrder + orderID
	headers, err := signing.CreateL2Headers(c.Address(), c.Creds(), &types.L2HeaderArgs{
		Method:      "GET",
		RequestPath: endpoint,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create L2 headers: %w", err)
	}

	resp, err := c.httpClient.get(ctx, endpoint, headers.Map(), nil)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	var order types.OpenOrder
	if err := parseResponse(resp, &order); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &order, nil
}

// CreateOrder builds and signs an order as the plain signer (EOA).
func (c *Client) CreateOrder(ctx context.Context, req *types.UserOrder, options *types.CreateOrderOptions) (*types.SignedOrder, error) {
	return c.CreateOrderWithFunder(ctx, req, options, "", types.SignatureTypeEOA)
}

// CreateOrderWithFunder builds and signs an order funded by a smart
// wallet. maker = funder, signer stays the wallet key.
func (c *Client) CreateOrderWithFunder(ctx context.Context, req *types.UserOrder, options *types.CreateOrderOptions, funderAddress string, signatureType types.SignatureType) (*types.SignedOrder, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no signer configured, cannot create order")
	}
	builder := NewOrderBuilder(c, signatureType, funderAddress)
	return builder.BuildOrder(ctx, req, options)
}

// decodeRejection turns an error body into an OrderResponse when it has
// the exchange's rejection shape. nil when the body is something else.
func decodeRejection(body string) *types.OrderResponse {
	var orderResp types.OrderResponse
	if err := json.Unmarshal([]byte(body), &orderResp); err != nil {
		return nil
	}
	if orderResp.ErrorMsg == "" && orderResp.OrderID == "" {
		return nil
	}
	orderResp.Success = false
	return &orderResp
}
