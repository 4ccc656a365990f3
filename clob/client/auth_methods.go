package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/betkit/gopoly/clob/signing"
	"github.com/betkit/gopoly/clob/types"
)

// ErrNoAPIKey means the signer has never registered a credential; the
// derive endpoint answers 400 in that case.
var ErrNoAPIKey = errors.New("no api key registered for signer")

// CreateOrDeriveAPIKey obtains the L2 credential triple with a single
// wallet signature: derive first, create on 400. The returned triple is
// complete or the call fails.
func (c *Client) CreateOrDeriveAPIKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	if err := c.CanL1Auth(); err != nil {
		return nil, err
	}

	headers, err := signing.CreateL1Headers(ctx, c.signer, c.chainID, nonce, nil)
	if err != nil {
		return nil, fmt.Errorf("create L1 headers: %w", err)
	}

	creds, err := c.deriveWithHeaders(ctx, headers)
	if err == nil {
		return creds, nil
	}
	if !errors.Is(err, ErrNoAPIKey) {
		return nil, err
	}
	return c.createWithHeaders(ctx, headers)
}

// DeriveAPIKey fetches an existing credential. ErrNoAPIKey when the
// signer has none.
func (c *Client) DeriveAPIKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	if err := c.CanL1Auth(); err != nil {
		return nil, err
	}
	headers, err := signing.CreateL1Headers(ctx, c.signer, c.chainID, nonce, nil)
	if err != nil {
		return nil, fmt.Errorf("create L1 headers: %w", err)
	}
	return c.deriveWithHeaders(ctx, headers)
}

// CreateAPIKey registers a fresh credential for the signer.
func (c *Client) CreateAPIKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error) {
	if err := c.CanL1Auth(); err != nil {
		return nil, err
	}
	headers, err := signing.CreateL1Headers(ctx, c.signer, c.chainID, nonce, nil)
	if err != nil {
		return nil, fmt.Errorf("create L1 headers: %w", err)
	}
	return c.createWithHeaders(ctx, headers)
}

func (c *Client) deriveWithHeaders(ctx context.Context, headers *types.L1PolyHeader) (*types.ApiKeyCreds, error) {
	resp, err := c.httpClient.get(ctx, EndpointDeriveAPIKey, headers.Map(), nil)
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}

	var raw types.ApiKeyRaw
	if err := parseResponse(resp, &raw); err != nil {
		var httpErr *httpError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest {
			return nil, ErrNoAPIKey
		}
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if !raw.Complete() {
		return nil, fmt.Errorf("derive api key: incomplete credential in response")
	}
	return &types.ApiKeyCreds{Key: raw.ApiKey, Secret: raw.Secret, Passphrase: raw.Passphrase}, nil
}

func (c *Client) createWithHeaders(ctx context.Context, headers *types.L1PolyHeader) (*types.ApiKeyCreds, error) {
	resp, err := c.httpClient.post(ctx, EndpointCreateAPIKey, headers.Map(), nil)
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	var raw types.ApiKeyRaw
	if err := parseResponse(resp, &raw); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	if !raw.Complete() {
		return nil, fmt.Errorf("create api key: incomplete credential in response")
	}
	return &types.ApiKeyCreds{Key: raw.ApiKey, Secret: raw.Secret, Passphrase: raw.Passphrase}, nil
}
