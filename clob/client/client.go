// Package client is the CLOB REST client. L1 (wallet signature) auth
// covers api-key management, L2 (HMAC) auth covers trading endpoints.
package client

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/pkg/cache"
	"github.com/betkit/gopoly/pkg/ratelimit"
	"github.com/betkit/gopoly/pkg/wallet"
)

// Market attributes are near-immutable; cache them briefly so repeated
// submissions on the same token skip two round trips.
const marketAttrTTL = 10 * time.Minute

// Client talks to the CLOB API on behalf of one signer.
type Client struct {
	host    string
	chainID types.Chain
	signer  wallet.Signer

	mu    sync.RWMutex
	creds *types.ApiKeyCreds

	httpClient  *httpClient
	rateLimiter *ratelimit.Manager
	tickSizes   *cache.InMemoryCache[string, types.TickSize]
	negRisk     *cache.InMemoryCache[string, bool]
}

// NewClient builds a client. creds may be nil; L2 endpoints stay
// unavailable until SetCreds is called.
func NewClient(host string, chainID types.Chain, signer wallet.Signer, creds *types.ApiKeyCreds) *Client {
	return &Client{
		host:        strings.TrimSuffix(host, "/"),
		chainID:     chainID,
		signer:      signer,
		creds:       creds,
		httpClient:  newHTTPClient(host),
		rateLimiter: ratelimit.NewManager(),
		tickSizes:   cache.NewInMemoryCache[string, types.TickSize](marketAttrTTL),
		negRisk:     cache.NewInMemoryCache[string, bool](marketAttrTTL),
	}
}

// GetHost returns the API host.
func (c *Client) GetHost() string {
	return c.host
}

// GetChainID returns the settlement chain.
func (c *Client) GetChainID() types.Chain {
	return c.chainID
}

// Address is the signer address used in auth headers.
func (c *Client) Address() common.Address {
	return c.signer.Address()
}

// SetCreds installs (or clears) the L2 credential triple.
func (c *Client) SetCreds(creds *types.ApiKeyCreds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

// Creds returns the current L2 credentials, nil when unset.
func (c *Client) Creds() *types.ApiKeyCreds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// CanL1Auth reports whether wallet-signature auth is possible.
func (c *Client) CanL1Auth() error {
	if c.signer == nil {
		return fmt.Errorf("L1 auth unavailable: no signer configured")
	}
	return nil
}

// CanL2Auth reports whether API-key auth is possible.
func (c *Client) CanL2Auth() error {
	if c.Creds() == nil {
		return fmt.Errorf("L2 auth unavailable: api credentials not set")
	}
	return nil
}
