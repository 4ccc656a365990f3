// Package relayer talks to the gasless transaction relayer that
// deploys Safe smart wallets and executes transactions on their
// behalf. Requests are authenticated with builder HMAC headers;
// Safe transactions additionally carry an EIP-712 owner signature.
package relayer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/pkg/logger"
	"github.com/betkit/gopoly/pkg/wallet"
)

const DefaultURL = "https://relayer-v2.polymarket.com"

// Default poll cadence for WaitForTransaction.
const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 90 * time.Second
)

// Client is a relayer API client bound to one signer and Safe.
type Client struct {
	baseURL      string
	chainID      types.Chain
	signer       wallet.Signer
	safeAddr     common.Address
	builderCreds *BuilderCreds
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	log          *logrus.Entry
}

// NewClient builds a relayer client. builderCreds may be nil for the
// read-only endpoints (expected-safe, deployed).
func NewClient(baseURL string, chainID types.Chain, signer wallet.Signer, safeAddr common.Address, builderCreds *BuilderCreds) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL:      baseURL,
		chainID:      chainID,
		signer:       signer,
		safeAddr:     safeAddr,
		builderCreds: builderCreds,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
		log:          logger.WithComponent("relayer"),
	}
}

// SetPollCadence overrides the WaitForTransaction poll interval and
// timeout. Non-positive values keep the corresponding default.
func (c *Client) SetPollCadence(interval, timeout time.Duration) {
	if interval > 0 {
		c.pollInterval = interval
	}
	if timeout > 0 {
		c.pollTimeout = timeout
	}
}

// SetSafeAddress binds the Safe once it is known. Deploy and Execute
// require it; the read-only endpoints do not.
func (c *Client) SetSafeAddress(addr common.Address) {
	c.safeAddr = addr
}

// builderHeaders creates the HMAC auth headers over
// timestamp + method + path + body.
func (c *Client) builderHeaders(method, path string, body []byte) (map[string]string, error) {
	if c.builderCreds == nil {
		return nil, nil
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := timestamp + method + path + string(body)

	secretBytes, err := base64.URLEncoding.DecodeString(c.builderCreds.Secret)
	if err != nil {
		secretBytes, err = base64.StdEncoding.DecodeString(c.builderCreds.Secret)
		if err != nil {
			return nil, fmt.Errorf("decode builder secret: %w", err)
		}
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(message))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	return map[string]string{
		"POLY_BUILDER_API_KEY":    c.builderCreds.Key,
		"POLY_BUILDER_PASSPHRASE": c.builderCreds.Passphrase,
		"POLY_BUILDER_SIGNATURE":  signature,
		"POLY_BUILDER_TIMESTAMP":  timestamp,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	headers, err := c.builderHeaders(method, path, body)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("relayer %s %s: %d %s", method, path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode relayer response: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

// GetExpectedSafe returns the deterministic Safe address the relayer
// would deploy for owner. No auth required.
func (c *Client) GetExpectedSafe(ctx context.Context, owner common.Address) (common.Address, error) {
	path := "/expected-safe?address=" + owner.Hex()
	var result struct {
		Address string `json:"address"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(result.Address) {
		return common.Address{}, fmt.Errorf("relayer returned invalid safe address %q", result.Address)
	}
	return common.HexToAddress(result.Address), nil
}

// GetDeployed reports whether addr has a deployed Safe.
func (c *Client) GetDeployed(ctx context.Context, addr common.Address) (bool, error) {
	path := "/deployed?address=" + addr.Hex() + "&type=SAFE"
	var result struct {
		Deployed bool `json:"deployed"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return false, err
	}
	return result.Deployed, nil
}

// GetNonce fetches the Safe nonce of the signer.
func (c *Client) GetNonce(ctx context.Context) (*big.Int, error) {
	path := "/nonce?address=" + c.signer.Address().Hex() + "&type=SAFE"
	var result struct {
		Nonce string `json:"nonce"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	nonce, ok := new(big.Int).SetString(result.Nonce, 10)
	if !ok {
		return nil, fmt.Errorf("relayer returned invalid nonce %q", result.Nonce)
	}
	return nonce, nil
}

// Deploy asks the relayer to create the owner's Safe.
func (c *Client) Deploy(ctx context.Context, owner common.Address) (*Response, error) {
	body, err := json.Marshal(map[string]string{
		"from":        owner.Hex(),
		"proxyWallet": c.safeAddr.Hex(),
		"type":        "SAFE-CREATE",
	})
	if err != nil {
		return nil, err
	}

	var result Response
	if err := c.doJSON(ctx, http.MethodPost, "/deploy", body, &result); err != nil {
		return nil, err
	}
	c.log.Infof("deploy submitted: id=%s state=%s", result.ID, result.State)
	return &result, nil
}

// Execute signs and submits one or more transactions through the Safe.
// Multiple transactions are packed into a single multiSend delegatecall.
func (c *Client) Execute(ctx context.Context, txns []SafeTransaction, metadata string) (*Response, error) {
	if len(txns) == 0 {
		return nil, fmt.Errorf("no transactions to execute")
	}

	nonce, err := c.GetNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	to, data, operation, err := encodeMultiSend(txns)
	if err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
	}

	hash, err := safeTxHash(c.chainID, c.safeAddr, to, data, operation, nonce)
	if err != nil {
		return nil, fmt.Errorf("safe tx hash: %w", err)
	}

	sig, err := c.signer.SignDigest(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("sign safe tx: %w", err)
	}

	request := TransactionRequest{
		Type:        "SAFE",
		From:        c.signer.Address().Hex(),
		To:          to.Hex(),
		ProxyWallet: c.safeAddr.Hex(),
		Data:        "0x" + hex.EncodeToString(data),
		Nonce:       nonce.String(),
		Signature:   "0x" + hex.EncodeToString(sig),
		SignatureParams: &SignatureParams{
			GasPrice:   "0",
			SafeTxnGas: "0",
			BaseGas:    "0",
		},
		Metadata: metadata,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	var result Response
	if err := c.doJSON(ctx, http.MethodPost, "/submit", body, &result); err != nil {
		return nil, err
	}
	c.log.Infof("submitted: id=%s state=%s txHash=%s", result.ID, result.State, result.TransactionHash)
	return &result, nil
}

// GetTransaction queries the state of a previously submitted
// transaction.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Response, error) {
	path := "/transaction?id=" + url.QueryEscape(id)
	var result []Response
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("relayer transaction %s not found", id)
	}
	return &result[0], nil
}

// WaitForTransaction polls until the transaction reaches a terminal
// state or the timeout elapses.
func (c *Client) WaitForTransaction(ctx context.Context, id string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.GetTransaction(ctx, id)
		if err == nil && resp.Terminal() {
			if !resp.Succeeded() {
				return resp, fmt.Errorf("relayer transaction %s ended in %s: %s", id, resp.State, resp.Error)
			}
			return resp, nil
		}
		if err != nil {
			c.log.Warnf("poll transaction %s: %v", id, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for relayer transaction %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
