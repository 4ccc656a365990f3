package deposit

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betkit/gopoly/pkg/logger"
)

// Backend is the credit-ledger function boundary. verify-deposit is the
// only credit-mutating action and is idempotent keyed by transaction
// signature.
type Backend interface {
	GetDepositAddress(ctx context.Context, walletAddress string) (*DepositInfo, error)
	VerifyDeposit(ctx context.Context, txSignature, walletAddress string) (*VerifyResult, error)
	FindDeposit(ctx context.Context, depositAddress string) (*FoundDeposit, error)
}

// DepositInfo describes where to send tokens and what they convert to.
type DepositInfo struct {
	DepositAddress  string  `json:"depositAddress"`
	TokenMint       string  `json:"tokenMint"`
	CreditsPerToken float64 `json:"creditsPerToken"`
}

// VerifyResult is the ledger's answer for one transaction signature.
// Status "pending" means the transfer is seen but not yet final; the
// caller should retry later, not treat it as a failure.
type VerifyResult struct {
	Status  string  `json:"status"`
	Credits int64   `json:"credits"`
	Amount  float64 `json:"amount"`
	Error   string  `json:"error,omitempty"`
}

const (
	VerifyStatusSuccess = "success"
	VerifyStatusPending = "pending"
	VerifyStatusError   = "error"
)

// FoundDeposit is a find-deposit hit from the indexer.
type FoundDeposit struct {
	Found       bool    `json:"found"`
	TxSignature string  `json:"txSignature"`
	Amount      float64 `json:"amount"`
}

type backendRequest struct {
	Action         string `json:"action"`
	WalletAddress  string `json:"walletAddress,omitempty"`
	TxSignature    string `json:"txSignature,omitempty"`
	DepositAddress string `json:"depositAddress,omitempty"`
}

// HTTPBackend talks to the deposit function endpoint over JSON.
type HTTPBackend struct {
	http *resty.Client
	log  *logrus.Entry
}

// NewHTTPBackend builds a backend client for the given function URL.
func NewHTTPBackend(baseURL string) *HTTPBackend {
	baseURL = strings.TrimSuffix(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)
	return &HTTPBackend{
		http: client,
		log:  logger.WithComponent("deposit-backend"),
	}
}

func (b *HTTPBackend) call(ctx context.Context, req *backendRequest, out any) error {
	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(out).
		Post("")
	if err != nil {
		return errors.Wrapf(err, "deposit backend %s", req.Action)
	}
	if !resp.IsSuccess() {
		return errors.Errorf("deposit backend %s: http %d: %s",
			req.Action, resp.StatusCode(), resp.String())
	}
	return nil
}

func (b *HTTPBackend) GetDepositAddress(ctx context.Context, walletAddress string) (*DepositInfo, error) {
	var out DepositInfo
	err := b.call(ctx, &backendRequest{
		Action:        "get-deposit-address",
		WalletAddress: walletAddress,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.DepositAddress == "" {
		return nil, errors.New("deposit backend returned no deposit address")
	}
	return &out, nil
}

func (b *HTTPBackend) VerifyDeposit(ctx context.Context, txSignature, walletAddress string) (*VerifyResult, error) {
	var out VerifyResult
	err := b.call(ctx, &backendRequest{
		Action:        "verify-deposit",
		TxSignature:   txSignature,
		WalletAddress: walletAddress,
	}, &out)
	if err != nil {
		return nil, err
	}
	b.log.Debugf("verify-deposit %s: %s", txSignature, out.Status)
	return &out, nil
}

func (b *HTTPBackend) FindDeposit(ctx context.Context, depositAddress string) (*FoundDeposit, error) {
	var out FoundDeposit
	err := b.call(ctx, &backendRequest{
		Action:         "find-deposit",
		DepositAddress: depositAddress,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
