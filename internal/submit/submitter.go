// Package submit turns a sized order into an accepted exchange order:
// market attribute re-fetch, sell-side balance pre-check, signing and
// submission, and classification of the exchange's answer.
package submit

import (
	"context"
	"errors"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/creds"
	"github.com/betkit/gopoly/internal/domain"
	"github.com/betkit/gopoly/pkg/logger"
	"github.com/betkit/gopoly/pkg/wallet"
)

// DefaultSellTolerance absorbs float drift from "sell all" flows: a
// sell short of balance by at most this fraction of the requested size
// is capped instead of rejected.
const DefaultSellTolerance = 0.01

// ClobAPI is the exchange surface the submitter drives.
type ClobAPI interface {
	SetCreds(creds *types.ApiKeyCreds)
	GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error)
	GetNegRisk(ctx context.Context, tokenID string) (bool, error)
	InvalidateMarketAttrs(tokenID string)
	CreateOrderWithFunder(ctx context.Context, req *types.UserOrder, options *types.CreateOrderOptions, funderAddress string, signatureType types.SignatureType) (*types.SignedOrder, error)
	PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error)
	GetOpenOrders(ctx context.Context, params *types.OpenOrderParams) ([]types.OpenOrder, error)
	Address() common.Address
}

// BalanceReader reads on-chain conditional-token balances.
type BalanceReader interface {
	BalanceOf(ctx context.Context, owner common.Address, tokenID string) (*big.Int, error)
}

// Submitter submits orders for one signer session.
type Submitter struct {
	clob          ClobAPI
	balances      BalanceReader
	credStore     *creds.Store
	sellTolerance float64
	onSubmitting  func()
	log           *logrus.Entry
}

// SetOnSubmitting installs a hook fired after signing, right before
// the REST submission. The orchestration layer uses it to move its
// stage from signing to submitting.
func (s *Submitter) SetOnSubmitting(fn func()) {
	s.onSubmitting = fn
}

// New builds a submitter. sellTolerance <= 0 selects the default 1%.
func New(clob ClobAPI, balances BalanceReader, credStore *creds.Store, sellTolerance float64) *Submitter {
	if sellTolerance <= 0 {
		sellTolerance = DefaultSellTolerance
	}
	return &Submitter{
		clob:          clob,
		balances:      balances,
		credStore:     credStore,
		sellTolerance: sellTolerance,
		log:           logger.WithComponent("submit"),
	}
}

// Submit signs and posts the sized order. Market attributes are always
// re-fetched from the exchange; the caller's negRisk/tickSize are only
// a hint since market classification can change.
func (s *Submitter) Submit(ctx context.Context, params domain.TradeParams, sized domain.SizedOrder, credentials *domain.Credentials, funderAddress string) (*domain.OrderResult, error) {
	s.clob.SetCreds(credentials.ToApiKeyCreds())

	// Never sign against stale market attributes: drop any cached
	// entries so the fetches below go to the exchange.
	s.clob.InvalidateMarketAttrs(params.TokenID)
	tickSize, err := s.clob.GetTickSize(ctx, params.TokenID)
	if err != nil {
		return nil, domain.WrapError(domain.CodeOrderRejected, err, "fetch tick size")
	}
	negRisk, err := s.clob.GetNegRisk(ctx, params.TokenID)
	if err != nil {
		return nil, domain.WrapError(domain.CodeOrderRejected, err, "fetch neg-risk flag")
	}

	size := sized.Size
	if params.Side == types.SideSell {
		size, err = s.checkSellBalance(ctx, params.TokenID, size, funderAddress)
		if err != nil {
			return nil, err
		}
	}

	signatureType := types.SignatureTypeEOA
	if funderAddress != "" && !strings.EqualFold(funderAddress, s.clob.Address().Hex()) {
		signatureType = types.SignatureTypeGnosisSafe
	}

	userOrder := &types.UserOrder{
		TokenID: params.TokenID,
		Side:    params.Side,
		Size:    size,
		Price:   sized.RoundedPrice,
	}
	options := &types.CreateOrderOptions{TickSize: tickSize, NegRisk: negRisk}

	signedOrder, err := s.clob.CreateOrderWithFunder(ctx, userOrder, options, funderAddress, signatureType)
	if err != nil {
		if errors.Is(err, wallet.ErrRejected) {
			return nil, domain.ErrUserRejected
		}
		return nil, domain.WrapError(domain.CodeOrderRejected, err, "build and sign order")
	}

	orderType := types.OrderTypeGTC
	if params.IsMarketOrder {
		orderType = types.OrderTypeFAK
	}

	if s.onSubmitting != nil {
		s.onSubmitting()
	}
	resp, err := s.clob.PostOrder(ctx, signedOrder, orderType)
	if err != nil {
		return nil, s.classifySubmitError(credentials, err)
	}
	if !resp.Success {
		return nil, s.classifyRejectionAndInvalidate(credentials, resp.ErrorMsg)
	}

	result := &domain.OrderResult{
		Success:     true,
		OrderID:     resp.OrderID,
		Status:      resp.Status,
		RawResponse: resp.ErrorMsg,
	}
	// FAK below requested notional is normal execution, not a failure.
	if orderType == types.OrderTypeFAK {
		if filled, ok := filledNotional(params.Side, resp); ok && filled < sized.TargetCost-0.005 {
			result.PartialFill = true
		}
	}
	s.log.Infof("order accepted: id=%s status=%s", resp.OrderID, resp.Status)
	return result, nil
}

// ReconcileOpenOrder looks for an already-resting order on the token.
// Call it before retrying a submission whose previous attempt "failed":
// the exchange may have accepted the order despite the error response.
func (s *Submitter) ReconcileOpenOrder(ctx context.Context, tokenID string) (*types.OpenOrder, error) {
	orders, err := s.clob.GetOpenOrders(ctx, &types.OpenOrderParams{AssetID: &tokenID})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

// checkSellBalance verifies the funder holds the shares being sold.
// Within tolerance the size is capped to the balance floored at 6
// decimals; beyond it the sell fails.
func (s *Submitter) checkSellBalance(ctx context.Context, tokenID string, size float64, funderAddress string) (float64, error) {
	owner := s.clob.Address()
	if funderAddress != "" {
		owner = common.HexToAddress(funderAddress)
	}

	raw, err := s.balances.BalanceOf(ctx, owner, tokenID)
	if err != nil {
		return 0, domain.WrapError(domain.CodeInsufficientShares, err, "read conditional-token balance")
	}

	balance, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), big.NewFloat(1e6)).Float64()
	if balance >= size {
		return size, nil
	}

	shortfall := size - balance
	if shortfall > s.sellTolerance*size {
		return 0, domain.NewError(domain.CodeInsufficientShares,
			"selling %.2f shares but only %.2f held", size, balance)
	}

	capped := math.Floor(balance*1e6) / 1e6
	s.log.Infof("sell size capped from %.6f to %.6f (balance drift)", size, capped)
	return capped, nil
}

// classifySubmitError handles transport-level failures of PostOrder.
func (s *Submitter) classifySubmitError(credentials *domain.Credentials, err error) error {
	if strings.Contains(err.Error(), strconv.Itoa(http.StatusUnauthorized)) ||
		strings.Contains(strings.ToLower(err.Error()), "unauthorized") {
		s.invalidate(credentials)
		return domain.WrapError(domain.CodeCredentialsExpired, err, "exchange rejected credentials")
	}
	return domain.WrapError(domain.CodeOrderRejected, err, "submit order")
}

// classifyRejectionAndInvalidate maps a rejection message and drops
// cached credentials when the failure is credential-shaped, so the
// next attempt re-links instead of retrying known-bad keys.
func (s *Submitter) classifyRejectionAndInvalidate(credentials *domain.Credentials, msg string) error {
	classified := classifyRejection(msg)
	if classified.Code == domain.CodeCredentialsExpired {
		s.invalidate(credentials)
	}
	return classified
}

func (s *Submitter) invalidate(credentials *domain.Credentials) {
	if s.credStore == nil || credentials == nil {
		return
	}
	if err := s.credStore.Invalidate(credentials.SignerAddress); err != nil {
		s.log.Warnf("invalidate credentials for %s: %v", credentials.SignerAddress, err)
	}
}

// filledNotional extracts the USDC side of the fill from the response.
func filledNotional(side types.Side, resp *types.OrderResponse) (float64, bool) {
	raw := resp.MakingAmount
	if side == types.SideSell {
		raw = resp.TakingAmount
	}
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
