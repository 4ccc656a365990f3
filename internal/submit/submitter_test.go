package submit

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/creds"
	"github.com/betkit/gopoly/internal/domain"
	"github.com/betkit/gopoly/pkg/sessionstore"
)

var signerAddr = common.HexToAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")

type fakeClob struct {
	tickSize  types.TickSize
	negRisk   bool
	postResp  *types.OrderResponse
	postErr   error
	built     *types.UserOrder
	options   *types.CreateOrderOptions
	sigType   types.SignatureType
	openOrder []types.OpenOrder

	// staleNegRisk is served until InvalidateMarketAttrs runs, like a
	// warm cache holding an outdated classification.
	staleNegRisk *bool
	invalidated  int
}

func (f *fakeClob) SetCreds(*types.ApiKeyCreds) {}

func (f *fakeClob) GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error) {
	if f.tickSize == "" {
		return types.TickSize001, nil
	}
	return f.tickSize, nil
}

func (f *fakeClob) GetNegRisk(ctx context.Context, tokenID string) (bool, error) {
	if f.staleNegRisk != nil {
		return *f.staleNegRisk, nil
	}
	return f.negRisk, nil
}

func (f *fakeClob) InvalidateMarketAttrs(tokenID string) {
	f.invalidated++
	f.staleNegRisk = nil
}

func (f *fakeClob) CreateOrderWithFunder(ctx context.Context, req *types.UserOrder, options *types.CreateOrderOptions, funderAddress string, signatureType types.SignatureType) (*types.SignedOrder, error) {
	f.built = req
	f.options = options
	f.sigType = signatureType
	return &types.SignedOrder{TokenID: req.TokenID, Side: req.Side}, nil
}

func (f *fakeClob) PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType) (*types.OrderResponse, error) {
	if f.postErr != nil {
		return nil, f.postErr
	}
	if f.postResp != nil {
		return f.postResp, nil
	}
	return &types.OrderResponse{Success: true, OrderID: "order-1", Status: "live"}, nil
}

func (f *fakeClob) GetOpenOrders(ctx context.Context, params *types.OpenOrderParams) ([]types.OpenOrder, error) {
	return f.openOrder, nil
}

func (f *fakeClob) Address() common.Address { return signerAddr }

type fakeBalances struct {
	shares float64
}

func (f *fakeBalances) BalanceOf(ctx context.Context, owner common.Address, tokenID string) (*big.Int, error) {
	raw := new(big.Float).Mul(big.NewFloat(f.shares), big.NewFloat(1e6))
	out, _ := raw.Int(nil)
	return out, nil
}

func testCredentials() *domain.Credentials {
	return &domain.Credentials{
		ApiKey: "k", ApiSecret: "c2VjcmV0", ApiPassphrase: "p",
		SignerAddress: signerAddr.Hex(),
		Context:       domain.ContextSmartWallet,
	}
}

func sellParams(size float64) (domain.TradeParams, domain.SizedOrder) {
	params := domain.TradeParams{
		TokenID: "777",
		Side:    types.SideSell,
		Amount:  size * 0.5,
		Price:   0.5,
	}
	sized := domain.SizedOrder{RoundedPrice: 0.5, Size: size, TargetCost: size * 0.5}
	return params, sized
}

func TestSubmitSellWithinToleranceCaps(t *testing.T) {
	clob := &fakeClob{}
	sub := New(clob, &fakeBalances{shares: 100.0}, nil, 0)

	params, sized := sellParams(100.3) // 0.3% short
	result, err := sub.Submit(context.Background(), params, sized, testCredentials(), "")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if clob.built.Size != 100.0 {
		t.Fatalf("size = %v, want capped to 100.0", clob.built.Size)
	}
}

func TestSubmitSellBeyondToleranceFails(t *testing.T) {
	sub := New(&fakeClob{}, &fakeBalances{shares: 100.0}, nil, 0)

	params, sized := sellParams(110) // 9% short
	_, err := sub.Submit(context.Background(), params, sized, testCredentials(), "")
	if err == nil {
		t.Fatal("expected InsufficientShares")
	}
	if !domain.IsCode(err, domain.CodeInsufficientShares) {
		t.Fatalf("error code = %v, want %v", domain.CodeOf(err), domain.CodeInsufficientShares)
	}
}

func TestSubmitSmartWalletSignatureType(t *testing.T) {
	clob := &fakeClob{}
	sub := New(clob, &fakeBalances{shares: 1000}, nil, 0)

	params := domain.TradeParams{TokenID: "777", Side: types.SideBuy, Amount: 25, Price: 0.37}
	sized := domain.SizedOrder{RoundedPrice: 0.37, Size: 67.57, TargetCost: 25}

	funder := "0x9999999999999999999999999999999999999999"
	if _, err := sub.Submit(context.Background(), params, sized, testCredentials(), funder); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if clob.sigType != types.SignatureTypeGnosisSafe {
		t.Fatalf("signature type = %v, want GnosisSafe", clob.sigType)
	}

	// Funder equal to signer means plain EOA signing.
	if _, err := sub.Submit(context.Background(), params, sized, testCredentials(), signerAddr.Hex()); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if clob.sigType != types.SignatureTypeEOA {
		t.Fatalf("signature type = %v, want EOA", clob.sigType)
	}
}

func TestSubmitDropsCachedMarketAttrsBeforeSigning(t *testing.T) {
	// The market was cached as non-neg-risk, then reclassified. Signing
	// must see the current flag, not the cached one.
	stale := false
	clob := &fakeClob{negRisk: true, staleNegRisk: &stale}
	sub := New(clob, &fakeBalances{shares: 1000}, nil, 0)

	params := domain.TradeParams{TokenID: "777", Side: types.SideBuy, Amount: 25, Price: 0.37}
	sized := domain.SizedOrder{RoundedPrice: 0.37, Size: 67.57, TargetCost: 25}

	if _, err := sub.Submit(context.Background(), params, sized, testCredentials(), ""); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if clob.invalidated == 0 {
		t.Fatal("market attributes never invalidated before fetch")
	}
	if !clob.options.NegRisk {
		t.Fatal("order signed with cached neg-risk flag instead of the current one")
	}
}

func TestSubmitCredentialRejectionInvalidatesCache(t *testing.T) {
	store := creds.NewStore(sessionstore.NewMemoryStore(), 0)
	credentials := testCredentials()
	if err := store.Put(credentials); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	clob := &fakeClob{postResp: &types.OrderResponse{Success: false, ErrorMsg: "Unauthorized: invalid api key"}}
	sub := New(clob, &fakeBalances{shares: 1000}, store, 0)

	params := domain.TradeParams{TokenID: "777", Side: types.SideBuy, Amount: 25, Price: 0.37}
	sized := domain.SizedOrder{RoundedPrice: 0.37, Size: 67.57, TargetCost: 25}

	_, err := sub.Submit(context.Background(), params, sized, credentials, "")
	if !domain.IsCode(err, domain.CodeCredentialsExpired) {
		t.Fatalf("error code = %v, want %v", domain.CodeOf(err), domain.CodeCredentialsExpired)
	}
	if _, ok := store.Get(credentials.SignerAddress, credentials.Context); ok {
		t.Fatal("credentials still cached after 401-shaped rejection")
	}
}

func TestSubmitPartialFillIsInformational(t *testing.T) {
	clob := &fakeClob{postResp: &types.OrderResponse{
		Success: true, OrderID: "order-2", Status: "matched", MakingAmount: "18.50",
	}}
	sub := New(clob, &fakeBalances{shares: 1000}, nil, 0)

	params := domain.TradeParams{TokenID: "777", Side: types.SideBuy, Amount: 25, Price: 0.37, IsMarketOrder: true}
	sized := domain.SizedOrder{RoundedPrice: 0.37, Size: 67.57, TargetCost: 25}

	result, err := sub.Submit(context.Background(), params, sized, testCredentials(), "")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if !result.Success || !result.PartialFill {
		t.Fatalf("result = %+v, want successful partial fill", result)
	}
}

func TestClassifyRejection(t *testing.T) {
	cases := []struct {
		msg  string
		want domain.ErrorCode
	}{
		{"no match", domain.CodeNoLiquidity},
		{"FOK order not filled", domain.CodeNoLiquidity},
		{"Unauthorized", domain.CodeCredentialsExpired},
		{"invalid api key", domain.CodeCredentialsExpired},
		{"not enough balance / allowance", domain.CodeInsufficientFunds},
		{"something entirely new", domain.CodeOrderRejected},
	}
	for _, tc := range cases {
		if got := classifyRejection(tc.msg); got.Code != tc.want {
			t.Fatalf("classifyRejection(%q) = %v, want %v", tc.msg, got.Code, tc.want)
		}
	}
}

func TestClassifyRejectionKeepsRawMessage(t *testing.T) {
	raw := fmt.Sprintf("error %d: market closed", 42)
	got := classifyRejection(raw)
	if got.Raw != raw {
		t.Fatalf("Raw = %q, want original message preserved", got.Raw)
	}
}

func TestReconcileOpenOrder(t *testing.T) {
	clob := &fakeClob{openOrder: []types.OpenOrder{{ID: "existing-1", AssetID: "777"}}}
	sub := New(clob, &fakeBalances{}, nil, 0)

	found, err := sub.ReconcileOpenOrder(context.Background(), "777")
	if err != nil {
		t.Fatalf("ReconcileOpenOrder error: %v", err)
	}
	if found == nil || found.ID != "existing-1" {
		t.Fatalf("found = %+v, want existing-1", found)
	}
}
