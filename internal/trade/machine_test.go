package trade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/domain"
)

var owner = common.HexToAddress("0x1111111111111111111111111111111111111111")
var safe = common.HexToAddress("0x2222222222222222222222222222222222222222")

type fakeProvisioner struct {
	state       domain.SmartWalletState
	deployCalls int
}

func (f *fakeProvisioner) DeriveAddress(ctx context.Context, o common.Address) (common.Address, error) {
	return safe, nil
}

func (f *fakeProvisioner) State(o common.Address) *domain.SmartWalletState {
	st := f.state
	return &st
}

func (f *fakeProvisioner) CheckDeployment(ctx context.Context, o common.Address) (bool, error) {
	return f.state.IsDeployed, nil
}

func (f *fakeProvisioner) Deploy(ctx context.Context, o common.Address) error {
	f.deployCalls++
	f.state.IsDeployed = true
	return nil
}

func (f *fakeProvisioner) SetAllowances(ctx context.Context, o common.Address) error {
	f.state.HasAllowances = true
	return nil
}

type fakeLinker struct{}

func (fakeLinker) Link(ctx context.Context, funder string) (*domain.Credentials, error) {
	return &domain.Credentials{
		ApiKey: "k", ApiSecret: "s", ApiPassphrase: "p",
		SignerAddress: owner.Hex(),
		Context:       domain.ContextSmartWallet,
	}, nil
}

type fakeSubmitter struct {
	mu           sync.Mutex
	calls        int
	block        chan struct{} // when set, Submit waits until closed
	err          error
	onSubmitting func()
}

func (f *fakeSubmitter) Submit(ctx context.Context, params domain.TradeParams, sized domain.SizedOrder, credentials *domain.Credentials, funder string) (*domain.OrderResult, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.onSubmitting != nil {
		f.onSubmitting()
	}
	return &domain.OrderResult{Success: true, OrderID: "order-1"}, nil
}

func (f *fakeSubmitter) SetOnSubmitting(fn func()) {
	f.onSubmitting = fn
}

func buyParams() domain.TradeParams {
	return domain.TradeParams{
		TokenID:  "777",
		Side:     types.SideBuy,
		Amount:   25,
		Price:    0.37,
		TickSize: types.TickSize001,
	}
}

type stageRecorder struct {
	mu     sync.Mutex
	stages []Stage
}

func (r *stageRecorder) observe(stage Stage, message string) {
	r.mu.Lock()
	r.stages = append(r.stages, stage)
	r.mu.Unlock()
}

func (r *stageRecorder) seen() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, len(r.stages))
	copy(out, r.stages)
	return out
}

func newTestMachine(sub Submitter, prov Provisioner, rec *stageRecorder) *Machine {
	cfg := Config{
		Owner:         owner,
		RequiredChain: types.ChainPolygon,
		Provisioner:   prov,
		Linker:        fakeLinker{},
		Submitter:     sub,
		ResetDelay:    20 * time.Millisecond,
	}
	if rec != nil {
		cfg.Observer = rec.observe
	}
	return NewMachine(cfg)
}

func TestPlaceOrderStageFlow(t *testing.T) {
	rec := &stageRecorder{}
	prov := &fakeProvisioner{}
	m := newTestMachine(&fakeSubmitter{}, prov, rec)

	result, err := m.PlaceOrder(context.Background(), buyParams())
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}

	want := []Stage{
		StageLinkingWallet,
		StageDeployingSafe,
		StageSettingAllowances,
		StageSigningOrder,
		StageSubmittingOrder,
		StageCompleted,
	}
	got := rec.seen()
	if len(got) < len(want) {
		t.Fatalf("stages = %v, want at least %v", got, want)
	}
	for i, stage := range want {
		if got[i] != stage {
			t.Fatalf("stage[%d] = %s, want %s (full: %v)", i, got[i], stage, got)
		}
	}
}

func TestPlaceOrderSkipsProvisionedStages(t *testing.T) {
	rec := &stageRecorder{}
	prov := &fakeProvisioner{state: domain.SmartWalletState{IsDeployed: true, HasAllowances: true}}
	m := newTestMachine(&fakeSubmitter{}, prov, rec)

	if _, err := m.PlaceOrder(context.Background(), buyParams()); err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	for _, stage := range rec.seen() {
		if stage == StageDeployingSafe || stage == StageSettingAllowances {
			t.Fatalf("provisioning stage %s entered despite completed state", stage)
		}
	}
	if prov.deployCalls != 0 {
		t.Fatalf("deploy calls = %d, want 0", prov.deployCalls)
	}
}

func TestPlaceOrderSingleFlight(t *testing.T) {
	block := make(chan struct{})
	sub := &fakeSubmitter{block: block}
	m := newTestMachine(sub, &fakeProvisioner{}, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.PlaceOrder(context.Background(), buyParams())
		firstDone <- err
	}()

	// Wait until the first trade is inside Submit.
	deadline := time.After(time.Second)
	for {
		sub.mu.Lock()
		started := sub.calls > 0
		sub.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first trade never reached submission")
		case <-time.After(time.Millisecond):
		}
	}

	_, err := m.PlaceOrder(context.Background(), buyParams())
	if !domain.IsCode(err, domain.CodeBusy) {
		t.Fatalf("second call error = %v, want busy", err)
	}

	close(block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first trade error: %v", err)
	}
	if sub.calls != 1 {
		t.Fatalf("submit calls = %d, want exactly 1", sub.calls)
	}
}

func TestPlaceOrderErrorStageAndReset(t *testing.T) {
	rec := &stageRecorder{}
	sub := &fakeSubmitter{err: domain.NewError(domain.CodeNoLiquidity, "no liquidity")}
	m := newTestMachine(sub, &fakeProvisioner{}, rec)

	_, err := m.PlaceOrder(context.Background(), buyParams())
	if !domain.IsCode(err, domain.CodeNoLiquidity) {
		t.Fatalf("error = %v, want NoLiquidity", err)
	}
	if m.Stage() != StageError {
		t.Fatalf("stage = %s, want error", m.Stage())
	}

	// Terminal stages auto-reset to idle after the display delay.
	time.Sleep(60 * time.Millisecond)
	if m.Stage() != StageIdle {
		t.Fatalf("stage after reset delay = %s, want idle", m.Stage())
	}
}

func TestPlaceOrderUserRejectionGoesStraightToIdle(t *testing.T) {
	rec := &stageRecorder{}
	sub := &fakeSubmitter{err: domain.ErrUserRejected}
	m := newTestMachine(sub, &fakeProvisioner{}, rec)

	_, err := m.PlaceOrder(context.Background(), buyParams())
	if !domain.IsCode(err, domain.CodeUserRejectedSignature) {
		t.Fatalf("error = %v, want user rejection", err)
	}
	if m.Stage() != StageIdle {
		t.Fatalf("stage = %s, want idle (no error stage for wallet refusal)", m.Stage())
	}
	for _, stage := range rec.seen() {
		if stage == StageError {
			t.Fatal("error stage observed for a wallet refusal")
		}
	}
}

func TestPlaceOrderSizerRejectionBeforeAnyIO(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestMachine(sub, &fakeProvisioner{}, nil)

	params := buyParams()
	params.Amount = 2
	params.Price = 0.95 // sizes to ~2.11 shares, below minimum

	_, err := m.PlaceOrder(context.Background(), params)
	if !domain.IsCode(err, domain.CodeOrderTooSmall) {
		t.Fatalf("error = %v, want OrderTooSmall", err)
	}
	if sub.calls != 0 {
		t.Fatalf("submit calls = %d, want 0", sub.calls)
	}
}
