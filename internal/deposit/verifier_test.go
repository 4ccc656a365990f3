package deposit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type fakeBackend struct {
	mu sync.Mutex

	info DepositInfo

	findCalls int
	found     *FoundDeposit // returned once findAfter calls have happened
	findAfter int

	verifyCalls   int
	verifyQueue   []string // statuses consumed per call, last one repeats
	lastVerifySig string
}

func (f *fakeBackend) GetDepositAddress(ctx context.Context, wallet string) (*DepositInfo, error) {
	info := f.info
	return &info, nil
}

func (f *fakeBackend) FindDeposit(ctx context.Context, depositAddress string) (*FoundDeposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.found != nil && f.findCalls > f.findAfter {
		return f.found, nil
	}
	return &FoundDeposit{Found: false}, nil
}

func (f *fakeBackend) VerifyDeposit(ctx context.Context, txSignature, wallet string) (*VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.lastVerifySig = txSignature

	status := VerifyStatusSuccess
	if len(f.verifyQueue) > 0 {
		status = f.verifyQueue[0]
		if len(f.verifyQueue) > 1 {
			f.verifyQueue = f.verifyQueue[1:]
		}
	}
	res := &VerifyResult{Status: status}
	if status == VerifyStatusSuccess {
		res.Credits = 100
		res.Amount = 10
	}
	if status == VerifyStatusError {
		res.Error = "unknown transaction"
	}
	return res, nil
}

func (f *fakeBackend) counts() (find, verify int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls, f.verifyCalls
}

type fakeSender struct {
	sig  string
	err  error
	sent float64
}

func (f *fakeSender) SendToken(ctx context.Context, to, mint string, amount float64) (string, error) {
	f.sent = amount
	return f.sig, f.err
}

func newTestBackend() *fakeBackend {
	return &fakeBackend{
		info: DepositInfo{
			DepositAddress:  "DepositAddr111",
			TokenMint:       "Mint111",
			CreditsPerToken: 10,
		},
	}
}

func newTestVerifier(backend *fakeBackend, sender TransferSender) *Verifier {
	return NewVerifier(Config{
		Backend:        backend,
		Sender:         sender,
		WalletAddress:  "Wallet111",
		DetectAttempts: 3,
		DetectInterval: time.Millisecond,
	})
}

func waitForState(t *testing.T, v *Verifier, want State) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if v.State() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state = %s, never reached %s", v.State(), want)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestStartRejectsNonPositiveAmount(t *testing.T) {
	v := newTestVerifier(newTestBackend(), nil)
	if _, err := v.Start(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := v.Start(context.Background(), -5); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestStartFetchesDepositParams(t *testing.T) {
	v := newTestVerifier(newTestBackend(), nil)
	session, err := v.Start(context.Background(), 2.5)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.DepositAddress != "DepositAddr111" || session.TokenMint != "Mint111" {
		t.Fatalf("session params = %+v", session)
	}
	if v.State() != StateMethodSelect {
		t.Fatalf("state = %s, want method-select", v.State())
	}
	// floor(2.5 * 10) = 25
	if got := session.ExpectedCredits(); got != 25 {
		t.Fatalf("expected credits = %d, want 25", got)
	}
}

func TestExpectedCreditsFloors(t *testing.T) {
	s := Session{Amount: 0.999, CreditsPerToken: 1000}
	if got := s.ExpectedCredits(); got != 999 {
		t.Fatalf("credits = %d, want 999", got)
	}
	s = Session{Amount: 1.999, CreditsPerToken: 3}
	if got := s.ExpectedCredits(); got != 5 {
		t.Fatalf("credits = %d, want 5", got)
	}
}

func TestQuickTransferVerifies(t *testing.T) {
	backend := newTestBackend()
	sender := &fakeSender{sig: "tx-quick-1"}
	v := newTestVerifier(backend, sender)

	if _, err := v.Start(context.Background(), 10); err != nil {
		t.Fatalf("Start: %v", err)
	}
	result, err := v.QuickTransfer(context.Background())
	if err != nil {
		t.Fatalf("QuickTransfer: %v", err)
	}
	if result.Status != VerifyStatusSuccess {
		t.Fatalf("status = %s", result.Status)
	}
	if v.State() != StateSuccess {
		t.Fatalf("state = %s, want success", v.State())
	}
	if sender.sent != 10 {
		t.Fatalf("sent amount = %f, want 10", sender.sent)
	}
	if backend.lastVerifySig != "tx-quick-1" {
		t.Fatalf("verified signature = %s", backend.lastVerifySig)
	}
	if v.Session().Credits != 100 {
		t.Fatalf("session credits = %d, want 100", v.Session().Credits)
	}
}

func TestVerifyNeverRepeatsAfterSuccess(t *testing.T) {
	backend := newTestBackend()
	v := newTestVerifier(backend, nil)
	if _, err := v.Start(context.Background(), 10); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := v.VerifySignature(context.Background(), "tx-1"); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := v.VerifySignature(context.Background(), "tx-1"); err != nil {
		t.Fatalf("second verify: %v", err)
	}

	if _, verify := backend.counts(); verify != 1 {
		t.Fatalf("verify calls = %d, want 1 (no re-verify after success)", verify)
	}
}

func TestVerifyPendingIsRetryable(t *testing.T) {
	backend := newTestBackend()
	backend.verifyQueue = []string{VerifyStatusPending, VerifyStatusSuccess}
	v := newTestVerifier(backend, nil)
	if _, err := v.Start(context.Background(), 10); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result, err := v.VerifySignature(context.Background(), "tx-2")
	if !errors.Is(err, ErrPending) {
		t.Fatalf("error = %v, want ErrPending", err)
	}
	if result == nil || result.Status != VerifyStatusPending {
		t.Fatalf("result = %+v", result)
	}
	if v.State() != StateVerifying {
		t.Fatalf("state = %s, want verifying (pending is not an error)", v.State())
	}

	if _, err := v.VerifySignature(context.Background(), "tx-2"); err != nil {
		t.Fatalf("retry after pending: %v", err)
	}
	if v.State() != StateSuccess {
		t.Fatalf("state = %s, want success", v.State())
	}
}

func TestVerifyRejectionIsError(t *testing.T) {
	backend := newTestBackend()
	backend.verifyQueue = []string{VerifyStatusError}
	v := newTestVerifier(backend, nil)
	if _, err := v.Start(context.Background(), 10); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := v.VerifySignature(context.Background(), "tx-bad"); err == nil {
		t.Fatal("expected rejection error")
	}
	if v.State() != StateError {
		t.Fatalf("state = %s, want error", v.State())
	}
}

func TestDetectionAttemptCeiling(t *testing.T) {
	backend := newTestBackend()
	v := newTestVerifier(backend, nil)
	if _, err := v.Start(context.Background(), 10); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := v.BeginManualSend(context.Background()); err != nil {
		t.Fatalf("BeginManualSend: %v", err)
	}

	// Nothing is ever found; the loop must give up after the ceiling
	// and fall back to manual entry.
	deadline := time.After(time.Second)
	for {
		if find, _ := backend.counts(); find >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("detection never reached the attempt ceiling")
		case <-time.After(time.Millisecond):
		}
	}
	waitForState(t, v, StateManualSend)

	time.Sleep(10 * time.Millisecond)
	find, verify := backend.counts()
	if find != 3 {
		t.Fatalf("find-deposit calls = %d, want exactly 3", find)
	}
	if verify != 0 {
		t.Fatalf("verify calls = %d, want 0", verify)
	}
}

func TestDetectionFindsAndVerifies(t *testing.T) {
	backend := newTestBackend()
	backend.found = &FoundDeposit{Found: true, TxSignature: "tx-detected", Amount: 10}
	backend.findAfter = 1
	v := newTestVerifier(backend, nil)
	if _, err := v.Start(context.Background(), 10); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := v.BeginManualSend(context.Background()); err != nil {
		t.Fatalf("BeginManualSend: %v", err)
	}

	waitForState(t, v, StateSuccess)
	if backend.lastVerifySig != "tx-detected" {
		t.Fatalf("verified signature = %s", backend.lastVerifySig)
	}
}

func TestDetectionCancellation(t *testing.T) {
	backend := newTestBackend()
	v := NewVerifier(Config{
		Backend:        backend,
		WalletAddress:  "Wallet111",
		DetectAttempts: 1000,
		DetectInterval: time.Millisecond,
	})
	if _, err := v.Start(context.Background(), 10); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := v.BeginManualSend(context.Background()); err != nil {
		t.Fatalf("BeginManualSend: %v", err)
	}
	waitForState(t, v, StateDetecting)

	v.Cancel()
	waitForState(t, v, StateIdle)

	// Give a stray tick a chance to fire, then confirm polling stopped.
	find, _ := backend.counts()
	time.Sleep(20 * time.Millisecond)
	findAfter, _ := backend.counts()
	if findAfter > find+1 {
		t.Fatalf("polling continued after cancel: %d -> %d calls", find, findAfter)
	}
}

func TestBeginManualSendIsIdempotentWhileDetecting(t *testing.T) {
	backend := newTestBackend()
	v := NewVerifier(Config{
		Backend:        backend,
		WalletAddress:  "Wallet111",
		DetectAttempts: 1000,
		DetectInterval: 50 * time.Millisecond,
	})
	if _, err := v.Start(context.Background(), 10); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := v.BeginManualSend(context.Background()); err != nil {
			t.Fatalf("BeginManualSend: %v", err)
		}
	}
	defer v.Close()

	time.Sleep(120 * time.Millisecond)
	find, _ := backend.counts()
	// A single 50ms loop can have run at most a couple of times; three
	// overlapping loops would triple that.
	if find > 3 {
		t.Fatalf("find-deposit calls = %d, overlapping detect loops suspected", find)
	}
}
