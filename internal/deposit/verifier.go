package deposit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betkit/gopoly/pkg/logger"
	"github.com/betkit/gopoly/pkg/syncgroup"
)

// State is where a deposit session currently is.
type State string

const (
	StateIdle          State = "idle"
	StateAmount        State = "amount"
	StateMethodSelect  State = "method-select"
	StateQuickTransfer State = "quick-transfer"
	StateManualSend    State = "manual-send"
	StateDetecting     State = "detecting"
	StateVerifying     State = "verifying"
	StateSuccess       State = "success"
	StateError         State = "error"
)

// Auto-detection ceiling for the manual-send path. After the last
// attempt the session falls back to manual signature entry.
const (
	DetectAttempts = 24
	DetectInterval = 5 * time.Second
)

// ErrPending says the ledger has seen the transfer but not finalized
// it. Retry verification later; the session stays in verifying.
var ErrPending = errors.New("deposit pending confirmation")

// Session is one deposit-to-credit conversion.
type Session struct {
	ID              string
	WalletAddress   string
	DepositAddress  string
	TokenMint       string
	CreditsPerToken float64
	Amount          float64
	TxSignature     string
	Credits         int64
}

// ExpectedCredits is the credit amount this session converts to.
func (s *Session) ExpectedCredits() int64 {
	return int64(math.Floor(s.Amount * s.CreditsPerToken))
}

// TransferSender submits the on-chain token transfer for the
// quick-transfer path and returns its transaction signature.
type TransferSender interface {
	SendToken(ctx context.Context, to, tokenMint string, amount float64) (string, error)
}

// Observer is notified on every state change.
type Observer func(state State, session *Session)

// Config wires a Verifier. Sender may be nil when only the manual-send
// path is offered.
type Config struct {
	Backend        Backend
	Sender         TransferSender
	WalletAddress  string
	Observer       Observer
	DetectAttempts int
	DetectInterval time.Duration
}

// Verifier drives a deposit session from amount entry to credited.
// One session at a time per verifier.
type Verifier struct {
	backend        Backend
	sender         TransferSender
	wallet         string
	observer       Observer
	detectAttempts int
	detectInterval time.Duration

	mu           sync.Mutex
	state        State
	session      *Session
	verified     map[string]*VerifyResult // tx signatures with observed success
	detectCancel context.CancelFunc
	detecting    bool
	group        *syncgroup.SyncGroup

	log *logrus.Entry
}

// NewVerifier builds a verifier in the idle state.
func NewVerifier(cfg Config) *Verifier {
	attempts := cfg.DetectAttempts
	if attempts <= 0 {
		attempts = DetectAttempts
	}
	interval := cfg.DetectInterval
	if interval <= 0 {
		interval = DetectInterval
	}
	return &Verifier{
		backend:        cfg.Backend,
		sender:         cfg.Sender,
		wallet:         cfg.WalletAddress,
		observer:       cfg.Observer,
		detectAttempts: attempts,
		detectInterval: interval,
		state:          StateIdle,
		verified:       make(map[string]*VerifyResult),
		group:          syncgroup.NewSyncGroup(),
		log:            logger.WithComponent("deposit"),
	}
}

// State returns the current state.
func (v *Verifier) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Session returns a copy of the current session, or nil outside one.
func (v *Verifier) Session() *Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session == nil {
		return nil
	}
	s := *v.session
	return &s
}

func (v *Verifier) setState(state State) {
	v.mu.Lock()
	v.state = state
	observer := v.observer
	var snapshot *Session
	if v.session != nil {
		s := *v.session
		snapshot = &s
	}
	v.mu.Unlock()

	if observer != nil {
		observer(state, snapshot)
	}
}

// Start opens a new session for the given token amount and fetches the
// deposit parameters. Moves amount -> method-select.
func (v *Verifier) Start(ctx context.Context, amount float64) (*Session, error) {
	if amount <= 0 {
		return nil, errors.Errorf("deposit amount must be positive, got %f", amount)
	}

	v.mu.Lock()
	if v.session != nil && v.state != StateIdle && v.state != StateSuccess && v.state != StateError {
		v.mu.Unlock()
		return nil, errors.New("a deposit session is already in progress")
	}
	v.mu.Unlock()

	v.setState(StateAmount)
	info, err := v.backend.GetDepositAddress(ctx, v.wallet)
	if err != nil {
		v.setState(StateError)
		return nil, err
	}

	session := &Session{
		ID:              uuid.NewString(),
		WalletAddress:   v.wallet,
		DepositAddress:  info.DepositAddress,
		TokenMint:       info.TokenMint,
		CreditsPerToken: info.CreditsPerToken,
		Amount:          amount,
	}

	v.mu.Lock()
	v.session = session
	v.mu.Unlock()
	v.setState(StateMethodSelect)

	s := *session
	return &s, nil
}

// QuickTransfer signs and submits the transfer itself, then verifies
// the resulting signature. Requires a TransferSender.
func (v *Verifier) QuickTransfer(ctx context.Context) (*VerifyResult, error) {
	if v.sender == nil {
		return nil, errors.New("quick transfer is not available without a sender")
	}
	session := v.Session()
	if session == nil {
		return nil, errors.New("no deposit session")
	}

	v.setState(StateQuickTransfer)
	sig, err := v.sender.SendToken(ctx, session.DepositAddress, session.TokenMint, session.Amount)
	if err != nil {
		v.setState(StateError)
		return nil, errors.Wrap(err, "send token transfer")
	}

	v.mu.Lock()
	v.session.TxSignature = sig
	v.mu.Unlock()

	return v.VerifySignature(ctx, sig)
}

// BeginManualSend enters the manual-send path and starts background
// auto-detection against the deposit address. Detection gives up after
// the attempt ceiling; the caller then collects a signature from the
// user and calls VerifySignature directly.
func (v *Verifier) BeginManualSend(ctx context.Context) error {
	session := v.Session()
	if session == nil {
		return errors.New("no deposit session")
	}

	v.mu.Lock()
	if v.detecting {
		v.mu.Unlock()
		return nil
	}
	v.detecting = true
	detectCtx, cancel := context.WithCancel(ctx)
	v.detectCancel = cancel
	v.mu.Unlock()

	v.setState(StateManualSend)
	v.group.Go(func() { v.detectLoop(detectCtx, session.DepositAddress) })
	return nil
}

// detectLoop polls find-deposit on a fixed interval until a transfer
// appears, the attempt ceiling is reached, or the context is
// cancelled. Polling is strictly sequential: a lookup still in flight
// delays the next tick rather than overlapping it.
func (v *Verifier) detectLoop(ctx context.Context, depositAddress string) {
	defer func() {
		v.mu.Lock()
		v.detecting = false
		v.detectCancel = nil
		v.mu.Unlock()
	}()

	v.setState(StateDetecting)
	ticker := time.NewTicker(v.detectInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= v.detectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			v.log.Debug("deposit detection cancelled")
			return
		case <-ticker.C:
		}

		found, err := v.backend.FindDeposit(ctx, depositAddress)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			v.log.Debugf("find-deposit attempt %d/%d: %v", attempt, v.detectAttempts, err)
			continue
		}
		if found != nil && found.Found {
			v.log.Infof("deposit detected after %d attempts: %s", attempt, found.TxSignature)
			if _, err := v.VerifySignature(ctx, found.TxSignature); err != nil && !errors.Is(err, ErrPending) {
				v.log.Warnf("verify detected deposit: %v", err)
			}
			return
		}
	}

	// Ceiling reached: fall back to manual signature entry.
	v.log.Infof("deposit not detected after %d attempts, waiting for manual entry", v.detectAttempts)
	v.setState(StateManualSend)
}

// VerifySignature asks the ledger to credit the transfer identified by
// txSignature. A signature already acknowledged as success is answered
// from memory and never re-sent. A pending answer returns ErrPending
// and keeps the session in verifying.
func (v *Verifier) VerifySignature(ctx context.Context, txSignature string) (*VerifyResult, error) {
	if txSignature == "" {
		return nil, errors.New("empty transaction signature")
	}

	v.mu.Lock()
	if prior, ok := v.verified[txSignature]; ok {
		v.mu.Unlock()
		return prior, nil
	}
	if v.session != nil {
		v.session.TxSignature = txSignature
	}
	v.mu.Unlock()

	v.setState(StateVerifying)
	result, err := v.backend.VerifyDeposit(ctx, txSignature, v.wallet)
	if err != nil {
		if ctx.Err() == nil {
			v.setState(StateError)
		}
		return nil, err
	}

	switch result.Status {
	case VerifyStatusSuccess:
		v.mu.Lock()
		v.verified[txSignature] = result
		if v.session != nil {
			v.session.Credits = result.Credits
		}
		v.mu.Unlock()
		v.setState(StateSuccess)
		return result, nil
	case VerifyStatusPending:
		// Still verifying; the caller retries later with the same
		// signature.
		return result, ErrPending
	default:
		v.setState(StateError)
		if result.Error != "" {
			return result, errors.Errorf("deposit rejected: %s", result.Error)
		}
		return result, errors.Errorf("deposit rejected with status %q", result.Status)
	}
}

// Cancel stops any detection poll and returns the verifier to idle.
// Safe to call at any suspension point.
func (v *Verifier) Cancel() {
	v.mu.Lock()
	if v.detectCancel != nil {
		v.detectCancel()
		v.detectCancel = nil
	}
	v.session = nil
	v.mu.Unlock()
	v.setState(StateIdle)
}

// Close tears the verifier down, cancelling background polling and
// waiting for it to stop.
func (v *Verifier) Close() {
	v.Cancel()
	v.group.Wait()
}
