package trade

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/domain"
	"github.com/betkit/gopoly/internal/sizing"
	"github.com/betkit/gopoly/pkg/logger"
)

// DefaultResetDelay is how long terminal stages stay visible before
// the machine returns to idle.
const DefaultResetDelay = 2 * time.Second

// NetworkSwitcher reports and changes the wallet's active chain.
// Optional; without one the network stage is skipped.
type NetworkSwitcher interface {
	ActiveChain(ctx context.Context) (types.Chain, error)
	SwitchChain(ctx context.Context, chain types.Chain) error
}

// BalanceChecker reads the funder's spendable collateral in USD.
// Optional; without one the balance stage is skipped.
type BalanceChecker interface {
	CollateralBalance(ctx context.Context) (float64, error)
}

// Provisioner is the smart-wallet surface the machine drives.
type Provisioner interface {
	DeriveAddress(ctx context.Context, owner common.Address) (common.Address, error)
	State(owner common.Address) *domain.SmartWalletState
	CheckDeployment(ctx context.Context, owner common.Address) (bool, error)
	Deploy(ctx context.Context, owner common.Address) error
	SetAllowances(ctx context.Context, owner common.Address) error
}

// Linker acquires exchange credentials for a funder context.
type Linker interface {
	Link(ctx context.Context, funderAddress string) (*domain.Credentials, error)
}

// Submitter signs and posts a sized order.
type Submitter interface {
	Submit(ctx context.Context, params domain.TradeParams, sized domain.SizedOrder, credentials *domain.Credentials, funderAddress string) (*domain.OrderResult, error)
	SetOnSubmitting(fn func())
}

// Config wires the machine's collaborators.
type Config struct {
	Owner         common.Address
	RequiredChain types.Chain
	Network       NetworkSwitcher
	Balance       BalanceChecker
	Provisioner   Provisioner
	Linker        Linker
	Submitter     Submitter
	Observer      Observer
	ResetDelay    time.Duration
}

// Machine runs one trade at a time for a trading session.
type Machine struct {
	cfg        config
	mu         sync.Mutex
	stage      Stage
	inFlight   bool
	generation int

	log *logrus.Entry
}

type config struct {
	owner         common.Address
	requiredChain types.Chain
	network       NetworkSwitcher
	balance       BalanceChecker
	provisioner   Provisioner
	linker        Linker
	submitter     Submitter
	observer      Observer
	resetDelay    time.Duration
}

// NewMachine builds a stage machine in the idle state.
func NewMachine(cfg Config) *Machine {
	resetDelay := cfg.ResetDelay
	if resetDelay <= 0 {
		resetDelay = DefaultResetDelay
	}
	return &Machine{
		cfg: config{
			owner:         cfg.Owner,
			requiredChain: cfg.RequiredChain,
			network:       cfg.Network,
			balance:       cfg.Balance,
			provisioner:   cfg.Provisioner,
			linker:        cfg.Linker,
			submitter:     cfg.Submitter,
			observer:      cfg.Observer,
			resetDelay:    resetDelay,
		},
		stage: StageIdle,
		log:   logger.WithComponent("trade"),
	}
}

// Stage returns the current stage.
func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

func (m *Machine) setStage(stage Stage, message string) {
	m.mu.Lock()
	m.stage = stage
	observer := m.cfg.observer
	m.mu.Unlock()

	if observer != nil {
		if message == "" {
			message = stage.Message()
		}
		observer(stage, message)
	}
}

// scheduleReset flips a terminal stage back to idle after the display
// delay, unless a newer trade has started in the meantime.
func (m *Machine) scheduleReset() {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	time.AfterFunc(m.cfg.resetDelay, func() {
		m.mu.Lock()
		stale := m.generation != gen || !m.stage.Terminal()
		m.mu.Unlock()
		if !stale {
			m.setStage(StageIdle, "")
		}
	})
}

// PlaceOrder runs the full pipeline for one trade. A call while
// another trade is in flight fails immediately with a busy error and
// is never queued.
func (m *Machine) PlaceOrder(ctx context.Context, params domain.TradeParams) (*domain.OrderResult, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, domain.ErrBusy
	}
	m.inFlight = true
	m.generation++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	attemptID := uuid.NewString()
	m.log.Infof("trade %s: %s %s amount=%.2f price=%.4f market=%t",
		attemptID, params.Side, params.TokenID, params.Amount, params.Price, params.IsMarketOrder)

	result, err := m.run(ctx, params)
	switch {
	case err == nil:
		m.setStage(StageCompleted, "")
		m.scheduleReset()
	case errors.Is(err, domain.ErrUserRejected):
		// A wallet refusal ends the attempt but is not a fault; no
		// error stage, straight back to idle.
		m.log.Infof("trade %s: cancelled in wallet", attemptID)
		m.setStage(StageIdle, "")
	default:
		m.log.Warnf("trade %s failed: %v", attemptID, err)
		m.setStage(StageError, errorMessage(err))
		m.scheduleReset()
	}
	return result, err
}

func (m *Machine) run(ctx context.Context, params domain.TradeParams) (*domain.OrderResult, error) {
	if err := m.ensureNetwork(ctx); err != nil {
		return nil, err
	}

	sized, err := sizing.Size(params)
	if err != nil {
		return nil, err
	}

	if err := m.checkBalance(ctx, params, sized); err != nil {
		return nil, err
	}

	m.setStage(StageLinkingWallet, "")
	funder, err := m.cfg.provisioner.DeriveAddress(ctx, m.cfg.owner)
	if err != nil {
		return nil, err
	}
	credentials, err := m.cfg.linker.Link(ctx, funder.Hex())
	if err != nil {
		return nil, err
	}

	if err := m.ensureProvisioned(ctx); err != nil {
		return nil, err
	}

	m.setStage(StageSigningOrder, "")
	m.cfg.submitter.SetOnSubmitting(func() {
		m.setStage(StageSubmittingOrder, "")
	})
	return m.cfg.submitter.Submit(ctx, params, sized, credentials, funder.Hex())
}

// ensureNetwork enters switching-network only when the active chain
// differs from the required one.
func (m *Machine) ensureNetwork(ctx context.Context) error {
	if m.cfg.network == nil {
		return nil
	}
	active, err := m.cfg.network.ActiveChain(ctx)
	if err != nil {
		return domain.WrapError(domain.CodeNetworkMismatch, err, "read active chain")
	}
	if active == m.cfg.requiredChain {
		return nil
	}

	m.setStage(StageSwitchingNetwork, "")
	if err := m.cfg.network.SwitchChain(ctx, m.cfg.requiredChain); err != nil {
		return domain.WrapError(domain.CodeNetworkMismatch, err,
			"wallet is on chain %d, need %d", active, m.cfg.requiredChain)
	}
	return nil
}

// checkBalance verifies spendable collateral covers a BUY.
func (m *Machine) checkBalance(ctx context.Context, params domain.TradeParams, sized domain.SizedOrder) error {
	if m.cfg.balance == nil || params.Side != types.SideBuy {
		return nil
	}

	m.setStage(StageCheckingBalance, "")
	balance, err := m.cfg.balance.CollateralBalance(ctx)
	if err != nil {
		return domain.WrapError(domain.CodeInsufficientFunds, err, "read collateral balance")
	}
	if balance < sized.TargetCost {
		return domain.NewError(domain.CodeInsufficientFunds,
			"need $%.2f but only $%.2f available", sized.TargetCost, balance)
	}
	return nil
}

// ensureProvisioned deploys the Safe and sets allowances, skipping the
// stages entirely when recorded state says they are already done.
func (m *Machine) ensureProvisioned(ctx context.Context) error {
	state := m.cfg.provisioner.State(m.cfg.owner)

	if !state.IsDeployed {
		deployed, err := m.cfg.provisioner.CheckDeployment(ctx, m.cfg.owner)
		if err != nil {
			return err
		}
		if !deployed {
			m.setStage(StageDeployingSafe, "")
			if err := m.cfg.provisioner.Deploy(ctx, m.cfg.owner); err != nil {
				return err
			}
		}
	}

	if !m.cfg.provisioner.State(m.cfg.owner).HasAllowances {
		m.setStage(StageSettingAllowances, "")
		if err := m.cfg.provisioner.SetAllowances(ctx, m.cfg.owner); err != nil {
			return err
		}
	}
	return nil
}

func errorMessage(err error) string {
	var te *domain.TradeError
	if errors.As(err, &te) {
		if te.Raw != "" {
			return te.Message + ": " + te.Raw
		}
		return te.Message
	}
	return err.Error()
}
