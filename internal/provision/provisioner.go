// Package provision manages the Safe smart wallet of an owner signer:
// deterministic address derivation, deployment through the relayer and
// the token allowances the exchange requires. Every operation is
// idempotent; state is never rolled back on failure.
package provision

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/betkit/gopoly/clob/client"
	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/domain"
	"github.com/betkit/gopoly/internal/relayer"
	"github.com/betkit/gopoly/pkg/logger"
	"github.com/betkit/gopoly/pkg/sessionstore"
)

// walletStoreName namespaces persisted wallet state.
const walletStoreName = "smart-wallet"

// Relayer is the subset of the relayer client the provisioner needs.
type Relayer interface {
	GetExpectedSafe(ctx context.Context, owner common.Address) (common.Address, error)
	GetDeployed(ctx context.Context, addr common.Address) (bool, error)
	Deploy(ctx context.Context, owner common.Address) (*relayer.Response, error)
	Execute(ctx context.Context, txns []relayer.SafeTransaction, metadata string) (*relayer.Response, error)
	WaitForTransaction(ctx context.Context, id string) (*relayer.Response, error)
}

// ChainReader is the on-chain fallback for deployment checks. Satisfied
// by *ethclient.Client.
type ChainReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// walletRecord is the persisted envelope.
type walletRecord struct {
	domain.SmartWalletState
	Timestamp int64 `json:"timestamp"`
}

// Provisioner drives the wallet state machine for one owner at a time.
type Provisioner struct {
	relayer   Relayer
	chain     ChainReader // may be nil, fallback then unavailable
	store     sessionstore.Store
	contracts *client.ContractConfig

	mu     sync.Mutex
	states map[string]*domain.SmartWalletState // keyed by lowercased owner

	log *logrus.Entry
}

// New builds a provisioner. chain may be nil when no RPC endpoint is
// configured.
func New(rel Relayer, chain ChainReader, store sessionstore.Store, chainID types.Chain) (*Provisioner, error) {
	contracts, err := client.GetContractConfig(chainID)
	if err != nil {
		return nil, err
	}
	return &Provisioner{
		relayer:   rel,
		chain:     chain,
		store:     store,
		contracts: contracts,
		states:    make(map[string]*domain.SmartWalletState),
		log:       logger.WithComponent("provision"),
	}, nil
}

// State returns the current view of the owner's wallet, loading any
// persisted record on first access. The address field may be empty
// until DeriveAddress has run.
func (p *Provisioner) State(owner common.Address) *domain.SmartWalletState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked(owner)
}

func (p *Provisioner) loadLocked(owner common.Address) *domain.SmartWalletState {
	key := strings.ToLower(owner.Hex())
	if st, ok := p.states[key]; ok {
		return st
	}

	st := &domain.SmartWalletState{Owner: owner.Hex()}
	if raw, ok, err := p.store.Get(sessionstore.Key(walletStoreName, owner.Hex())); err == nil && ok {
		var rec walletRecord
		if json.Unmarshal(raw, &rec) == nil && rec.Address != "" {
			st = &rec.SmartWalletState
		}
	}
	p.states[key] = st
	return st
}

func (p *Provisioner) persistLocked(st *domain.SmartWalletState) {
	rec := walletRecord{SmartWalletState: *st, Timestamp: time.Now().Unix()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := p.store.Put(sessionstore.Key(walletStoreName, st.Owner), raw); err != nil {
		p.log.Warnf("persist wallet state for %s: %v", st.Owner, err)
	}
}

// DeriveAddress resolves the owner's deterministic Safe address. The
// relayer computes it; the result never changes, so it is cached for
// the process lifetime and persisted.
func (p *Provisioner) DeriveAddress(ctx context.Context, owner common.Address) (common.Address, error) {
	p.mu.Lock()
	st := p.loadLocked(owner)
	if st.Address != "" {
		addr := common.HexToAddress(st.Address)
		p.mu.Unlock()
		return addr, nil
	}
	p.mu.Unlock()

	addr, err := p.relayer.GetExpectedSafe(ctx, owner)
	if err != nil {
		return common.Address{}, domain.WrapError(domain.CodeDeploymentFailed, err, "derive smart wallet address")
	}

	p.mu.Lock()
	st = p.loadLocked(owner)
	st.Address = addr.Hex()
	p.persistLocked(st)
	p.mu.Unlock()
	return addr, nil
}

// CheckDeployment reports whether the owner's Safe exists on chain.
// The relayer is asked first; on relayer failure the answer comes from
// bytecode presence at the derived address. A true answer is cached
// forever (deployment is irreversible); false is re-checked each call.
func (p *Provisioner) CheckDeployment(ctx context.Context, owner common.Address) (bool, error) {
	p.mu.Lock()
	if st := p.loadLocked(owner); st.IsDeployed {
		p.mu.Unlock()
		return true, nil
	}
	p.mu.Unlock()

	addr, err := p.DeriveAddress(ctx, owner)
	if err != nil {
		return false, err
	}

	deployed, err := p.relayer.GetDeployed(ctx, addr)
	if err != nil {
		if p.chain == nil {
			return false, domain.WrapError(domain.CodeDeploymentFailed, err, "check deployment")
		}
		p.log.Warnf("relayer deployed check failed, falling back to bytecode: %v", err)
		code, codeErr := p.chain.CodeAt(ctx, addr, nil)
		if codeErr != nil {
			return false, domain.WrapError(domain.CodeDeploymentFailed, codeErr, "check deployment bytecode")
		}
		deployed = len(code) > 0
	}

	if deployed {
		p.mu.Lock()
		st := p.loadLocked(owner)
		st.IsDeployed = true
		p.persistLocked(st)
		p.mu.Unlock()
	}
	return deployed, nil
}

// Deploy creates the owner's Safe through the relayer and blocks until
// the relayer reports completion. Re-invoking when already deployed
// short-circuits without a second on-chain transaction.
func (p *Provisioner) Deploy(ctx context.Context, owner common.Address) error {
	deployed, err := p.CheckDeployment(ctx, owner)
	if err != nil {
		return err
	}
	if deployed {
		return nil
	}

	resp, err := p.relayer.Deploy(ctx, owner)
	if err != nil {
		return domain.WrapError(domain.CodeDeploymentFailed, err, "deploy smart wallet")
	}
	if !resp.Terminal() {
		if resp, err = p.relayer.WaitForTransaction(ctx, resp.ID); err != nil {
			return domain.WrapError(domain.CodeDeploymentFailed, err, "deploy smart wallet")
		}
	}
	if !resp.Succeeded() {
		return domain.NewError(domain.CodeDeploymentFailed, "relayer reported %s: %s", resp.State, resp.Error)
	}

	p.mu.Lock()
	st := p.loadLocked(owner)
	st.IsDeployed = true
	p.persistLocked(st)
	p.mu.Unlock()

	p.log.Infof("smart wallet deployed for %s", owner.Hex())
	return nil
}

// SetAllowances grants the exchange spenders their USDC allowance and
// conditional-token operator approval in one relayer batch. Requires a
// deployed wallet. Safe to call again; approvals grant, not transfer.
func (p *Provisioner) SetAllowances(ctx context.Context, owner common.Address) error {
	p.mu.Lock()
	st := p.loadLocked(owner)
	if st.HasAllowances {
		p.mu.Unlock()
		return nil
	}
	isDeployed := st.IsDeployed
	p.mu.Unlock()

	if !isDeployed {
		deployed, err := p.CheckDeployment(ctx, owner)
		if err != nil {
			return err
		}
		if !deployed {
			return domain.NewError(domain.CodeAllowanceFailed, "smart wallet not deployed for %s", owner.Hex())
		}
	}

	txns, err := buildAllowanceTxns(p.contracts)
	if err != nil {
		return domain.WrapError(domain.CodeAllowanceFailed, err, "build allowance batch")
	}

	resp, err := p.relayer.Execute(ctx, txns, "allowances")
	if err != nil {
		return domain.WrapError(domain.CodeAllowanceFailed, err, "set allowances")
	}
	if !resp.Terminal() {
		if resp, err = p.relayer.WaitForTransaction(ctx, resp.ID); err != nil {
			return domain.WrapError(domain.CodeAllowanceFailed, err, "set allowances")
		}
	}
	if !resp.Succeeded() {
		return domain.NewError(domain.CodeAllowanceFailed, "relayer reported %s: %s", resp.State, resp.Error)
	}

	p.mu.Lock()
	st = p.loadLocked(owner)
	st.HasAllowances = true
	p.persistLocked(st)
	p.mu.Unlock()

	p.log.Infof("allowances set for %s", owner.Hex())
	return nil
}
