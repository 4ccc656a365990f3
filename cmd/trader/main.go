package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/betkit/gopoly/clob/client"
	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/creds"
	"github.com/betkit/gopoly/internal/domain"
	"github.com/betkit/gopoly/internal/provision"
	"github.com/betkit/gopoly/internal/relayer"
	"github.com/betkit/gopoly/internal/submit"
	"github.com/betkit/gopoly/internal/trade"
	"github.com/betkit/gopoly/pkg/config"
	"github.com/betkit/gopoly/pkg/logger"
	"github.com/betkit/gopoly/pkg/sessionstore"
	"github.com/betkit/gopoly/pkg/shutdown"
	"github.com/betkit/gopoly/pkg/wallet"
)

// collateralChecker adapts the on-chain USDC reader to the stage
// machine's balance check, reporting the funder's spendable dollars.
type collateralChecker struct {
	reader *client.CollateralClient
	funder common.Address
}

func (c collateralChecker) CollateralBalance(ctx context.Context) (float64, error) {
	return c.reader.BalanceUSD(ctx, c.funder)
}

func openStore(cfg config.StoreConfig) (sessionstore.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return sessionstore.NewMemoryStore(), nil
	case "file":
		return sessionstore.NewFileStore(cfg.Path), nil
	case "badger":
		return sessionstore.OpenBadgerStore(sessionstore.BadgerOptions{Path: cfg.Path})
	case "sqlite":
		return sessionstore.OpenSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func signerFromEnv(eth *ethclient.Client, chainID int64) (wallet.Signer, error) {
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		return wallet.NewLocalSignerFromHex(key, eth, big.NewInt(chainID))
	}
	if mnemonic := os.Getenv("MNEMONIC"); mnemonic != "" {
		path := os.Getenv("MNEMONIC_PATH")
		if path == "" {
			path = "m/44'/60'/0'/0/0"
		}
		return wallet.NewLocalSignerFromMnemonic(mnemonic, path, eth, big.NewInt(chainID))
	}
	return nil, fmt.Errorf("set PRIVATE_KEY or MNEMONIC")
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	tokenID := flag.String("token", "", "outcome token id")
	side := flag.String("side", "BUY", "BUY or SELL")
	amount := flag.Float64("amount", 0, "order amount in dollars")
	price := flag.Float64("price", 0, "limit price in (0,1)")
	market := flag.Bool("market", false, "market order (fill-and-kill)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	if *tokenID == "" || *amount <= 0 || *price <= 0 {
		fmt.Fprintln(os.Stderr, "usage: trader -token <id> -side BUY|SELL -amount <usd> -price <p> [-market]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMgr := shutdown.NewManager()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownMgr.Shutdown(shutdownCtx)
	}()

	if err := run(ctx, cfg, shutdownMgr, domain.TradeParams{
		TokenID:       *tokenID,
		Side:          types.Side(strings.ToUpper(*side)),
		Amount:        *amount,
		Price:         *price,
		IsMarketOrder: *market,
	}); err != nil {
		if domain.IsCode(err, domain.CodeUserRejectedSignature) {
			logger.Infof("cancelled in wallet")
			return
		}
		logger.Errorf("trade failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, shutdownMgr *shutdown.Manager, params domain.TradeParams) error {
	chainID := types.Chain(cfg.Chain.ID)

	eth, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	shutdownMgr.OnShutdown(func(context.Context) { eth.Close() })

	signer, err := signerFromEnv(eth, cfg.Chain.ID)
	if err != nil {
		return err
	}
	logger.Infof("signer %s on chain %d", signer.Address().Hex(), chainID)

	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	shutdownMgr.OnShutdown(func(context.Context) { _ = store.Close() })

	var builderCreds *relayer.BuilderCreds
	if cfg.Relayer.BuilderKey != "" {
		builderCreds = &relayer.BuilderCreds{
			Key:        cfg.Relayer.BuilderKey,
			Secret:     cfg.Relayer.BuilderSecret,
			Passphrase: cfg.Relayer.BuilderPassword,
		}
	}
	relayerClient := relayer.NewClient(cfg.Relayer.URL, chainID, signer, common.Address{}, builderCreds)
	relayerClient.SetPollCadence(cfg.Relayer.PollInterval.Duration, cfg.Relayer.PollTimeout.Duration)

	safe, err := relayerClient.GetExpectedSafe(ctx, signer.Address())
	if err != nil {
		return fmt.Errorf("derive smart wallet: %w", err)
	}
	relayerClient.SetSafeAddress(safe)
	logger.Infof("smart wallet %s", safe.Hex())

	provisioner, err := provision.New(relayerClient, eth, store, chainID)
	if err != nil {
		return err
	}

	clobClient := client.NewClient(cfg.Clob.Host, chainID, signer, nil)
	credStore := creds.NewStore(store, creds.DefaultTTL)
	linker := creds.NewLinker(clobClient, credStore, signer.Address().Hex())

	ctf, err := client.NewCTFClient(cfg.Chain.RPCURL, chainID)
	if err != nil {
		return fmt.Errorf("ctf client: %w", err)
	}
	shutdownMgr.OnShutdown(func(context.Context) { ctf.Close() })

	collateral, err := client.NewCollateralClient(cfg.Chain.RPCURL, chainID)
	if err != nil {
		return fmt.Errorf("collateral client: %w", err)
	}
	shutdownMgr.OnShutdown(func(context.Context) { collateral.Close() })

	submitter := submit.New(clobClient, ctf, credStore, cfg.Trade.SellShortfallTolerance)

	machine := trade.NewMachine(trade.Config{
		Owner:         signer.Address(),
		RequiredChain: chainID,
		Balance:       collateralChecker{reader: collateral, funder: safe},
		Provisioner:   provisioner,
		Linker:        linker,
		Submitter:     submitter,
		ResetDelay:    cfg.Trade.StageResetDelay.Duration,
		Observer: func(stage trade.Stage, message string) {
			logger.Infof("[%s] %s", stage, message)
		},
	})

	result, err := machine.PlaceOrder(ctx, params)
	if err != nil {
		return err
	}
	if result.PartialFill {
		logger.Warnf("order %s partially filled (status %s)", result.OrderID, result.Status)
	} else {
		logger.Infof("order %s accepted (status %s)", result.OrderID, result.Status)
	}
	return nil
}
