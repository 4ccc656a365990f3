package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/betkit/gopoly/clob/client"
	"github.com/betkit/gopoly/internal/deposit"
	"github.com/betkit/gopoly/pkg/config"
	"github.com/betkit/gopoly/pkg/logger"
	"github.com/betkit/gopoly/pkg/wallet"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	amount := flag.Float64("amount", 0, "deposit amount in whole tokens")
	quick := flag.Bool("quick", false, "sign and send the transfer from this wallet")
	txSig := flag.String("tx", "", "verify an already-sent transaction signature")
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
	if *amount <= 0 {
		fmt.Fprintln(os.Stderr, "usage: deposit -amount <tokens> [-quick | -tx <signature>]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *amount, *quick, *txSig); err != nil {
		logger.Errorf("deposit failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, amount float64, quick bool, txSig string) error {
	eth, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		return errors.Wrap(err, "dial rpc")
	}
	defer eth.Close()

	var signer wallet.Signer
	if key := os.Getenv("PRIVATE_KEY"); key != "" {
		signer, err = wallet.NewLocalSignerFromHex(key, eth, big.NewInt(cfg.Chain.ID))
		if err != nil {
			return err
		}
	} else if !quick {
		return errors.New("set PRIVATE_KEY")
	}

	var sender deposit.TransferSender
	if quick {
		if signer == nil {
			return errors.New("quick transfer needs PRIVATE_KEY")
		}
		sender, err = deposit.NewTokenSender(signer, client.CollateralTokenDecimals)
		if err != nil {
			return err
		}
	}

	verifier := deposit.NewVerifier(deposit.Config{
		Backend:        deposit.NewHTTPBackend(cfg.Deposit.BackendURL),
		Sender:         sender,
		WalletAddress:  signer.Address().Hex(),
		DetectAttempts: cfg.Deposit.MaxAttempts,
		DetectInterval: cfg.Deposit.PollInterval.Duration,
		Observer: func(state deposit.State, session *deposit.Session) {
			logger.Infof("[%s]", state)
		},
	})
	defer verifier.Close()

	session, err := verifier.Start(ctx, amount)
	if err != nil {
		return err
	}
	logger.Infof("deposit %f tokens for %d credits, address %s",
		session.Amount, session.ExpectedCredits(), session.DepositAddress)

	var result *deposit.VerifyResult
	switch {
	case quick:
		result, err = verifier.QuickTransfer(ctx)
	case txSig != "":
		result, err = verifier.VerifySignature(ctx, txSig)
	default:
		// Manual path: show the address, auto-detect the transfer, and
		// fall back to a signature typed in by the user.
		if err := verifier.BeginManualSend(ctx); err != nil {
			return err
		}
		result, err = waitManual(ctx, verifier)
	}
	if errors.Is(err, deposit.ErrPending) {
		logger.Infof("transfer seen but not final yet; re-run with -tx %s later", verifier.Session().TxSignature)
		return nil
	}
	if err != nil {
		return err
	}

	logger.Infof("credited %d (tx %s)", result.Credits, verifier.Session().TxSignature)
	return nil
}

// waitManual waits for auto-detection to conclude, then prompts for a
// transaction signature if nothing was found.
func waitManual(ctx context.Context, verifier *deposit.Verifier) (*deposit.VerifyResult, error) {
	sawDetecting := false
	for {
		select {
		case <-ctx.Done():
			verifier.Cancel()
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}

		switch verifier.State() {
		case deposit.StateSuccess:
			return &deposit.VerifyResult{Status: deposit.VerifyStatusSuccess, Credits: verifier.Session().Credits}, nil
		case deposit.StateError:
			return nil, errors.New("deposit verification failed")
		case deposit.StateDetecting:
			sawDetecting = true
		case deposit.StateManualSend:
			if !sawDetecting {
				continue
			}
			// Detection gave up; ask the user for the signature.
			fmt.Print("transaction signature: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return nil, err
			}
			return verifier.VerifySignature(ctx, strings.TrimSpace(line))
		}
	}
}
