// Package wallet is the signing boundary of the pipeline. Nothing
// outside this package touches private key material; components depend
// on the Signer interface and receive finished signatures.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ErrRejected is returned when the user declines a signature request
// in an interactive wallet. Callers treat it as terminal for the
// current attempt, not as a system failure.
var ErrRejected = errors.New("wallet: signature request rejected")

// Signer abstracts the external wallet. SignTypedData returns the
// 65-byte secp256k1 signature (r||s||v, v in {27,28}) over the EIP-712
// hash of data.
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}

// LocalSigner signs with an in-process ECDSA key. It is the default
// implementation for bots and tests; interactive wallets implement the
// same interface over their own transport.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	eth     *ethclient.Client // nil disables SendTransaction
	chainID *big.Int
}

// NewLocalSigner wraps an existing key. eth may be nil when the signer
// is only used for typed-data signatures.
func NewLocalSigner(key *ecdsa.PrivateKey, eth *ethclient.Client, chainID *big.Int) *LocalSigner {
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		eth:     eth,
		chainID: chainID,
	}
}

// NewLocalSignerFromHex parses a hex-encoded private key.
func NewLocalSignerFromHex(hexKey string, eth *ethclient.Client, chainID *big.Int) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewLocalSigner(key, eth, chainID), nil
}

func (s *LocalSigner) Address() common.Address { return s.address }

func (s *LocalSigner) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return s.signHash(hash)
}

func (s *LocalSigner) SignDigest(_ context.Context, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	return s.signHash(digest)
}

func (s *LocalSigner) signHash(hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, err
	}
	// Ethereum convention: v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// SendTransaction builds, signs and broadcasts a legacy transaction.
func (s *LocalSigner) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if s.eth == nil {
		return common.Hash{}, errors.New("wallet: no RPC client configured")
	}
	if value == nil {
		value = big.NewInt(0)
	}
	nonce, err := s.eth.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := s.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch gas price: %w", err)
	}
	gasLimit, err := s.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.address,
		To:    &to,
		Data:  data,
		Value: value,
	})
	if err != nil {
		// Some nodes refuse estimation for token approvals; use a
		// conservative fallback.
		gasLimit = 120000
	}
	tx := ethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := s.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}
