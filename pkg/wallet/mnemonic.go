package wallet

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// DefaultDerivationPath is the standard Ethereum account path.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// NewLocalSignerFromMnemonic derives a signer from a BIP-39 mnemonic at
// the given path (empty path = DefaultDerivationPath).
func NewLocalSignerFromMnemonic(mnemonic, path string, eth *ethclient.Client, chainID *big.Int) (*LocalSigner, error) {
	if path == "" {
		path = DefaultDerivationPath
	}
	hd, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("parse mnemonic: %w", err)
	}
	dpath, err := hdwallet.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("parse derivation path %q: %w", path, err)
	}
	account, err := hd.Derive(dpath, false)
	if err != nil {
		return nil, fmt.Errorf("derive account: %w", err)
	}
	key, err := hd.PrivateKey(account)
	if err != nil {
		return nil, fmt.Errorf("export derived key: %w", err)
	}
	return NewLocalSigner(key, eth, chainID), nil
}
