package creds

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/internal/domain"
	"github.com/betkit/gopoly/pkg/logger"
	"github.com/betkit/gopoly/pkg/wallet"
)

// AuthAPI is the credential surface of the CLOB client.
type AuthAPI interface {
	CreateOrDeriveAPIKey(ctx context.Context, nonce int64) (*types.ApiKeyCreds, error)
}

// Linker obtains the exchange credential for a signer, consulting the
// cache first and prompting the wallet for at most one signature per
// successful link.
type Linker struct {
	api        AuthAPI
	store      *Store
	signerAddr string
	log        *logrus.Entry
}

// NewLinker builds a linker for one signer.
func NewLinker(api AuthAPI, store *Store, signerAddr string) *Linker {
	return &Linker{
		api:        api,
		store:      store,
		signerAddr: signerAddr,
		log:        logger.WithComponent("creds"),
	}
}

// ContextFor decides the funding context: smart-wallet when a distinct
// funder pays for orders, direct otherwise.
func (l *Linker) ContextFor(funderAddress string) domain.CredentialContext {
	if funderAddress != "" && !strings.EqualFold(funderAddress, l.signerAddr) {
		return domain.ContextSmartWallet
	}
	return domain.ContextDirect
}

// Link returns a credential valid for the given funder. A cache hit
// costs nothing; otherwise derive-first/create-fallback runs against
// the exchange under a single wallet signature, and the result is
// cached under (signer, context). A credential cached under the other
// context is replaced, never kept alongside.
func (l *Linker) Link(ctx context.Context, funderAddress string) (*domain.Credentials, error) {
	credContext := l.ContextFor(funderAddress)

	if cached, ok := l.store.Get(l.signerAddr, credContext); ok {
		return cached, nil
	}

	apiCreds, err := l.api.CreateOrDeriveAPIKey(ctx, time.Now().Unix())
	if err != nil {
		if errors.Is(err, wallet.ErrRejected) {
			return nil, domain.ErrUserRejected
		}
		return nil, domain.WrapError(domain.CodeCredentialAcquisitionFailed, err, "link exchange credentials")
	}
	if apiCreds.Key == "" || apiCreds.Secret == "" || apiCreds.Passphrase == "" {
		return nil, domain.NewError(domain.CodeCredentialAcquisitionFailed, "exchange returned incomplete credentials")
	}

	linked := &domain.Credentials{
		ApiKey:        apiCreds.Key,
		ApiSecret:     apiCreds.Secret,
		ApiPassphrase: apiCreds.Passphrase,
		SignerAddress: l.signerAddr,
		Context:       credContext,
	}
	if err := l.store.Put(linked); err != nil {
		// The credential is valid even if caching failed; next link
		// will just cost another signature.
		l.log.Warnf("cache credentials for %s: %v", l.signerAddr, err)
	}

	l.log.Infof("credentials linked for %s context=%s", l.signerAddr, credContext)
	return linked, nil
}
