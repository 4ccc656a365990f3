// Package creds acquires and caches the exchange API credential triple
// for a signer, separated by funding context (direct wallet vs smart
// wallet).
package creds

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/betkit/gopoly/internal/domain"
	"github.com/betkit/gopoly/pkg/sessionstore"
)

// credsStoreName namespaces persisted credentials.
const credsStoreName = "poly-credentials"

// DefaultTTL is how long a cached credential is served after write.
const DefaultTTL = 7 * 24 * time.Hour

// record is the persisted envelope. One record per signer; the context
// field inside decides which funding mode it belongs to, so a
// context switch naturally replaces the other context's credential.
type record struct {
	domain.Credentials
	Timestamp int64 `json:"timestamp"`
}

// Store caches credentials keyed by (signer, context) with a TTL.
// Reads past the TTL are misses, not stale hits.
type Store struct {
	backend sessionstore.Store
	ttl     time.Duration
	now     func() time.Time
}

// NewStore wraps a session store. ttl <= 0 selects DefaultTTL.
func NewStore(backend sessionstore.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{backend: backend, ttl: ttl, now: time.Now}
}

func (s *Store) key(signer string) string {
	return sessionstore.Key(credsStoreName, signer)
}

// Get returns the cached credential for (signer, context), or a miss
// when absent, expired or stored under the other context.
func (s *Store) Get(signer string, context domain.CredentialContext) (*domain.Credentials, bool) {
	raw, ok, err := s.backend.Get(s.key(signer))
	if err != nil || !ok {
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	if rec.Context != context {
		return nil, false
	}
	if s.now().Unix()-rec.Timestamp > int64(s.ttl.Seconds()) {
		return nil, false
	}
	if !strings.EqualFold(rec.SignerAddress, signer) {
		return nil, false
	}
	return &rec.Credentials, true
}

// Put stores the credential, stamping the write time. Any credential
// previously stored for the same signer, regardless of context, is
// replaced.
func (s *Store) Put(creds *domain.Credentials) error {
	rec := record{Credentials: *creds, Timestamp: s.now().Unix()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.backend.Put(s.key(creds.SignerAddress), raw)
}

// Invalidate drops the signer's credential in every context.
func (s *Store) Invalidate(signer string) error {
	return s.backend.Delete(s.key(signer))
}

// InvalidateContext drops the signer's credential only when it is
// stored under the given context.
func (s *Store) InvalidateContext(signer string, context domain.CredentialContext) error {
	raw, ok, err := s.backend.Get(s.key(signer))
	if err != nil || !ok {
		return err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return s.backend.Delete(s.key(signer))
	}
	if rec.Context != context {
		return nil
	}
	return s.backend.Delete(s.key(signer))
}
