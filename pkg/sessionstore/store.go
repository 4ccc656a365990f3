// Package sessionstore defines the key-value store backing session
// state (exchange credentials, smart-wallet provisioning flags). Keys
// are namespaced "<store-name>:<address-lowercased>"; values are JSON
// documents carrying their own write timestamp so callers can apply
// TTL semantics uniformly across backends.
//
// Writes are last-writer-wins; a single active session is assumed, so
// no concurrent-writer detection is provided.
package sessionstore

import (
	"fmt"
	"strings"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = fmt.Errorf("sessionstore: closed")

// Store is the minimal persistence contract. Get returns found=false
// for missing keys rather than an error.
type Store interface {
	Get(key string) (value []byte, found bool, err error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Key builds the canonical namespaced key for an address-scoped record.
func Key(storeName, address string) string {
	return storeName + ":" + strings.ToLower(address)
}

// MemoryStore is the in-process implementation used by tests and
// short-lived sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
