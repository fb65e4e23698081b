// Package keystore implements the Key Store: pure private-key
// custody keyed by opaque id. InMemory is the default backend used by tests
// and by single-process deployments that don't need rotated keys to survive
// a restart; diskstore.KeyStore (in the diskstore subpackage) is the production
// backend.
package keystore

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/sufield/edgespiffe/internal/domain"
)

// InMemory is a KeyStore backed by a map guarded by a RWMutex, matching the
// Catalog's own in-memory locking discipline: exclusive for
// mutations (create/delete), shared for reads (sign/get public key).
type InMemory struct {
	mu   sync.RWMutex
	keys map[string]*ecdsa.PrivateKey
}

// NewInMemory returns an empty in-memory key store.
func NewInMemory() *InMemory {
	return &InMemory{keys: make(map[string]*ecdsa.PrivateKey)}
}

// CreateKeyPairIfNotExists is idempotent: an existing id returns its current
// public key unchanged, never regenerating it.
func (s *InMemory) CreateKeyPairIfNotExists(_ context.Context, id string, keyType domain.KeyType) (*ecdsa.PublicKey, error) {
	if keyType != domain.KeyTypeES256 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedKeyType, keyType)
	}

	s.mu.RLock()
	if existing, ok := s.keys[id]; ok {
		pub := existing.PublicKey
		s.mu.RUnlock()
		return &pub, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check: another caller may have created it while we upgraded the lock.
	if existing, ok := s.keys[id]; ok {
		pub := existing.PublicKey
		return &pub, nil
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCryptoBackend, err)
	}
	s.keys[id] = priv
	pub := priv.PublicKey
	return &pub, nil
}

// Sign computes an ECDSA signature over digest (already SHA-256) and
// returns its ASN.1/DER encoding.
func (s *InMemory) Sign(_ context.Context, id string, keyType domain.KeyType, digest []byte) ([]byte, error) {
	if keyType != domain.KeyTypeES256 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedKeyType, keyType)
	}
	s.mu.RLock()
	priv, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrKeyNotFound, id)
	}
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCryptoBackend, err)
	}
	return sig, nil
}

// GetPublicKey returns the public half of a stored key pair.
func (s *InMemory) GetPublicKey(_ context.Context, id string) (*ecdsa.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	priv, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrKeyNotFound, id)
	}
	pub := priv.PublicKey
	return &pub, nil
}

// DeleteKeyPair removes a key pair. Callers must ensure no token signed
// under id remains unexpired before calling this; DeleteKeyPair itself
// does not check that.
func (s *InMemory) DeleteKeyPair(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, id)
	}
	delete(s.keys, id)
	return nil
}

// digestLen documents the expected input size for Sign, matching the
// SHA-256 digest the SVID Factory computes before calling in.
const digestLen = sha256.Size
