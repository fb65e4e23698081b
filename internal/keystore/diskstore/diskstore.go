// Package diskstore is the production Key Store backend: one PKCS#8 PEM
// file per key id under a configured base path. Key generation and DER
// signing use crypto/ecdsa; writes are atomic via write-then-rename.
package diskstore

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sufield/edgespiffe/internal/domain"
)

const pemBlockType = "PRIVATE KEY"

// KeyStore stores one PKCS8-PEM file per key id under keyBasePath.
type KeyStore struct {
	keyBasePath string
}

// New returns a KeyStore rooted at keyBasePath. The directory must already
// exist and be writable only by the server process.
func New(keyBasePath string) *KeyStore {
	return &KeyStore{keyBasePath: keyBasePath}
}

func (s *KeyStore) pathFor(id string) string {
	// path.Clean(id) — id is a server-generated uuid, never user input, but
	// we still refuse to let it escape keyBasePath.
	return filepath.Join(s.keyBasePath, filepath.Clean(string(filepath.Separator)+id))
}

// CreateKeyPairIfNotExists loads the key at id if present, else generates
// and persists a new P-256 key pair.
func (s *KeyStore) CreateKeyPairIfNotExists(_ context.Context, id string, keyType domain.KeyType) (*ecdsa.PublicKey, error) {
	if keyType != domain.KeyTypeES256 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedKeyType, keyType)
	}

	path := s.pathFor(id)
	if priv, err := s.load(path); err == nil {
		pub := priv.PublicKey
		return &pub, nil
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCryptoBackend, err)
	}
	if err := s.writeAtomic(path, priv); err != nil {
		return nil, err
	}

	loaded, err := s.load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: key written but could not be read back: %w", domain.ErrFileRead, err)
	}
	pub := loaded.PublicKey
	return &pub, nil
}

// Sign loads the private key at id and signs digest.
func (s *KeyStore) Sign(_ context.Context, id string, keyType domain.KeyType, digest []byte) ([]byte, error) {
	if keyType != domain.KeyTypeES256 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedKeyType, keyType)
	}
	priv, err := s.load(s.pathFor(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrKeyNotFound, id, err)
	}
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCryptoBackend, err)
	}
	return sig, nil
}

// GetPublicKey loads the key at id and returns its public half.
func (s *KeyStore) GetPublicKey(_ context.Context, id string) (*ecdsa.PublicKey, error) {
	priv, err := s.load(s.pathFor(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrKeyNotFound, id, err)
	}
	pub := priv.PublicKey
	return &pub, nil
}

// DeleteKeyPair removes the PEM file for id. This is the only place a
// rotated-out private key's on-disk material is destroyed: rotated keys
// are never persisted beyond their active window.
func (s *KeyStore) DeleteKeyPair(_ context.Context, id string) error {
	path := s.pathFor(id)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, id)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFileDelete, err)
	}
	return nil
}

func (s *KeyStore) load(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is derived from a server-generated key id, not external input
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFileRead, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: not a PEM file", domain.ErrFileRead)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFileRead, err)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ECDSA key", domain.ErrFileRead)
	}
	return priv, nil
}

// writeAtomic PKCS8-PEM encodes priv and writes it to path by writing a
// temp file in the same directory, then renaming over it, so a crash never
// leaves a partially written key file.
func (s *KeyStore) writeAtomic(path string, priv *ecdsa.PrivateKey) error {
	if err := os.MkdirAll(s.keyBasePath, 0o700); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFileWrite, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFileWrite, err)
	}
	block := &pem.Block{Type: pemBlockType, Bytes: der}

	tmp, err := os.CreateTemp(s.keyBasePath, ".key-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFileWrite, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if err := pem.Encode(tmp, block); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", domain.ErrFileWrite, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", domain.ErrFileWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFileWrite, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFileWrite, err)
	}
	return nil
}
