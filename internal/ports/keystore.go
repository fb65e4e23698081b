package ports

import (
	"context"
	"crypto/ecdsa"

	"github.com/sufield/edgespiffe/internal/domain"
)

// KeyStore is pure private-key custody keyed by opaque id.
// All operations may block on I/O and must be called from a
// suspension-friendly context.
//
// Error Contract:
//   - CreateKeyPairIfNotExists returns domain.ErrUnsupportedKeyType for any
//     keyType other than domain.KeyTypeES256.
//   - GetPublicKey / DeleteKeyPair return domain.ErrKeyNotFound if absent.
type KeyStore interface {
	// CreateKeyPairIfNotExists is idempotent: generates a new P-256 key pair
	// when id is absent, returns the existing public key otherwise.
	CreateKeyPairIfNotExists(ctx context.Context, id string, keyType domain.KeyType) (publicKey *ecdsa.PublicKey, err error)
	// Sign computes an ECDSA signature over digest (already SHA-256) and
	// returns its DER encoding.
	Sign(ctx context.Context, id string, keyType domain.KeyType, digest []byte) (signatureDER []byte, err error)
	GetPublicKey(ctx context.Context, id string) (publicKey *ecdsa.PublicKey, err error)
	DeleteKeyPair(ctx context.Context, id string) error
}
