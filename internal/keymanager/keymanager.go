// Package keymanager implements the three-slot key rotation state machine
// for the trust domain's signing keys: previous/current/next slots, with a
// prepare threshold and a promote threshold both derived from the
// configured key TTL.
package keymanager

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/sufield/edgespiffe/internal/assert"
	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/jwkcodec"
	"github.com/sufield/edgespiffe/internal/ports"
)

// Divisors applied to KeyTTL to derive the prepare/promote thresholds:
// a higher divisor yields a smaller margin before the threshold is
// crossed.
const (
	prepareMargin = 2
	promoteMargin = 6
)

// KeyManager owns the (previous, current, next) slots cell and mediates
// every read/write against it: exclusive lock for the entirety of
// RotatePeriodic, shared lock to snapshot Current for signing.
type KeyManager struct {
	trustDomain string
	catalog     ports.TrustBundleStore
	keyStore    ports.KeyStore
	keyType     domain.KeyType
	keyTTL      int64

	mu    sync.RWMutex
	slots domain.KeySlots
}

// New creates the initial key: one key with expiry now+keyTTL, its private
// half in the KeyStore and its public JWK in the Catalog, placed in
// Current. Slots.Current is never nil after New returns.
func New(ctx context.Context, trustDomain string, catalog ports.TrustBundleStore, keyStore ports.KeyStore, keyType domain.KeyType, keyTTL int64, now int64) (*KeyManager, error) {
	km := &KeyManager{
		trustDomain: trustDomain,
		catalog:     catalog,
		keyStore:    keyStore,
		keyType:     keyType,
		keyTTL:      keyTTL,
	}

	id := uuid.NewString()
	expiry := now + keyTTL
	if err := km.createKeyAndPublish(ctx, id); err != nil {
		return nil, err
	}
	km.slots.Current = &domain.KeySlot{ID: id, Expiry: expiry}
	return km, nil
}

// Snapshot returns a shallow copy of the current slots under a shared lock,
// used by the SVID Factory to pick the signing key without holding the
// lock across the call into the Key Store.
func (km *KeyManager) Snapshot() domain.KeySlots {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.slots
}

// KeyType returns the configured signing key algorithm.
func (km *KeyManager) KeyType() domain.KeyType {
	return km.keyType
}

// RotatePeriodic advances the rotation state machine for the given wall
// time. Idempotent: calling it any number of times between ticks is safe.
func (km *KeyManager) RotatePeriodic(ctx context.Context, now int64) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	prepareThreshold := km.slots.Current.Expiry - km.keyTTL/prepareMargin
	if km.slots.Next == nil && now > prepareThreshold {
		id := uuid.NewString()
		if err := km.createKeyAndPublish(ctx, id); err != nil {
			return err
		}
		km.slots.Next = &domain.KeySlot{ID: id, Expiry: now + km.keyTTL}
	}

	promoteThreshold := km.slots.Current.Expiry - km.keyTTL/promoteMargin
	if now > promoteThreshold {
		if km.slots.Next == nil {
			return fmt.Errorf("%w", domain.ErrNextJwtKeyMissing)
		}
		if km.slots.Previous != nil {
			// The prior rotation did not complete before this one started.
			// Recoverable: evict the stale previous slot before overwriting it.
			log.Printf("keymanager: previous slot still populated (id=%s) at promotion time, evicting", km.slots.Previous.ID)
			if err := km.evict(ctx, km.slots.Previous.ID); err != nil {
				return err
			}
		}
		km.slots.Previous = km.slots.Current
		km.slots.Current = km.slots.Next
		km.slots.Next = nil
		assert.Invariant(km.slots.Current != nil, "current slot must never be nil after a promotion")
	}

	if km.slots.Previous != nil && now > km.slots.Previous.Expiry {
		if err := km.evict(ctx, km.slots.Previous.ID); err != nil {
			return err
		}
		km.slots.Previous = nil
	}

	return nil
}

func (km *KeyManager) evict(ctx context.Context, id string) error {
	if err := km.keyStore.DeleteKeyPair(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeletingPrivateKey, err)
	}
	if err := km.catalog.RemoveJWK(ctx, km.trustDomain, id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeletingPublicKey, err)
	}
	return nil
}

// createKeyAndPublish mints a key pair under id in the Key Store and
// publishes its public JWK to the Catalog (publish-then-use).
func (km *KeyManager) createKeyAndPublish(ctx context.Context, id string) error {
	pub, err := km.keyStore.CreateKeyPairIfNotExists(ctx, id, km.keyType)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCreatingNewKey, err)
	}
	jwk, err := jwkcodec.Encode(pub, id, domain.JWKUseJWTSVID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCreatingNewKey, err)
	}
	if err := km.catalog.AddJWK(ctx, km.trustDomain, jwk); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAddingPublicKey, err)
	}
	return nil
}
