// Package svid implements the JWT-SVID factory and validator: minting
// compact tokens signed with the current key slot, and verifying tokens
// against a trust bundle.
package svid

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/sufield/edgespiffe/internal/clock"
	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/ports"
)

var b64 = base64.RawURLEncoding

// KeyManager is the subset of keymanager.KeyManager the Factory needs: a
// shared-lock snapshot of the current signing slot and its key type.
type KeyManager interface {
	Snapshot() domain.KeySlots
	KeyType() domain.KeyType
}

// Factory mints JWT-SVIDs using the Key Manager's current slot.
type Factory struct {
	keyManager  KeyManager
	keyStore    ports.KeyStore
	trustDomain string
	jwtTTL      int64
	now         clock.Source
}

// NewFactory returns a Factory for the given trust domain. jwtTTL is the
// configured JWT-SVID time-to-live, in seconds.
func NewFactory(km KeyManager, keyStore ports.KeyStore, trustDomain string, jwtTTL int64, now clock.Source) *Factory {
	return &Factory{keyManager: km, keyStore: keyStore, trustDomain: trustDomain, jwtTTL: jwtTTL, now: clock.NewOrDefault(now)}
}

// Params is the input to CreateJWTSVID.
type Params struct {
	SPIFFEIDPath    string
	Audiences       []string
	OtherIdentities []string
}

// CreateJWTSVID builds and signs a JOSE compact JWT-SVID. The saturation
// rule guarantees expiry <= the signing key's expiry.
func (f *Factory) CreateJWTSVID(ctx context.Context, params Params) (domain.JWTSVIDCompact, error) {
	return f.createJWTSVID(ctx, params, f.now())
}

// createJWTSVID is the testable core: issuedAt is injected rather than
// read from the wall clock.
func (f *Factory) createJWTSVID(ctx context.Context, params Params, issuedAt int64) (domain.JWTSVIDCompact, error) {
	slots := f.keyManager.Snapshot()
	key := slots.Current

	expiry := issuedAt + f.jwtTTL
	if expiry > key.Expiry {
		expiry = key.Expiry
	}

	keyType := f.keyManager.KeyType()
	if keyType != domain.KeyTypeES256 {
		return domain.JWTSVIDCompact{}, fmt.Errorf("%w: %s", domain.ErrUnimplementedKeyType, keyType)
	}

	header := domain.JWTHeader{Algorithm: keyType, KeyID: key.ID, JWTType: domain.JWTTypeJWT}
	spiffeID := "spiffe://" + f.trustDomain + "/" + params.SPIFFEIDPath
	claims := domain.JWTClaims{
		Subject:         spiffeID,
		Audience:        params.Audiences,
		Expiry:          expiry,
		IssuedAt:        issuedAt,
		OtherIdentities: params.OtherIdentities,
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return domain.JWTSVIDCompact{}, fmt.Errorf("%w: %w", domain.ErrJSONSerializing, err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return domain.JWTSVIDCompact{}, fmt.Errorf("%w: %w", domain.ErrJSONSerializing, err)
	}

	headerB64 := b64.EncodeToString(headerJSON)
	claimsB64 := b64.EncodeToString(claimsJSON)
	signingInput := headerB64 + "." + claimsB64
	digest := sha256.Sum256([]byte(signingInput))

	sigDER, err := f.keyStore.Sign(ctx, key.ID, keyType, digest[:])
	if err != nil {
		return domain.JWTSVIDCompact{}, fmt.Errorf("%w: %w", domain.ErrSigningDigest, err)
	}
	sigB64 := b64.EncodeToString(sigDER)

	return domain.JWTSVIDCompact{
		Token:    signingInput + "." + sigB64,
		SPIFFEID: spiffeID,
		Expiry:   expiry,
		IssuedAt: issuedAt,
	}, nil
}
