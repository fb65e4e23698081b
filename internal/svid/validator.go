package svid

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sufield/edgespiffe/internal/clock"
	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/jwkcodec"
)

// Validator decodes and verifies a compact JWT-SVID against a supplied
// trust bundle. Stateless: every call is independent.
type Validator struct {
	now clock.Source
}

// NewValidator returns a Validator. now defaults to the wall clock.
func NewValidator(now clock.Source) *Validator {
	return &Validator{now: clock.NewOrDefault(now)}
}

// Validate decodes compactToken, verifies its signature against bundle and
// checks expiry/audience/jwt_type. The expiry comparison is strict: a
// token is rejected only when its expiry is strictly before now, so
// expiry == now still validates.
func (v *Validator) Validate(compactToken string, bundle domain.TrustBundle, expectedAudience string) (domain.JWTSVID, error) {
	return v.validate(compactToken, bundle, expectedAudience, v.now())
}

func (v *Validator) validate(compactToken string, bundle domain.TrustBundle, expectedAudience string, now int64) (domain.JWTSVID, error) {
	parts := strings.Split(compactToken, ".")
	if len(parts) != 3 {
		return domain.JWTSVID{}, fmt.Errorf("%w: got %d parts", domain.ErrInvalidJoseEncoding, len(parts))
	}

	headerJSON, err := b64.DecodeString(parts[0])
	if err != nil {
		return domain.JWTSVID{}, fmt.Errorf("%w: %w", domain.ErrInvalidBase64, err)
	}
	claimsJSON, err := b64.DecodeString(parts[1])
	if err != nil {
		return domain.JWTSVID{}, fmt.Errorf("%w: %w", domain.ErrInvalidBase64, err)
	}
	sigDER, err := b64.DecodeString(parts[2])
	if err != nil {
		return domain.JWTSVID{}, fmt.Errorf("%w: %w", domain.ErrInvalidBase64, err)
	}

	var header domain.JWTHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return domain.JWTSVID{}, fmt.Errorf("%w: %w", domain.ErrDeserializeJSON, err)
	}
	var claims domain.JWTClaims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return domain.JWTSVID{}, fmt.Errorf("%w: %w", domain.ErrDeserializeJSON, err)
	}

	if header.JWTType != domain.JWTTypeJWT {
		return domain.JWTSVID{}, fmt.Errorf("%w: got %s", domain.ErrInvalidJWTType, header.JWTType)
	}

	if claims.Expiry < now {
		return domain.JWTSVID{}, fmt.Errorf("%w: expiry=%d current=%d", domain.ErrExpiredToken, claims.Expiry, now)
	}

	if !contains(claims.Audience, expectedAudience) {
		return domain.JWTSVID{}, fmt.Errorf("%w: %s", domain.ErrInvalidAudience, expectedAudience)
	}

	jwk, ok := findKey(bundle.JWTKeySet.Keys, header.KeyID)
	if !ok {
		return domain.JWTSVID{}, fmt.Errorf("%w: %s", domain.ErrPublicKeyNotInTrustBundle, header.KeyID)
	}

	switch header.Algorithm {
	case domain.KeyTypeES256:
		pub, err := jwkcodec.Decode(jwk)
		if err != nil {
			return domain.JWTSVID{}, fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
		}
		signingInput := parts[0] + "." + parts[1]
		digest := sha256.Sum256([]byte(signingInput))
		if !verifyECDSA(pub, digest[:], sigDER) {
			return domain.JWTSVID{}, fmt.Errorf("%w", domain.ErrInvalidSignature)
		}
	default:
		return domain.JWTSVID{}, fmt.Errorf("%w: %s", domain.ErrInvalidAlgorithm, header.Algorithm)
	}

	return domain.JWTSVID{Header: header, Claims: claims}, nil
}

func verifyECDSA(pub *ecdsa.PublicKey, digest, sigDER []byte) bool {
	return ecdsa.VerifyASN1(pub, digest, sigDER)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func findKey(keys []domain.JWK, kid string) (domain.JWK, bool) {
	for _, k := range keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return domain.JWK{}, false
}
