// Package jwkcodec marshals ECDSA public keys to and from the domain.JWK
// wire format using go-jose's JSON Web Key encoder, instead of hand-rolling
// curve-aware fixed-width base64url coordinate encoding.
package jwkcodec

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	josejwk "github.com/go-jose/go-jose/v4"

	"github.com/sufield/edgespiffe/internal/domain"
)

// rawJWK mirrors the subset of RFC 7517 fields go-jose emits for an EC key;
// used only to lift the x/y coordinates out of go-jose's encoding.
type rawJWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// Encode builds a domain.JWK from an ECDSA P-256 public key, a key id and a
// use tag (domain.JWKUseJWTSVID or domain.JWKUseX509SVID). Coordinate
// encoding is delegated to go-jose's JSONWebKey marshaler.
func Encode(pub *ecdsa.PublicKey, kid, use string) (domain.JWK, error) {
	if pub == nil {
		return domain.JWK{}, fmt.Errorf("jwkcodec: nil public key")
	}
	jwk := josejwk.JSONWebKey{Key: pub, KeyID: kid, Use: use}
	b, err := jwk.MarshalJSON()
	if err != nil {
		return domain.JWK{}, fmt.Errorf("jwkcodec: marshal jwk: %w", err)
	}
	var raw rawJWK
	if err := json.Unmarshal(b, &raw); err != nil {
		return domain.JWK{}, fmt.Errorf("jwkcodec: unmarshal jwk coordinates: %w", err)
	}
	return domain.JWK{
		Kty: raw.Kty,
		Crv: raw.Crv,
		X:   raw.X,
		Y:   raw.Y,
		Kid: kid,
		Use: use,
	}, nil
}

// Decode reconstructs an ECDSA public key from a domain.JWK via go-jose's
// JSONWebKey unmarshaler, which validates the point is on the named curve.
func Decode(jwk domain.JWK) (*ecdsa.PublicKey, error) {
	raw := rawJWK{Kty: jwk.Kty, Crv: jwk.Crv, X: jwk.X, Y: jwk.Y}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("jwkcodec: marshal jwk for decode: %w", err)
	}
	var parsed josejwk.JSONWebKey
	if err := parsed.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("jwkcodec: invalid jwk: %w", err)
	}
	pub, ok := parsed.Key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("jwkcodec: jwk does not encode an ECDSA public key")
	}
	return pub, nil
}
