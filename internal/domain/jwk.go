package domain

// JWK is the public-key wire format published in a trust bundle. Field
// names match RFC 7517 plus the SPIFFE extensions on JWKSet below.
//
// Construction and EC coordinate marshaling live in internal/jwkcodec,
// which depends on go-jose; this struct itself stays dependency-free so
// the domain layer never imports go-jose.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Kid string `json:"kid"`
	Use string `json:"use"`
}

// Use values for a JWK.
const (
	JWKUseJWTSVID  = "jwt-svid"
	JWKUseX509SVID = "x509-svid"
)

// JWKSet is {keys, spiffe_refresh_hint, spiffe_sequence_number}. The
// sequence number is the Catalog's per-trust-domain JWK-store version;
// the refresh hint is the configured number of seconds between Agent
// trust-bundle pulls.
type JWKSet struct {
	Keys           []JWK `json:"keys"`
	RefreshHint    int64 `json:"spiffe_refresh_hint"`
	SequenceNumber uint64 `json:"spiffe_sequence_number"`
}
