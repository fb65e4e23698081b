package domain

// TrustBundle is a trust domain's published public keys plus freshness
// metadata. The X.509 path is reserved and always empty in this
// implementation (certificate SVID issuance is a non-goal).
type TrustBundle struct {
	TrustDomain string `json:"trust_domain"`
	JWTKeySet   JWKSet `json:"jwt_key_set"`
	X509KeySet  JWKSet `json:"x509_key_set"`
}
