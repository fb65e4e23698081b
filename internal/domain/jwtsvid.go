package domain

// KeyType is the closed enum of signing-key algorithms. Only ES256 is
// implemented; RSA and other curves are not planned.
type KeyType string

const KeyTypeES256 KeyType = "ES256"

// JWTType is the JOSE "typ"-equivalent header field; always JWT in this
// system (JOSE is reserved but unused).
type JWTType string

const (
	JWTTypeJWT  JWTType = "JWT"
	JWTTypeJOSE JWTType = "JOSE"
)

// JWTHeader is the first compact segment of a JWT-SVID.
type JWTHeader struct {
	Algorithm KeyType `json:"algorithm"`
	KeyID     string  `json:"key_id"`
	JWTType   JWTType `json:"jwt_type"`
}

// JWTClaims is the second compact segment of a JWT-SVID.
type JWTClaims struct {
	Subject        string   `json:"subject"`
	Audience       []string `json:"audience"`
	Expiry         int64    `json:"expiry"`
	IssuedAt       int64    `json:"issued_at"`
	OtherIdentities []string `json:"other_identities"`
}

// JWTSVIDCompact is the minted token plus the metadata the caller needs
// without re-parsing the compact form.
type JWTSVIDCompact struct {
	Token    string `json:"token"`
	SPIFFEID string `json:"spiffe_id"`
	Expiry   int64  `json:"expiry"`
	IssuedAt int64  `json:"issued_at"`
}

// JWTSVID is the parsed, validated form returned by the Validator.
type JWTSVID struct {
	Header JWTHeader
	Claims JWTClaims
}
