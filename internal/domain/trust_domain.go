package domain

import (
	"fmt"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
)

// TrustDomain is the administrative namespace for identities issued by the
// Server, e.g. "edge.example.org".
type TrustDomain struct {
	name string
}

// NewTrustDomainFromName creates a TrustDomain from an already-validated
// name. Used internally once ParseTrustDomain (or the Server's own
// configured trust domain, validated once at startup) has established the
// name is well-formed.
func NewTrustDomainFromName(name string) *TrustDomain {
	return &TrustDomain{name: name}
}

// ParseTrustDomain validates name against the SPIFFE trust domain grammar,
// delegating to the go-spiffe SDK instead of duplicating its DNS-label
// validation.
func ParseTrustDomain(name string) (*TrustDomain, error) {
	td, err := spiffeid.TrustDomainFromString(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTrustDomain, err)
	}
	return &TrustDomain{name: td.Name()}, nil
}

// String returns the trust domain as a string
func (td *TrustDomain) String() string {
	return td.name
}

// Equals checks if two trust domains are equal (case-sensitive)
func (td *TrustDomain) Equals(other *TrustDomain) bool {
	if other == nil {
		return false
	}
	return td.name == other.name
}
