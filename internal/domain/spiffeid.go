package domain

import (
	"fmt"
	"strings"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
)

// SPIFFEID is the pair (trust domain, path) rendered on the wire and in
// JWT-SVID claims as "spiffe://<trust_domain>/<path>".
//
// The schemed form ("spiffe://td/path") is canonical everywhere: the
// wire, JWT-SVID claims, and internal comparisons, which always operate
// on the schemed String(). Caller-supplied workload_spiffe_id filters are
// parsed schemed via ParseSPIFFEID, never hand-split.
type SPIFFEID struct {
	trustDomain *TrustDomain
	path        string
	uri         string
}

// ParseSPIFFEID validates and decomposes a full "spiffe://<trust_domain>/<path>"
// string, delegating grammar validation to the go-spiffe SDK rather than
// hand-rolling the trust-domain/path split. Returns ErrInvalidTrustDomain
// wrapping the SDK's error on any malformed input.
func ParseSPIFFEID(raw string) (*SPIFFEID, error) {
	id, err := spiffeid.FromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTrustDomain, err)
	}
	td := NewTrustDomainFromName(id.TrustDomain().Name())
	return NewSPIFFEID(td, id.Path()), nil
}

// NewSPIFFEID builds a SPIFFEID from an already-validated trust domain and
// a path. Path defaults to "/" if empty.
func NewSPIFFEID(trustDomain *TrustDomain, path string) *SPIFFEID {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &SPIFFEID{
		trustDomain: trustDomain,
		path:        path,
		uri:         "spiffe://" + trustDomain.String() + path,
	}
}

// String returns the schemed URI form, "spiffe://<trust_domain>/<path>".
func (i *SPIFFEID) String() string {
	return i.uri
}

// TrustDomain returns the trust domain component.
func (i *SPIFFEID) TrustDomain() *TrustDomain {
	return i.trustDomain
}

// Path returns the path component, always leading-slash-prefixed.
func (i *SPIFFEID) Path() string {
	return i.path
}

// Equals compares two SPIFFE IDs by their schemed string form.
func (i *SPIFFEID) Equals(other *SPIFFEID) bool {
	if other == nil {
		return false
	}
	return i.uri == other.uri
}

// IsInTrustDomain reports whether this ID belongs to the given trust domain.
func (i *SPIFFEID) IsInTrustDomain(td *TrustDomain) bool {
	return i.trustDomain.Equals(td)
}
