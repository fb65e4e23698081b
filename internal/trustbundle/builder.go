// Package trustbundle implements the Trust-Bundle Builder:
// snapshotting the current JWK set into a domain.TrustBundle stamped with
// the configured refresh hint and the Catalog's monotonic version number.
package trustbundle

import (
	"context"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/ports"
)

// Builder reads the JWK store and wraps it into a TrustBundle.
type Builder struct {
	trustDomain string
	catalog     ports.TrustBundleStore
	refreshHint int64
}

// NewBuilder returns a Builder for the given trust domain. refreshHint is
// the configured spiffe_refresh_hint, in seconds.
func NewBuilder(trustDomain string, catalog ports.TrustBundleStore, refreshHint int64) *Builder {
	return &Builder{trustDomain: trustDomain, catalog: catalog, refreshHint: refreshHint}
}

// Build returns a TrustBundle for the given flags. includeJWT pulls the
// current JWK set from the Catalog; includeX509 is reserved and always
// yields an empty key set (certificate SVID issuance is a non-goal).
func (b *Builder) Build(ctx context.Context, includeJWT, includeX509 bool) (domain.TrustBundle, error) {
	bundle := domain.TrustBundle{TrustDomain: b.trustDomain}

	if includeJWT {
		keys, version, err := b.catalog.GetJWK(ctx, b.trustDomain)
		if err != nil {
			return domain.TrustBundle{}, err
		}
		bundle.JWTKeySet = domain.JWKSet{
			Keys:           keys,
			RefreshHint:    b.refreshHint,
			SequenceNumber: version,
		}
	}

	if includeX509 {
		// Reserved: X.509 SVID issuance is unimplemented.
		bundle.X509KeySet = domain.JWKSet{RefreshHint: b.refreshHint}
	}

	return bundle, nil
}
