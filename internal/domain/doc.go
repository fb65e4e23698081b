// Package domain contains the domain model for the identity control plane.
//
// This package is the CORE of the hexagonal architecture - it defines business
// entities and value objects with ZERO dependencies on external frameworks,
// SDKs, or infrastructure.
//
// Hexagonal Architecture Boundaries:
//   - Domain NEVER imports from: internal/ports, internal/catalog, internal/server,
//     internal/agent
//   - Domain ONLY imports from: standard library, other domain types, and
//     github.com/spiffe/go-spiffe/v2/spiffeid — the one sanctioned SDK
//     dependency, used by ParseTrustDomain/ParseSPIFFEID to validate the
//     SPIFFE ID grammar instead of duplicating it by hand
//   - Domain exposes: value objects, entities, domain errors
//   - Domain does NOT: perform I/O, call external APIs, depend on frameworks
//
// Files and types
// -----------------------
//   - spiffeid.go     — SPIFFEID: trust-domain + path identity value object.
//   - trust_domain.go — TrustDomain: administrative namespace for identities.
//   - selector.go, selector_type.go, selector_set.go — the closed selector
//     enums (node vs. workload) and the canonical "<TYPE>:<VALUE>" string form.
//   - registration_entry.go — RegistrationEntry and its AttestationConfig
//     tagged variant (Node | Workload).
//   - jwk.go — JWK / JWKSet, the public-key wire format of a trust bundle.
//   - jwtsvid.go — the JOSE compact JWT-SVID header/claims/token types.
//   - trustbundle.go — TrustBundle, the per-trust-domain published key material.
//   - keyslots.go — the Key Manager's three-slot rotation state.
//   - workload.go — Workload: a process under attestation (pid/uid/gid/path).
//   - errors.go — the layered error taxonomy, one sentinel group per component.
package domain
