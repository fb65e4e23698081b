// Package ports defines the interfaces that decouple the core algorithmic
// packages (keymanager, svid, matcher, server, agent) from their concrete
// backends.
//
// Purpose
// -------
// Ports are the boundary between orchestration code and infrastructure.
// Interfaces represent the contracts that adapters must satisfy; concrete
// implementations live in internal/catalog, internal/keystore,
// internal/nodeattestor/psat, and internal/workloadattestor/k8s.
//
// Files and responsibilities
// --------------------------
//   - catalog.go   — Catalog: entries, trust-bundle (JWK) store, selectors.
//   - keystore.go  — KeyStore: private-key custody keyed by opaque id.
//   - attestors.go — NodeAttestor (PSAT) and WorkloadAttestor (K8s).
//   - transport.go — ServerClient and PeerCredResolver, the Unix
//     socket peer-PID contract the Agent Workload-API server requires.
//
// Each interface includes an "Error Contract" comment describing the
// sentinel errors (defined in internal/domain) implementations return.
package ports
