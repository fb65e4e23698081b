package domain

// AttestationKind tags a RegistrationEntry's attestation_config variant.
type AttestationKind string

const (
	AttestationNode     AttestationKind = "node"
	AttestationWorkload AttestationKind = "workload"
)

// AttestationConfig is the tagged variant on a RegistrationEntry: either a
// Node entry (selectors describe the agent's node) or a Workload entry
// (selectors describe the workload, gated by ParentID's Node entry).
type AttestationConfig struct {
	Kind      AttestationKind
	ParentID  string   // set only when Kind == AttestationWorkload
	Selectors []string // canonical "<TYPE>:<VALUE>" selector strings this entry requires
}

// NewNodeAttestation builds a Node-kind AttestationConfig.
func NewNodeAttestation(selectors []string) AttestationConfig {
	return AttestationConfig{Kind: AttestationNode, Selectors: selectors}
}

// NewWorkloadAttestation builds a Workload-kind AttestationConfig gated by parentID.
func NewWorkloadAttestation(parentID string, selectors []string) AttestationConfig {
	return AttestationConfig{Kind: AttestationWorkload, ParentID: parentID, Selectors: selectors}
}

// RegistrationEntry is a catalog record binding a selector predicate to a
// SPIFFE-ID path, scoped by a parent Node entry.
//
// Invariants enforced by callers (Admin API / Catalog), not by this type:
// every Workload entry's ParentID must reference an existing Node entry in
// the same catalog; RevisionNumber is strictly increasing across in-place
// updates.
type RegistrationEntry struct {
	ID              string
	SPIFFEIDPath    string
	OtherIdentities []string
	Attestation     AttestationConfig
	Admin           bool
	ExpiresAt       int64
	DNSNames        []string
	RevisionNumber  uint64
	StoreSVID       bool
}

// IsNode reports whether this entry is a Node attestation entry.
func (e *RegistrationEntry) IsNode() bool {
	return e.Attestation.Kind == AttestationNode
}

// IsWorkload reports whether this entry is a Workload attestation entry.
func (e *RegistrationEntry) IsWorkload() bool {
	return e.Attestation.Kind == AttestationWorkload
}
