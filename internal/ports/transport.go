package ports

import (
	"context"
	"net"

	"github.com/sufield/edgespiffe/internal/domain"
)

// ServerClient is the Agent's view of the Server API:
// calling create_workload_jwts and get_trust_bundle over the Server↔Agent
// HTTP surface, plus reading the node's attestation token from disk.
//
// Error Contract:
//   - CreateWorkloadJWTs returns domain.ErrCreateJWTSVIDs on transport or
//     4xx/5xx failure (403 specifically indicates agent attestation failure).
//   - GetTrustBundle returns domain.ErrTrustBundleResponse on failure.
type ServerClient interface {
	CreateWorkloadJWTs(ctx context.Context, attestationToken string, workloadSPIFFEID string, audiences, selectors []string) ([]domain.JWTSVIDCompact, error)
	GetTrustBundle(ctx context.Context, jwtKeys, x509CAs bool) (domain.TrustBundle, error)
	// AttestationToken reads the node's projected service-account token from
	// its configured path (default /var/run/secrets/tokens/iotedge-spiffe-agent).
	AttestationToken() (string, error)
}

// PeerCredResolver resolves the PID of the process on the other end of a
// Unix domain socket connection. The Agent Workload-API server takes the
// caller's PID only from this resolver. On platforms where the peer
// credential is unavailable, the server still starts and every resolution
// fails with domain.ErrUdsClientPID.
//
// Error Contract:
//   - Returns domain.ErrUdsClientPID if the credential cannot be obtained.
//   - Returns domain.ErrNegativePID if the resolved PID is <= 0.
type PeerCredResolver interface {
	ResolvePID(conn net.Conn) (pid int, err error)
}
