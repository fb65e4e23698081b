package ports

import "context"

// NodeAttestor verifies a Kubernetes projected service-account token
// against the cluster API and harvests the Agent's node selector set.
//
// Error Contract:
//   - Attest returns domain.ErrInvalidToken if status.authenticated is false.
//   - Returns domain.ErrMissingField for absent status/user/extra fields.
//   - Returns domain.ErrServiceAccountNotAllowed if the pod's service
//     account is not in the configured allow-list.
//   - Returns domain.ErrGettingPodInfo / domain.ErrGettingNodeInfo on
//     cluster API failures.
type NodeAttestor interface {
	Attest(ctx context.Context, attestationToken string) (selectors []string, err error)
}

// WorkloadAttestor resolves a caller PID into a workload selector set by
// querying the cluster for the pod/container that owns it.
//
// Error Contract:
//   - Returns domain.ErrNoPIDCgroup if no cgroup entry exists for pid.
//   - Returns domain.ErrExtractPodUIDAndContainer if the cgroup path does
//     not contain a recognizable pod UID / container id.
//   - Returns domain.ErrListingPods / domain.ErrContainerNotFoundInPod on
//     cluster API mismatches.
type WorkloadAttestor interface {
	Attest(ctx context.Context, pid int) (selectors []string, err error)
}
