// Package psat implements the PSAT node attestor: validate a projected
// service-account token via a TokenReview, then harvest pod/node facts
// from the cluster API into the Agent's node selector set.
package psat

import (
	"context"
	"fmt"

	authenticationv1 "k8s.io/api/authentication/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/sufield/edgespiffe/internal/domain"
)

// extraPodNameKey is the TokenReview status.user.extra key carrying the
// projected-token's pod name.
const extraPodNameKey = "authentication.kubernetes.io/pod-name"

// Config is the PSAT node attestor's static configuration, one per Server
// process: the validation policy applied to agents' projected tokens.
type Config struct {
	// Audience is the single configured audience requested of the
	// TokenReview API.
	Audience string
	// Namespace is the namespace Agent pods are expected to run in.
	Namespace string
	// ServiceAccountAllowList gates which service accounts may attest as
	// an Agent.
	ServiceAccountAllowList map[string]struct{}
	// ClusterName is embedded verbatim into the CLUSTER node selector.
	ClusterName string
	// AllowedNodeLabelKeys / AllowedPodLabelKeys: unlisted label keys are
	// discarded rather than turned into selectors.
	AllowedNodeLabelKeys map[string]struct{}
	AllowedPodLabelKeys  map[string]struct{}
}

// NodeAttestor validates a PSAT against a Kubernetes API server.
type NodeAttestor struct {
	cfg    Config
	client kubernetes.Interface
}

// New returns a NodeAttestor using client for TokenReview/Pod/Node lookups.
func New(cfg Config, client kubernetes.Interface) *NodeAttestor {
	return &NodeAttestor{cfg: cfg, client: client}
}

// Attest validates attestationToken and returns the Agent's node selector
// set.
func (a *NodeAttestor) Attest(ctx context.Context, attestationToken string) ([]string, error) {
	status, err := a.reviewToken(ctx, attestationToken)
	if err != nil {
		return nil, err
	}

	podName, err := extractPodName(status)
	if err != nil {
		return nil, err
	}

	pod, err := a.client.CoreV1().Pods(a.cfg.Namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGettingPodInfo, err)
	}
	if pod.Spec.ServiceAccountName == "" {
		return nil, fmt.Errorf("%w: service_account_name", domain.ErrMissingField)
	}
	if _, allowed := a.cfg.ServiceAccountAllowList[pod.Spec.ServiceAccountName]; !allowed {
		return nil, fmt.Errorf("%w: %s", domain.ErrServiceAccountNotAllowed, pod.Spec.ServiceAccountName)
	}
	if pod.Spec.NodeName == "" {
		return nil, fmt.Errorf("%w: node_name", domain.ErrMissingField)
	}

	node, err := a.client.CoreV1().Nodes().Get(ctx, pod.Spec.NodeName, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGettingNodeInfo, err)
	}

	return a.buildSelectors(pod, node)
}

func (a *NodeAttestor) reviewToken(ctx context.Context, token string) (*authenticationv1.TokenReviewStatus, error) {
	review := &authenticationv1.TokenReview{
		Spec: authenticationv1.TokenReviewSpec{
			Token:     token,
			Audiences: []string{a.cfg.Audience},
		},
	}
	resp, err := a.client.AuthenticationV1().TokenReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrK8sTokenReviewAPI, err)
	}
	if !resp.Status.Authenticated {
		if resp.Status.Error != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidToken, resp.Status.Error)
		}
		return nil, fmt.Errorf("%w", domain.ErrInvalidToken)
	}
	return &resp.Status, nil
}

func extractPodName(status *authenticationv1.TokenReviewStatus) (string, error) {
	if status.User.Extra == nil {
		return "", fmt.Errorf("%w: user.extra", domain.ErrMissingField)
	}
	values, ok := status.User.Extra[extraPodNameKey]
	if !ok || len(values) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingField, extraPodNameKey)
	}
	return values[0], nil
}

func (a *NodeAttestor) buildSelectors(pod *corev1.Pod, node *corev1.Node) ([]string, error) {
	if pod.Status.HostIP == "" {
		return nil, fmt.Errorf("%w: host_ip", domain.ErrMissingField)
	}
	if pod.UID == "" {
		return nil, fmt.Errorf("%w: pod_uid", domain.ErrMissingField)
	}
	if pod.Namespace == "" {
		return nil, fmt.Errorf("%w: namespace", domain.ErrMissingField)
	}
	if node.UID == "" {
		return nil, fmt.Errorf("%w: node_uid", domain.ErrMissingField)
	}

	set := domain.NewSelectorSet()
	add := func(key domain.NodeSelectorKey, value string) error {
		sel, err := domain.NewNodeSelector(key, value)
		if err != nil {
			return err
		}
		set.Add(sel.String())
		return nil
	}

	if err := add(domain.NodeSelectorCluster, a.cfg.ClusterName); err != nil {
		return nil, err
	}
	if err := add(domain.NodeSelectorAgentNamespace, pod.Namespace); err != nil {
		return nil, err
	}
	if err := add(domain.NodeSelectorAgentServiceAccount, pod.Spec.ServiceAccountName); err != nil {
		return nil, err
	}
	if err := add(domain.NodeSelectorAgentPodName, pod.Name); err != nil {
		return nil, err
	}
	if err := add(domain.NodeSelectorAgentPodUID, string(pod.UID)); err != nil {
		return nil, err
	}
	if err := add(domain.NodeSelectorAgentNodeIP, pod.Status.HostIP); err != nil {
		return nil, err
	}
	if err := add(domain.NodeSelectorAgentNodeName, node.Name); err != nil {
		return nil, err
	}
	if err := add(domain.NodeSelectorAgentNodeUID, string(node.UID)); err != nil {
		return nil, err
	}

	for k, v := range pod.Labels {
		if _, allowed := a.cfg.AllowedPodLabelKeys[k]; !allowed {
			continue
		}
		sel, err := domain.NewNodeMapSelector(domain.NodeSelectorAgentPodLabels, k, v)
		if err != nil {
			return nil, err
		}
		set.Add(sel.String())
	}
	for k, v := range node.Labels {
		if _, allowed := a.cfg.AllowedNodeLabelKeys[k]; !allowed {
			continue
		}
		sel, err := domain.NewNodeMapSelector(domain.NodeSelectorAgentNodeLabels, k, v)
		if err != nil {
			return nil, err
		}
		set.Add(sel.String())
	}

	return set.Strings(), nil
}
