// Package k8sclient builds the kubernetes.Interface client shared by the
// PSAT Node Attestor and the K8s Workload Attestor: in-cluster
// config when running as a pod, falling back to a local kubeconfig for
// out-of-cluster development and testing.
package k8sclient

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// New returns a kubernetes.Interface using in-cluster config, or the
// kubeconfig at kubeconfigPath (or $KUBECONFIG, or ~/.kube/config) when
// in-cluster config is unavailable.
func New(kubeconfigPath string) (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		cfg, err = buildOutOfClusterConfig(kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("k8sclient: %w", err)
		}
	}

	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("k8sclient: building clientset: %w", err)
	}
	return client, nil
}

func buildOutOfClusterConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		kubeconfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeconfigPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory for default kubeconfig: %w", err)
		}
		kubeconfigPath = filepath.Join(home, ".kube", "config")
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
}
