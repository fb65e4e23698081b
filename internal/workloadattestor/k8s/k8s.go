// Package k8s implements the Kubernetes workload attestor: resolve a
// caller PID's cgroup membership to a pod UID and container id, poll the
// cluster for the owning pod, then harvest its selector set.
package k8s

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/sufield/edgespiffe/internal/domain"
)

// cgroupUIDRegex extracts a pod UID and trailing container id from a cgroup
// path, taken from SPIRE's k8s workload attestor (which vendors the
// same pattern): https://github.com/spiffe/spire/blob/main/pkg/agent/plugin/workloadattestor/k8s/k8s.go
const cgroupUIDRegex = `[[:punct:]]pod([[:xdigit:]]{8}[[:punct:]][[:xdigit:]]{4}[[:punct:]][[:xdigit:]]{4}[[:punct:]][[:xdigit:]]{4}[[:punct:]][[:xdigit:]]{12})[[:punct:]](?:[[:^punct:]]+[[:punct:]])*([[:^punct:]]+)$`

var uidRegexp = regexp.MustCompile(cgroupUIDRegex)

// Config is the K8s workload attestor's static configuration, one per Agent
// process.
type Config struct {
	// NodeName restricts the pod list query to this node's pods.
	NodeName string
	// MaxPollAttempt / PollRetryInterval bound the poll loop that waits for
	// the workload's container id to appear in its pod's container statuses.
	MaxPollAttempt    int
	PollRetryInterval time.Duration
}

// Attestor resolves a PID into the Workload selector set over a Kubernetes
// API connection.
type Attestor struct {
	cfg    Config
	client kubernetes.Interface
}

// New returns an Attestor using client for Pod lookups.
func New(cfg Config, client kubernetes.Interface) *Attestor {
	return &Attestor{cfg: cfg, client: client}
}

type containerIdentifiers struct {
	name  string
	image string
}

// Attest implements ports.WorkloadAttestor.
func (a *Attestor) Attest(ctx context.Context, pid int) ([]string, error) {
	containerID, podUID, err := a.containerAndPodUIDFromCgroup(pid)
	if err != nil {
		return nil, err
	}

	pod, container, err := a.getPod(ctx, containerID, podUID)
	if err != nil {
		return nil, err
	}

	return buildSelectors(pod, container)
}

// containerAndPodUIDFromCgroup reads /proc/<pid>/cgroup and extracts the pod
// UID and container id from the "pids" controller's path.
func (a *Attestor) containerAndPodUIDFromCgroup(pid int) (containerID, podUID string, err error) {
	path, err := pidsCgroupPath(pid)
	if err != nil {
		return "", "", err
	}
	path = strings.TrimSuffix(path, ".scope")

	matches := uidRegexp.FindStringSubmatch(path)
	if matches == nil {
		return "", "", fmt.Errorf("%w: %s", domain.ErrExtractPodUIDAndContainer, path)
	}

	return matches[2], canonicalizePodUID(matches[1]), nil
}

// pidsCgroupPath reads /proc/<pid>/cgroup and returns the path entry for the
// "pids" controller (cgroup v1) or the unified hierarchy entry (cgroup v2,
// controller name empty).
func pidsCgroupPath(pid int) (string, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cgroup", pid)) // #nosec G304 - pid is the workload-API caller's own PID
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNoPIDCgroup, err)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		fields := strings.SplitN(line, ":", 3)
		if len(fields) != 3 {
			continue
		}
		controllers, path := fields[1], fields[2]
		if controllers == "pids" || controllers == "" {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: pid=%d", domain.ErrNoPIDCgroup, pid)
}

// canonicalizePodUID converts the punctuation-delimited UID found in a
// cgroup path into Kubernetes' canonical dashed form.
func canonicalizePodUID(uid string) string {
	var b strings.Builder
	b.Grow(len(uid))
	for _, r := range uid {
		if isASCIIPunct(r) {
			b.WriteByte('-')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCIIPunct(r rune) bool {
	return (r >= '!' && r <= '/') || (r >= ':' && r <= '@') || (r >= '[' && r <= '`') || (r >= '{' && r <= '~')
}

// getPod polls the node's pod list until podUID's pod lists containerID
// among its container or init-container statuses, up to MaxPollAttempt
// times. The container's ready flag and the pod's phase are not checked.
func (a *Attestor) getPod(ctx context.Context, containerID, podUID string) (*corev1.Pod, containerIdentifiers, error) {
	for attempt := 0; ; attempt++ {
		pods, err := a.listNodePods(ctx)
		if err != nil {
			return nil, containerIdentifiers{}, err
		}

		for i := range pods.Items {
			pod := &pods.Items[i]
			if string(pod.UID) != podUID {
				continue
			}
			if ci, ok := containerReadyInPod(pod, containerID); ok {
				return pod, ci, nil
			}
			break
		}

		if attempt+1 >= a.cfg.MaxPollAttempt {
			break
		}
		select {
		case <-ctx.Done():
			return nil, containerIdentifiers{}, ctx.Err()
		case <-time.After(a.cfg.PollRetryInterval):
		}
	}

	return nil, containerIdentifiers{}, fmt.Errorf("%w: container=%s pod_uid=%s", domain.ErrContainerNotFoundInPod, containerID, podUID)
}

func (a *Attestor) listNodePods(ctx context.Context) (*corev1.PodList, error) {
	pods, err := a.client.CoreV1().Pods(corev1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: "spec.nodeName=" + a.cfg.NodeName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: node=%s: %w", domain.ErrListingPods, a.cfg.NodeName, err)
	}
	return pods, nil
}

// containerReadyInPod looks for containerID among both pod.status's regular
// and init container statuses.
func containerReadyInPod(pod *corev1.Pod, containerID string) (containerIdentifiers, bool) {
	if ci, ok := matchContainerStatuses(pod.Status.ContainerStatuses, containerID); ok {
		return ci, true
	}
	return matchContainerStatuses(pod.Status.InitContainerStatuses, containerID)
}

func matchContainerStatuses(statuses []corev1.ContainerStatus, containerID string) (containerIdentifiers, bool) {
	for _, s := range statuses {
		if containerStatusMatches(s, containerID) {
			return containerIdentifiers{name: s.Name, image: s.Image}, true
		}
	}
	return containerIdentifiers{}, false
}

// containerStatusMatches compares containerID against the host component of
// status.ContainerID, which the Kubelet reports as a URL ("containerd://<id>").
func containerStatusMatches(status corev1.ContainerStatus, containerID string) bool {
	if status.ContainerID == "" {
		return false
	}
	u, err := url.Parse(status.ContainerID)
	if err != nil {
		return false
	}
	return u.Host == containerID
}

// buildSelectors assembles the full Workload selector set from a
// resolved pod and its attested container.
func buildSelectors(pod *corev1.Pod, container containerIdentifiers) ([]string, error) {
	if pod.Spec.ServiceAccountName == "" {
		return nil, fmt.Errorf("%w: service_account_name", domain.ErrMissingField)
	}
	if pod.Name == "" {
		return nil, fmt.Errorf("%w: pod_name", domain.ErrMissingField)
	}
	if pod.UID == "" {
		return nil, fmt.Errorf("%w: pod_uid", domain.ErrMissingField)
	}
	if pod.Namespace == "" {
		return nil, fmt.Errorf("%w: namespace", domain.ErrMissingField)
	}
	if pod.Spec.NodeName == "" {
		return nil, fmt.Errorf("%w: node_name", domain.ErrMissingField)
	}

	set := domain.NewSelectorSet()
	add := func(key domain.WorkloadSelectorKey, value string) error {
		sel, err := domain.NewWorkloadSelector(key, value)
		if err != nil {
			return err
		}
		set.Add(sel.String())
		return nil
	}
	addMap := func(key domain.WorkloadSelectorKey, subKey, value string) error {
		sel, err := domain.NewWorkloadMapSelector(key, subKey, value)
		if err != nil {
			return err
		}
		set.Add(sel.String())
		return nil
	}

	if err := add(domain.WorkloadSelectorNamespace, pod.Namespace); err != nil {
		return nil, err
	}
	if err := add(domain.WorkloadSelectorServiceAccount, pod.Spec.ServiceAccountName); err != nil {
		return nil, err
	}
	if err := add(domain.WorkloadSelectorPodName, pod.Name); err != nil {
		return nil, err
	}
	if err := add(domain.WorkloadSelectorPodUID, string(pod.UID)); err != nil {
		return nil, err
	}
	if err := add(domain.WorkloadSelectorNodeName, pod.Spec.NodeName); err != nil {
		return nil, err
	}
	if container.name != "" {
		if err := add(domain.WorkloadSelectorContainerName, container.name); err != nil {
			return nil, err
		}
	}
	if container.image != "" {
		if err := add(domain.WorkloadSelectorContainerImage, container.image); err != nil {
			return nil, err
		}
	}
	if err := add(domain.WorkloadSelectorPodImageCount, strconv.Itoa(len(pod.Status.ContainerStatuses))); err != nil {
		return nil, err
	}
	if err := add(domain.WorkloadSelectorPodInitImageCount, strconv.Itoa(len(pod.Status.InitContainerStatuses))); err != nil {
		return nil, err
	}

	for k, v := range pod.Labels {
		if err := addMap(domain.WorkloadSelectorPodLabels, k, v); err != nil {
			return nil, err
		}
	}
	for _, ref := range pod.OwnerReferences {
		if err := add(domain.WorkloadSelectorPodOwners, ref.Kind+":"+ref.Name); err != nil {
			return nil, err
		}
		if err := add(domain.WorkloadSelectorPodOwnerUIDs, ref.Kind+":"+string(ref.UID)); err != nil {
			return nil, err
		}
	}
	for _, c := range pod.Spec.Containers {
		if c.Image == "" {
			continue
		}
		if err := add(domain.WorkloadSelectorPodImages, c.Image); err != nil {
			return nil, err
		}
	}
	for _, c := range pod.Spec.InitContainers {
		if c.Image == "" {
			continue
		}
		if err := add(domain.WorkloadSelectorPodInitImages, c.Image); err != nil {
			return nil, err
		}
	}

	return set.Strings(), nil
}
