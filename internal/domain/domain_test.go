package domain_test

import (
	"errors"
	"testing"

	"github.com/sufield/edgespiffe/internal/domain"
)

func TestNewNodeSelector_Format(t *testing.T) {
	sel, err := domain.NewNodeSelector(domain.NodeSelectorCluster, "edge-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := sel.String(), "CLUSTER:edge-1"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if sel.Kind() != domain.SelectorTypeNode {
		t.Fatalf("Kind() = %v, want node", sel.Kind())
	}
}

func TestNewNodeSelector_InvalidKey(t *testing.T) {
	_, err := domain.NewNodeSelector(domain.NodeSelectorKey("BOGUS"), "v")
	if !errors.Is(err, domain.ErrSelectorInvalid) {
		t.Fatalf("expected ErrSelectorInvalid, got %v", err)
	}
}

func TestNewWorkloadMapSelector_Format(t *testing.T) {
	sel, err := domain.NewWorkloadMapSelector(domain.WorkloadSelectorPodLabels, "app", "genericnode")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := sel.String(), "PODLABELS:app:genericnode"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if sel.SubKey() != "app" {
		t.Fatalf("SubKey() = %q, want app", sel.SubKey())
	}
}

func TestNewSelector_EmptyValueRejected(t *testing.T) {
	if _, err := domain.NewNodeSelector(domain.NodeSelectorCluster, ""); !errors.Is(err, domain.ErrEmptyValue) {
		t.Fatalf("expected ErrEmptyValue, got %v", err)
	}
}

func TestParseSelectorFromString_PlainForm(t *testing.T) {
	sel, err := domain.ParseSelectorFromString(domain.SelectorTypeWorkload, "NAMESPACE:prod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := sel.String(), "NAMESPACE:prod"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestParseSelectorFromString_MapForm(t *testing.T) {
	sel, err := domain.ParseSelectorFromString(domain.SelectorTypeNode, "AGENTNODELABELS:zone:us-east-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := sel.Value(), "us-east-1"; got != want {
		t.Fatalf("Value() = %q, want %q", got, want)
	}
}

func TestParseSelectorFromString_UnknownType(t *testing.T) {
	_, err := domain.ParseSelectorFromString(domain.SelectorTypeNode, "BOGUS:v")
	if !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestParseSelectorFromString_Empty(t *testing.T) {
	_, err := domain.ParseSelectorFromString(domain.SelectorTypeNode, "")
	if !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

// Selector rendering is injective on (type, value): distinct pairs never
// collide.
func TestSelector_InjectiveOnTypeAndValue(t *testing.T) {
	a, err := domain.NewWorkloadSelector(domain.WorkloadSelectorNamespace, "prod:extra")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := domain.NewWorkloadMapSelector(domain.WorkloadSelectorPodLabels, "prod", "extra")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Equals(b) {
		t.Fatalf("distinct selectors must not compare equal: %s vs %s", a, b)
	}
}

func TestSelectorSet_Subset(t *testing.T) {
	observed := domain.NewSelectorSet("PODLABELS:app:genericnode", "NAMESPACE:prod")

	if !domain.Subset([]string{"PODLABELS:app:genericnode"}, observed) {
		t.Fatalf("expected subset to hold")
	}
	if domain.Subset([]string{"PODLABELS:app:genericnode", "EXTRA:missing"}, observed) {
		t.Fatalf("expected subset to fail when a required selector is absent")
	}
}

func TestSelectorSet_DeduplicatesAndIgnoresEmpty(t *testing.T) {
	ss := domain.NewSelectorSet("A:1", "A:1", "")
	if ss.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ss.Len())
	}
}

func TestSelectorSet_EmptyRequiredIsAlwaysSubset(t *testing.T) {
	observed := domain.NewSelectorSet()
	if !domain.Subset(nil, observed) {
		t.Fatalf("empty required selector list must be a subset of anything")
	}
}

func TestSPIFFEID_SchemedForm(t *testing.T) {
	td := domain.NewTrustDomainFromName("edge.example.org")
	id := domain.NewSPIFFEID(td, "generic")
	if got, want := id.String(), "spiffe://edge.example.org/generic"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestSPIFFEID_PathDefaultsToRoot(t *testing.T) {
	td := domain.NewTrustDomainFromName("edge.example.org")
	id := domain.NewSPIFFEID(td, "")
	if got, want := id.Path(), "/"; got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
}

func TestRegistrationEntry_KindPredicates(t *testing.T) {
	node := domain.RegistrationEntry{ID: "parent", Attestation: domain.NewNodeAttestation([]string{"AGENTSERVICEACCOUNT:agent"})}
	workload := domain.RegistrationEntry{ID: "child", Attestation: domain.NewWorkloadAttestation("parent", []string{"PODLABELS:app:x"})}

	if !node.IsNode() || node.IsWorkload() {
		t.Fatalf("node entry misclassified")
	}
	if !workload.IsWorkload() || workload.IsNode() {
		t.Fatalf("workload entry misclassified")
	}
	if workload.Attestation.ParentID != "parent" {
		t.Fatalf("ParentID = %q, want parent", workload.Attestation.ParentID)
	}
}
