package matcher_test

import (
	"context"
	"testing"

	"github.com/sufield/edgespiffe/internal/catalog"
	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/matcher"
)

func seedCatalog(t *testing.T) *catalog.InMemory {
	t.Helper()
	c := catalog.New()
	ctx := context.Background()

	parent := domain.RegistrationEntry{
		ID:          "parent",
		Attestation: domain.NewNodeAttestation([]string{"AGENTSERVICEACCOUNT:iotedge-spiffe-agent"}),
	}
	workload := domain.RegistrationEntry{
		ID:           "workload",
		SPIFFEIDPath: "generic",
		Attestation:  domain.NewWorkloadAttestation("parent", []string{"PODLABELS:app:genericnode"}),
	}
	if _, err := c.BatchCreate(ctx, []domain.RegistrationEntry{parent, workload}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

// Happy-path catalog fixture: one Node parent, one Workload child.
func TestGetMatchingEntries_HappyPath(t *testing.T) {
	c := seedCatalog(t)
	m := matcher.New(c)

	workloadSelectors := domain.NewSelectorSet("PODLABELS:app:genericnode")
	nodeSelectors := domain.NewSelectorSet("AGENTSERVICEACCOUNT:iotedge-spiffe-agent")

	got, err := m.GetMatchingEntries(context.Background(), workloadSelectors, nodeSelectors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "workload" {
		t.Fatalf("got %+v, want [workload]", got)
	}
}

func TestGetMatchingEntries_NodeSelectorsInsufficient(t *testing.T) {
	c := seedCatalog(t)
	m := matcher.New(c)

	workloadSelectors := domain.NewSelectorSet("PODLABELS:app:genericnode")
	nodeSelectors := domain.NewSelectorSet() // missing AGENTSERVICEACCOUNT

	got, err := m.GetMatchingEntries(context.Background(), workloadSelectors, nodeSelectors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %+v, want no matches when node predicate unsatisfied", got)
	}
}

func TestGetMatchingEntries_WorkloadSelectorsInsufficient(t *testing.T) {
	c := seedCatalog(t)
	m := matcher.New(c)

	workloadSelectors := domain.NewSelectorSet() // missing PODLABELS
	nodeSelectors := domain.NewSelectorSet("AGENTSERVICEACCOUNT:iotedge-spiffe-agent")

	got, err := m.GetMatchingEntries(context.Background(), workloadSelectors, nodeSelectors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %+v, want no matches when workload predicate unsatisfied", got)
	}
}

func TestGetMatchingEntries_ExtraObservedSelectorsIgnored(t *testing.T) {
	c := seedCatalog(t)
	m := matcher.New(c)

	workloadSelectors := domain.NewSelectorSet("PODLABELS:app:genericnode", "NAMESPACE:prod")
	nodeSelectors := domain.NewSelectorSet("AGENTSERVICEACCOUNT:iotedge-spiffe-agent", "AGENTNODENAME:node-1")

	got, err := m.GetMatchingEntries(context.Background(), workloadSelectors, nodeSelectors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("extra observed selectors must be ignored by the predicate, got %+v", got)
	}
}

func TestGetMatchingEntries_NodeEntryNeverMatches(t *testing.T) {
	c := seedCatalog(t)
	m := matcher.New(c)

	// Supply selectors that would satisfy the Node entry's own predicate
	// directly; Node-kind entries must never appear in results.
	workloadSelectors := domain.NewSelectorSet("AGENTSERVICEACCOUNT:iotedge-spiffe-agent")
	nodeSelectors := domain.NewSelectorSet("AGENTSERVICEACCOUNT:iotedge-spiffe-agent")

	got, err := m.GetMatchingEntries(context.Background(), workloadSelectors, nodeSelectors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range got {
		if e.IsNode() {
			t.Fatalf("Node-kind entry %s must never be returned", e.ID)
		}
	}
}

// A workload entry whose parent is not a Node entry (or is missing
// entirely) is dropped, not fatal.
func TestGetMatchingEntries_WorkloadParentedToWorkloadIsDropped(t *testing.T) {
	c := catalog.New()
	ctx := context.Background()

	grandparent := domain.RegistrationEntry{ID: "gp", Attestation: domain.NewWorkloadAttestation("missing-parent", nil)}
	child := domain.RegistrationEntry{ID: "child", Attestation: domain.NewWorkloadAttestation("gp", []string{"NAMESPACE:prod"})}
	if _, err := c.BatchCreate(ctx, []domain.RegistrationEntry{grandparent, child}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := matcher.New(c)
	got, err := m.GetMatchingEntries(ctx, domain.NewSelectorSet("NAMESPACE:prod"), domain.NewSelectorSet())
	if err != nil {
		t.Fatalf("expected non-Node parent to be dropped, not returned as an error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %+v, want no matches (parent %q is not a Node entry)", got, "gp")
	}
}

func TestGetMatchingEntries_MissingParentIsDropped(t *testing.T) {
	c := catalog.New()
	ctx := context.Background()

	orphan := domain.RegistrationEntry{ID: "orphan", Attestation: domain.NewWorkloadAttestation("does-not-exist", nil)}
	if _, err := c.BatchCreate(ctx, []domain.RegistrationEntry{orphan}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := matcher.New(c)
	got, err := m.GetMatchingEntries(ctx, domain.NewSelectorSet(), domain.NewSelectorSet())
	if err != nil {
		t.Fatalf("a missing parent must be dropped, not returned as a fatal error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %+v, want no matches for an orphaned workload entry", got)
	}
}

func TestGetMatchingEntries_PaginatesAcrossManyEntries(t *testing.T) {
	c := catalog.New()
	ctx := context.Background()

	parent := domain.RegistrationEntry{ID: "parent", Attestation: domain.NewNodeAttestation(nil)}
	entries := []domain.RegistrationEntry{parent}
	for i := 0; i < 250; i++ {
		entries = append(entries, domain.RegistrationEntry{
			ID:           "w" + string(rune('a'+i%26)) + string(rune('0'+i/26)),
			SPIFFEIDPath: "generic",
			Attestation:  domain.NewWorkloadAttestation("parent", []string{"NAMESPACE:prod"}),
		})
	}
	if _, err := c.BatchCreate(ctx, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := matcher.New(c)
	got, err := m.GetMatchingEntries(ctx, domain.NewSelectorSet("NAMESPACE:prod"), domain.NewSelectorSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 250 {
		t.Fatalf("got %d matches, want 250 (pagination must traverse the whole catalog)", len(got))
	}
}
