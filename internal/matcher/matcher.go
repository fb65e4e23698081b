// Package matcher implements the identity matcher: page through the
// Catalog, and for every Workload entry check both the workload predicate
// against the observed workload selectors and the parent Node entry's
// predicate against the observed node selectors.
package matcher

import (
	"context"
	"log"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/ports"
)

// pageSize is the default Catalog iteration page size.
const pageSize = 100

// Matcher enumerates registration entries whose parent-node predicate and
// workload predicate are both satisfied by a pair of observed selector sets.
type Matcher struct {
	catalog ports.Entries
}

// New returns a Matcher backed by the given Catalog entries surface.
func New(catalog ports.Entries) *Matcher {
	return &Matcher{catalog: catalog}
}

// GetMatchingEntries iterates the full Catalog and returns every Workload
// entry whose workload selectors are a subset of workloadSelectors and
// whose parent Node entry's selectors are a subset of nodeSelectors.
// Result order follows catalog iteration order (entry id).
func (m *Matcher) GetMatchingEntries(ctx context.Context, workloadSelectors, nodeSelectors *domain.SelectorSet) ([]domain.RegistrationEntry, error) {
	var matched []domain.RegistrationEntry

	token := ""
	for {
		entries, next, err := m.catalog.ListAll(ctx, token, pageSize)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			ok, err := m.matchEntry(ctx, entry, workloadSelectors, nodeSelectors)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = append(matched, entry)
			}
		}

		if next == "" {
			return matched, nil
		}
		token = next
	}
}

// matchEntry evaluates the registration-entry predicate for a
// single entry. Node-kind entries never match; a Workload entry whose
// parent is not a Node entry is dropped (logged, not fatal).
func (m *Matcher) matchEntry(ctx context.Context, entry domain.RegistrationEntry, workloadSelectors, nodeSelectors *domain.SelectorSet) (bool, error) {
	if !entry.IsWorkload() {
		return false, nil
	}

	parent, err := m.catalog.GetEntry(ctx, entry.Attestation.ParentID)
	if err != nil {
		log.Printf("matcher: entry %s references missing parent %s, skipping: %v", entry.ID, entry.Attestation.ParentID, err)
		return false, nil
	}
	if !parent.IsNode() {
		log.Printf("matcher: entry %s parented to non-Node entry %s, skipping", entry.ID, parent.ID)
		return false, nil
	}

	return domain.Subset(entry.Attestation.Selectors, workloadSelectors) &&
		domain.Subset(parent.Attestation.Selectors, nodeSelectors), nil
}
