// Package catalog implements the Catalog: the registration entry store,
// the per-trust-domain JWK store, and the optional node-selector cache.
//
// InMemory holds everything in maps guarded by a single RWMutex:
// exclusive for writes, shared for reads.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/ports"
)

// InMemory is the reference Catalog implementation.
type InMemory struct {
	mu sync.RWMutex

	entries map[string]domain.RegistrationEntry

	// jwks is keyed by trust domain, then by kid.
	jwks    map[string]map[string]domain.JWK
	version map[string]uint64

	selectors map[string][]string
}

// New returns an empty in-memory Catalog.
func New() *InMemory {
	return &InMemory{
		entries:   make(map[string]domain.RegistrationEntry),
		jwks:      make(map[string]map[string]domain.JWK),
		version:   make(map[string]uint64),
		selectors: make(map[string][]string),
	}
}

var _ ports.Catalog = (*InMemory)(nil)

// --- Entries ---

// BatchCreate inserts every entry or collects a per-id error for ids that
// already exist. All-or-nothing per id, not all-or-nothing for the batch:
// non-conflicting entries in the same call are still created.
func (c *InMemory) BatchCreate(_ context.Context, entries []domain.RegistrationEntry) (ports.BatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := ports.BatchResult{}
	for _, e := range entries {
		if _, exists := c.entries[e.ID]; exists {
			result[e.ID] = fmt.Errorf("%w: %s", domain.ErrDuplicatedEntry, e.ID)
			continue
		}
		c.entries[e.ID] = e
	}
	return result, nil
}

// BatchUpdate replaces each existing entry in place, bumping RevisionNumber,
// or collects domain.ErrEntryNotFound for ids absent from the catalog.
func (c *InMemory) BatchUpdate(_ context.Context, entries []domain.RegistrationEntry) (ports.BatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := ports.BatchResult{}
	for _, e := range entries {
		existing, ok := c.entries[e.ID]
		if !ok {
			result[e.ID] = fmt.Errorf("%w: %s", domain.ErrEntryNotFound, e.ID)
			continue
		}
		e.RevisionNumber = existing.RevisionNumber + 1
		c.entries[e.ID] = e
	}
	return result, nil
}

// BatchDelete removes each id or collects domain.ErrEntryNotFound for ids
// absent from the catalog.
func (c *InMemory) BatchDelete(_ context.Context, ids []string) (ports.BatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := ports.BatchResult{}
	for _, id := range ids {
		if _, ok := c.entries[id]; !ok {
			result[id] = fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
			continue
		}
		delete(c.entries, id)
	}
	return result, nil
}

// BatchGet resolves each id independently.
func (c *InMemory) BatchGet(_ context.Context, ids []string) ([]domain.RegistrationEntry, ports.BatchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	errs := ports.BatchResult{}
	var found []domain.RegistrationEntry
	for _, id := range ids {
		e, ok := c.entries[id]
		if !ok {
			errs[id] = fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
			continue
		}
		found = append(found, e)
	}
	return found, errs, nil
}

// GetEntry returns a single entry by id.
func (c *InMemory) GetEntry(_ context.Context, id string) (*domain.RegistrationEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}
	return &e, nil
}

// ListAll iterates entries in total order by id. pageToken is
// the id to start at (inclusive); nextPageToken is the id of the first
// entry beyond the page, or "" if the catalog is exhausted.
func (c *InMemory) ListAll(_ context.Context, pageToken string, pageSize uint32) ([]domain.RegistrationEntry, string, error) {
	if pageSize == 0 {
		return nil, "", fmt.Errorf("%w", domain.ErrInvalidPageSize)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if pageToken != "" {
		start = sort.SearchStrings(ids, pageToken)
	}

	end := start + int(pageSize)
	if end > len(ids) {
		end = len(ids)
	}

	page := make([]domain.RegistrationEntry, 0, end-start)
	for _, id := range ids[start:end] {
		page = append(page, c.entries[id])
	}

	nextToken := ""
	if end < len(ids) {
		nextToken = ids[end]
	}

	return page, nextToken, nil
}

// --- TrustBundleStore ---

// AddJWK inserts a JWK under kid, failing with domain.ErrDuplicatedKey if
// already present, and bumps the trust domain's version.
func (c *InMemory) AddJWK(_ context.Context, trustDomain string, jwk domain.JWK) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.jwks[trustDomain]
	if !ok {
		keys = make(map[string]domain.JWK)
		c.jwks[trustDomain] = keys
	}
	if _, exists := keys[jwk.Kid]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicatedKey, jwk.Kid)
	}
	keys[jwk.Kid] = jwk
	c.version[trustDomain]++
	return nil
}

// RemoveJWK deletes a JWK, failing with domain.ErrKeyNotFound if absent,
// and bumps the trust domain's version.
func (c *InMemory) RemoveJWK(_ context.Context, trustDomain, kid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.jwks[trustDomain]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, kid)
	}
	if _, exists := keys[kid]; !exists {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, kid)
	}
	delete(keys, kid)
	c.version[trustDomain]++
	return nil
}

// GetJWK returns the current key set and the per-trust-domain version.
func (c *InMemory) GetJWK(_ context.Context, trustDomain string) ([]domain.JWK, uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := c.jwks[trustDomain]
	result := make([]domain.JWK, 0, len(keys))
	// Deterministic order (by kid) so repeated reads compare equal;
	// makes JSON responses and tests stable.
	kids := make([]string, 0, len(keys))
	for kid := range keys {
		kids = append(kids, kid)
	}
	sort.Strings(kids)
	for _, kid := range kids {
		result = append(result, keys[kid])
	}
	return result, c.version[trustDomain], nil
}

// --- Selectors ---

// SetSelectors caches the last-seen node-selector set for an agent path.
func (c *InMemory) SetSelectors(_ context.Context, agentPath string, selectors []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectors[agentPath] = append([]string(nil), selectors...)
	return nil
}

// GetSelectors returns the cached selector set for an agent path, or nil if
// none has been recorded.
func (c *InMemory) GetSelectors(_ context.Context, agentPath string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.selectors[agentPath]...), nil
}
