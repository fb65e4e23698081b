package server

import (
	"context"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/ports"
)

// Admin is a thin façade over the Catalog's Entries group, plus the
// select-list-entries bulk-get and the node-selector diagnostics surface.
type Admin struct {
	entries   ports.Entries
	selectors ports.Selectors
}

// NewAdmin returns an Admin façade over catalog.
func NewAdmin(entries ports.Entries, selectors ports.Selectors) *Admin {
	return &Admin{entries: entries, selectors: selectors}
}

// ListEntries returns one page of registration entries.
func (a *Admin) ListEntries(ctx context.Context, pageToken string, pageSize uint32) ([]domain.RegistrationEntry, string, error) {
	return a.entries.ListAll(ctx, pageToken, pageSize)
}

// BatchCreate inserts entries.
func (a *Admin) BatchCreate(ctx context.Context, entries []domain.RegistrationEntry) (ports.BatchResult, error) {
	return a.entries.BatchCreate(ctx, entries)
}

// BatchUpdate replaces entries in place.
func (a *Admin) BatchUpdate(ctx context.Context, entries []domain.RegistrationEntry) (ports.BatchResult, error) {
	return a.entries.BatchUpdate(ctx, entries)
}

// BatchDelete removes entries by id.
func (a *Admin) BatchDelete(ctx context.Context, ids []string) (ports.BatchResult, error) {
	return a.entries.BatchDelete(ctx, ids)
}

// SelectListEntries resolves a bulk-get by id (POST /select-list-entries).
func (a *Admin) SelectListEntries(ctx context.Context, ids []string) ([]domain.RegistrationEntry, ports.BatchResult, error) {
	return a.entries.BatchGet(ctx, ids)
}

// AgentSelectors returns the last-seen node-selector set cached for an
// agent's SPIFFE ID path.
func (a *Admin) AgentSelectors(ctx context.Context, agentPath string) ([]string, error) {
	return a.selectors.GetSelectors(ctx, agentPath)
}
