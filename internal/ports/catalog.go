package ports

import (
	"context"

	"github.com/sufield/edgespiffe/internal/domain"
)

// BatchResult is keyed by the per-id error collected from a batch_create /
// batch_update / batch_delete call; an id absent from the map succeeded.
type BatchResult map[string]error

// Entries is the registration-entry half of the Catalog.
//
// Error Contract:
//   - BatchCreate collects domain.ErrDuplicatedEntry per duplicate id.
//   - BatchUpdate / BatchDelete collect domain.ErrEntryNotFound per missing id.
//   - ListAll returns domain.ErrInvalidPageSize when pageSize == 0.
type Entries interface {
	BatchCreate(ctx context.Context, entries []domain.RegistrationEntry) (BatchResult, error)
	BatchUpdate(ctx context.Context, entries []domain.RegistrationEntry) (BatchResult, error)
	BatchDelete(ctx context.Context, ids []string) (BatchResult, error)
	// BatchGet resolves each id independently; ids not found map to
	// domain.ErrEntryNotFound in the returned errs map, entries holds only
	// the ids that were found.
	BatchGet(ctx context.Context, ids []string) (entries []domain.RegistrationEntry, errs BatchResult, err error)
	GetEntry(ctx context.Context, id string) (*domain.RegistrationEntry, error)
	// ListAll iterates in total order by entry id. pageToken is the id to
	// start at (inclusive), "" starts at the beginning. nextPageToken is the
	// id of the first entry beyond the returned page, or "" if exhausted.
	ListAll(ctx context.Context, pageToken string, pageSize uint32) (entries []domain.RegistrationEntry, nextPageToken string, err error)
}

// TrustBundleStore is the JWK-set half of the Catalog. Every
// successful mutation increments the per-trust-domain version; GetJWK
// returns the version alongside the current keys so callers can stamp
// spiffe_sequence_number.
//
// Error Contract:
//   - AddJWK returns domain.ErrDuplicatedKey for an existing kid.
//   - RemoveJWK returns domain.ErrKeyNotFound for a missing kid.
type TrustBundleStore interface {
	AddJWK(ctx context.Context, trustDomain string, jwk domain.JWK) error
	RemoveJWK(ctx context.Context, trustDomain, kid string) error
	GetJWK(ctx context.Context, trustDomain string) (keys []domain.JWK, version uint64, err error)
}

// Selectors is the optional node-selector persistence group used for
// agent-tracking diagnostics: the Server API
// caches the last-seen node-selector set for an agent's SPIFFE ID path.
type Selectors interface {
	SetSelectors(ctx context.Context, agentPath string, selectors []string) error
	GetSelectors(ctx context.Context, agentPath string) ([]string, error)
}

// Catalog is the full catalog surface: entries, trust-bundle store, selectors.
type Catalog interface {
	Entries
	TrustBundleStore
	Selectors
}
