// Package server implements the Server API: the
// create_workload_jwts / create_agent_jwt / get_trust_bundle operations the
// Agent calls over the Server↔Agent HTTP surface.
package server

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/ports"
	"github.com/sufield/edgespiffe/internal/svid"
)

const pageSize = 100

// NodeAttestor is the node-attestation surface the Server API depends on.
type NodeAttestor interface {
	Attest(ctx context.Context, attestationToken string) ([]string, error)
}

// Matcher is the identity-matching surface the Server API depends on.
type Matcher interface {
	GetMatchingEntries(ctx context.Context, workloadSelectors, nodeSelectors *domain.SelectorSet) ([]domain.RegistrationEntry, error)
}

// Factory is the JWT-SVID minting surface the Server API depends on.
type Factory interface {
	CreateJWTSVID(ctx context.Context, params svid.Params) (domain.JWTSVIDCompact, error)
}

// TrustBundleBuilder assembles the trust bundle the Server API serves.
type TrustBundleBuilder interface {
	Build(ctx context.Context, includeJWT, includeX509 bool) (domain.TrustBundle, error)
}

// Server implements the create_workload_jwts / create_agent_jwt /
// get_trust_bundle operations.
type Server struct {
	trustDomain  string
	nodeAttestor NodeAttestor
	matcher      Matcher
	factory      Factory
	trustBuilder TrustBundleBuilder
	selectors    ports.Selectors  // optional node-selector diagnostics cache
	entries      nodeEntryLister  // finds the attesting node's own entry (CreateAgentJWT, selector cache)
}

// New returns a Server wiring the node attestor, matcher, SVID factory
// and trust-bundle builder together. entries is used by CreateAgentJWT and
// to key the node-selector cache by the attesting node's entry path; pass
// nil if neither is used.
func New(trustDomain string, nodeAttestor NodeAttestor, matcher Matcher, factory Factory, trustBuilder TrustBundleBuilder, selectors ports.Selectors, entries ports.Entries) *Server {
	return &Server{
		trustDomain:  trustDomain,
		nodeAttestor: nodeAttestor,
		matcher:      matcher,
		factory:      factory,
		trustBuilder: trustBuilder,
		selectors:    selectors,
		entries:      entries,
	}
}

// CreateWorkloadJWTsRequest is the create_workload_jwts input, the body
// of POST /workload-jwts.
type CreateWorkloadJWTsRequest struct {
	AttestationToken string
	WorkloadSPIFFEID string // optional; "" means no filter
	Audiences        []string
	Selectors        []string
}

// CreateWorkloadJWTs attests the calling node, matches registration entries
// against the supplied workload selectors and the attested node selectors,
// and mints a JWT-SVID for each match.
func (s *Server) CreateWorkloadJWTs(ctx context.Context, req CreateWorkloadJWTsRequest) ([]domain.JWTSVIDCompact, error) {
	pathFilter, err := s.resolveSPIFFEIDFilter(req.WorkloadSPIFFEID)
	if err != nil {
		return nil, err
	}

	nodeSelectors, err := s.nodeAttestor.Attest(ctx, req.AttestationToken)
	if err != nil {
		return nil, err
	}

	workloadSet := domain.NewSelectorSet(req.Selectors...)
	nodeSet := domain.NewSelectorSet(nodeSelectors...)

	if s.selectors != nil && s.entries != nil {
		if nodeEntry, err := s.findMatchingNodeEntry(ctx, nodeSelectors); err == nil {
			if err := s.selectors.SetSelectors(ctx, nodeEntry.SPIFFEIDPath, nodeSelectors); err != nil {
				log.Printf("server: caching node selectors for %s failed: %v", nodeEntry.SPIFFEIDPath, err)
			}
		}
	}

	entries, err := s.matcher.GetMatchingEntries(ctx, workloadSet, nodeSet)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.RegistrationEntry, 0, len(entries))
	for _, entry := range entries {
		if pathFilter != nil && *pathFilter != entry.SPIFFEIDPath {
			continue
		}
		matched = append(matched, entry)
	}

	return s.mintBatch(ctx, matched, req.Audiences)
}

// mintBatch mints one JWT-SVID per matched entry concurrently (the
// signing call is the only per-entry cost, and each call is independent),
// returning on the first failure.
func (s *Server) mintBatch(ctx context.Context, entries []domain.RegistrationEntry, audiences []string) ([]domain.JWTSVIDCompact, error) {
	svids := make([]domain.JWTSVIDCompact, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			minted, err := s.factory.CreateJWTSVID(gctx, svid.Params{
				SPIFFEIDPath:    entry.SPIFFEIDPath,
				Audiences:       audiences,
				OtherIdentities: entry.OtherIdentities,
			})
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrCreateJWTSVIDs, err)
			}
			svids[i] = minted // each goroutine owns a disjoint index
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return svids, nil
}

// CreateAgentJWT mints a JWT-SVID for the attesting node's own registration
// entry, rather than for a workload running on it. It shares the issuance
// pipeline with CreateWorkloadJWTs but matches against the Node entry
// itself.
func (s *Server) CreateAgentJWT(ctx context.Context, attestationToken string, audiences []string) (domain.JWTSVIDCompact, error) {
	nodeSelectors, err := s.nodeAttestor.Attest(ctx, attestationToken)
	if err != nil {
		return domain.JWTSVIDCompact{}, err
	}

	// A Node entry's own selectors are matched directly against the
	// attested node selectors; there is no parent indirection (unlike the
	// Workload-entry path used by CreateWorkloadJWTs), and the Identity
	// Matcher only ever returns Workload-kind entries, so the lookup
	// is done directly against the catalog here.
	nodeEntry, err := s.findMatchingNodeEntry(ctx, nodeSelectors)
	if err != nil {
		return domain.JWTSVIDCompact{}, err
	}

	minted, err := s.factory.CreateJWTSVID(ctx, svid.Params{
		SPIFFEIDPath:    nodeEntry.SPIFFEIDPath,
		Audiences:       audiences,
		OtherIdentities: nodeEntry.OtherIdentities,
	})
	if err != nil {
		return domain.JWTSVIDCompact{}, fmt.Errorf("%w: %w", domain.ErrCreateJWTSVIDs, err)
	}
	return minted, nil
}

// nodeEntryLister is the minimal Catalog surface findMatchingNodeEntry
// needs: plain entry pagination, since the Identity Matcher only ever
// returns Workload-kind entries.
type nodeEntryLister interface {
	ListAll(ctx context.Context, pageToken string, pageSize uint32) ([]domain.RegistrationEntry, string, error)
}

// findMatchingNodeEntry paginates the catalog for the Node-kind entry whose
// selectors are satisfied by nodeSelectors. Requires s.entries to be wired
// via New; without it the lookup fails with domain.ErrEntryNotFound.
func (s *Server) findMatchingNodeEntry(ctx context.Context, nodeSelectors []string) (domain.RegistrationEntry, error) {
	if s.entries == nil {
		return domain.RegistrationEntry{}, fmt.Errorf("%w: node entry lookup not wired", domain.ErrEntryNotFound)
	}
	observed := domain.NewSelectorSet(nodeSelectors...)

	token := ""
	for {
		page, next, err := s.entries.ListAll(ctx, token, pageSize)
		if err != nil {
			return domain.RegistrationEntry{}, err
		}
		for _, e := range page {
			if e.IsNode() && domain.Subset(e.Attestation.Selectors, observed) {
				return e, nil
			}
		}
		if next == "" {
			return domain.RegistrationEntry{}, fmt.Errorf("%w: no node entry matches attested selectors", domain.ErrEntryNotFound)
		}
		token = next
	}
}

// resolveSPIFFEIDFilter validates an optional caller-supplied
// "spiffe://<trust_domain>/<path>" filter, delegating
// grammar validation to the go-spiffe SDK via domain.ParseSPIFFEID rather
// than hand-splitting the scheme and trust domain.
func (s *Server) resolveSPIFFEIDFilter(workloadSPIFFEID string) (*string, error) {
	if workloadSPIFFEID == "" {
		return nil, nil
	}

	id, err := domain.ParseSPIFFEID(workloadSPIFFEID)
	if err != nil {
		return nil, err
	}
	if id.TrustDomain().String() != s.trustDomain {
		return nil, fmt.Errorf("%w: expected %s, got %s", domain.ErrInvalidTrustDomain, s.trustDomain, id.TrustDomain().String())
	}
	path := strings.TrimPrefix(id.Path(), "/")
	return &path, nil
}

// GetTrustBundle delegates directly to the Trust-Bundle Builder.
func (s *Server) GetTrustBundle(ctx context.Context, jwtKeys, x509CAs bool) (domain.TrustBundle, error) {
	return s.trustBuilder.Build(ctx, jwtKeys, x509CAs)
}
