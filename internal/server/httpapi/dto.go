// Package httpapi exposes the Admin API and Server API over
// HTTP/JSON using go-chi.
package httpapi

import "github.com/sufield/edgespiffe/internal/domain"

// apiVersion is the API version string stamped on every endpoint.
const apiVersion = "2022-06-01"

// entryDTO is the wire form of a domain.RegistrationEntry.
type entryDTO struct {
	ID              string   `json:"id"`
	SPIFFEIDPath    string   `json:"spiffe_id_path"`
	OtherIdentities []string `json:"other_identities,omitempty"`
	AttestationKind string   `json:"attestation_kind"`
	ParentID        string   `json:"parent_id,omitempty"`
	Selectors       []string `json:"selectors"`
	Admin           bool     `json:"admin"`
	ExpiresAt       int64    `json:"expires_at"`
	DNSNames        []string `json:"dns_names,omitempty"`
	RevisionNumber  uint64   `json:"revision_number"`
	StoreSVID       bool     `json:"store_svid"`
}

func toEntryDTO(e domain.RegistrationEntry) entryDTO {
	return entryDTO{
		ID:              e.ID,
		SPIFFEIDPath:    e.SPIFFEIDPath,
		OtherIdentities: e.OtherIdentities,
		AttestationKind: string(e.Attestation.Kind),
		ParentID:        e.Attestation.ParentID,
		Selectors:       e.Attestation.Selectors,
		Admin:           e.Admin,
		ExpiresAt:       e.ExpiresAt,
		DNSNames:        e.DNSNames,
		RevisionNumber:  e.RevisionNumber,
		StoreSVID:       e.StoreSVID,
	}
}

func fromEntryDTO(d entryDTO) domain.RegistrationEntry {
	var attestation domain.AttestationConfig
	if domain.AttestationKind(d.AttestationKind) == domain.AttestationNode {
		attestation = domain.NewNodeAttestation(d.Selectors)
	} else {
		attestation = domain.NewWorkloadAttestation(d.ParentID, d.Selectors)
	}
	return domain.RegistrationEntry{
		ID:              d.ID,
		SPIFFEIDPath:    d.SPIFFEIDPath,
		OtherIdentities: d.OtherIdentities,
		Attestation:     attestation,
		Admin:           d.Admin,
		ExpiresAt:       d.ExpiresAt,
		DNSNames:        d.DNSNames,
		RevisionNumber:  d.RevisionNumber,
		StoreSVID:       d.StoreSVID,
	}
}

// batchResultDTO is "ok" string or a list of per-id errors.
type batchResultDTO struct {
	Results interface{} `json:"results"`
}

type idErrorDTO struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func toBatchResultDTO(errs map[string]error) batchResultDTO {
	if len(errs) == 0 {
		return batchResultDTO{Results: "ok"}
	}
	list := make([]idErrorDTO, 0, len(errs))
	for id, err := range errs {
		list = append(list, idErrorDTO{ID: id, Error: err.Error()})
	}
	return batchResultDTO{Results: list}
}

type listEntriesResponse struct {
	Entries       []entryDTO `json:"entries"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

type batchCreateRequest struct {
	Entries []entryDTO `json:"entries"`
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

type selectListRequest struct {
	IDs []string `json:"ids"`
}

// selectListResponse is a positional list: one entry-or-error per requested
// id, in request order.
type selectListResponse struct {
	Results []interface{} `json:"results"`
}

type jwkDTO struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Kid string `json:"kid"`
	Use string `json:"use"`
}

type jwkSetDTO struct {
	Keys           []jwkDTO `json:"keys"`
	RefreshHint    int64    `json:"spiffe_refresh_hint"`
	SequenceNumber uint64   `json:"spiffe_sequence_number"`
}

type trustBundleDTO struct {
	TrustDomain string    `json:"trust_domain"`
	JWTKeySet   jwkSetDTO `json:"jwt_key_set"`
	X509KeySet  jwkSetDTO `json:"x509_key_set"`
}

func toTrustBundleDTO(b domain.TrustBundle) trustBundleDTO {
	return trustBundleDTO{
		TrustDomain: b.TrustDomain,
		JWTKeySet:   toJWKSetDTO(b.JWTKeySet),
		X509KeySet:  toJWKSetDTO(b.X509KeySet),
	}
}

func toJWKSetDTO(s domain.JWKSet) jwkSetDTO {
	keys := make([]jwkDTO, 0, len(s.Keys))
	for _, k := range s.Keys {
		keys = append(keys, jwkDTO{Kty: k.Kty, Crv: k.Crv, X: k.X, Y: k.Y, Kid: k.Kid, Use: k.Use})
	}
	return jwkSetDTO{Keys: keys, RefreshHint: s.RefreshHint, SequenceNumber: s.SequenceNumber}
}

type jwtSVIDDTO struct {
	Token    string `json:"token"`
	SPIFFEID string `json:"spiffe_id"`
	Expiry   int64  `json:"expiry"`
	IssuedAt int64  `json:"issued_at"`
}

func toJWTSVIDDTO(s domain.JWTSVIDCompact) jwtSVIDDTO {
	return jwtSVIDDTO{Token: s.Token, SPIFFEID: s.SPIFFEID, Expiry: s.Expiry, IssuedAt: s.IssuedAt}
}

type createWorkloadJWTsRequest struct {
	AttestationToken string   `json:"attestation_token"`
	WorkloadSPIFFEID string   `json:"workload_spiffe_id,omitempty"`
	Audiences        []string `json:"audiences"`
	Selectors        []string `json:"selectors"`
}

type createWorkloadJWTsResponse struct {
	JWTSVIDs []jwtSVIDDTO `json:"jwt_svids"`
}

type getTrustBundleResponse struct {
	TrustBundle trustBundleDTO `json:"trust_bundle"`
}

type agentSelectorsResponse struct {
	Selectors []string `json:"selectors"`
}
