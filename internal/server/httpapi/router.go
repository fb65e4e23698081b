package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/server"
)

// NewAdminRouter builds the Admin API surface: intended to
// be served over a Unix socket with mode 0660.
func NewAdminRouter(admin *server.Admin) http.Handler {
	r := chi.NewRouter()

	r.Get("/entries", func(w http.ResponseWriter, req *http.Request) {
		pageSize, err := pageSizeParam(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		pageToken := req.URL.Query().Get("page_token")

		entries, next, err := admin.ListEntries(req.Context(), pageToken, pageSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		dtos := make([]entryDTO, 0, len(entries))
		for _, e := range entries {
			dtos = append(dtos, toEntryDTO(e))
		}
		writeJSON(w, http.StatusOK, listEntriesResponse{Entries: dtos, NextPageToken: next})
	})

	r.Post("/entries", func(w http.ResponseWriter, req *http.Request) {
		var body batchCreateRequest
		if !decodeJSON(w, req, &body) {
			return
		}
		entries := toDomainEntries(body.Entries)
		result, err := admin.BatchCreate(req.Context(), entries)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBatchResultDTO(result))
	})

	r.Put("/entries", func(w http.ResponseWriter, req *http.Request) {
		var body batchCreateRequest
		if !decodeJSON(w, req, &body) {
			return
		}
		entries := toDomainEntries(body.Entries)
		result, err := admin.BatchUpdate(req.Context(), entries)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, toBatchResultDTO(result))
	})

	r.Delete("/entries", func(w http.ResponseWriter, req *http.Request) {
		var body batchDeleteRequest
		if !decodeJSON(w, req, &body) {
			return
		}
		result, err := admin.BatchDelete(req.Context(), body.IDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, toBatchResultDTO(result))
	})

	r.Post("/select-list-entries", func(w http.ResponseWriter, req *http.Request) {
		var body selectListRequest
		if !decodeJSON(w, req, &body) {
			return
		}
		found, errs, err := admin.SelectListEntries(req.Context(), body.IDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, selectListResponse{Results: positionalResults(body.IDs, found, errs)})
	})

	r.Get("/agents/{path}/selectors", func(w http.ResponseWriter, req *http.Request) {
		agentPath := chi.URLParam(req, "path")
		selectors, err := admin.AgentSelectors(req.Context(), agentPath)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if selectors == nil {
			writeError(w, http.StatusNotFound, errors.New("no node selectors recorded for agent "+agentPath))
			return
		}
		writeJSON(w, http.StatusOK, agentSelectorsResponse{Selectors: selectors})
	})

	return r
}

// NewServerAgentRouter builds the Server↔Agent surface:
// served over TCP, consumed by the Agent↔Server Client.
func NewServerAgentRouter(srv *server.Server) http.Handler {
	r := chi.NewRouter()

	r.Post("/workload-jwts", func(w http.ResponseWriter, req *http.Request) {
		var body createWorkloadJWTsRequest
		if !decodeJSON(w, req, &body) {
			return
		}
		svids, err := srv.CreateWorkloadJWTs(req.Context(), server.CreateWorkloadJWTsRequest{
			AttestationToken: body.AttestationToken,
			WorkloadSPIFFEID: body.WorkloadSPIFFEID,
			Audiences:        body.Audiences,
			Selectors:        body.Selectors,
		})
		if err != nil {
			writeAttestationAwareError(w, err)
			return
		}
		dtos := make([]jwtSVIDDTO, 0, len(svids))
		for _, s := range svids {
			dtos = append(dtos, toJWTSVIDDTO(s))
		}
		writeJSON(w, http.StatusCreated, createWorkloadJWTsResponse{JWTSVIDs: dtos})
	})

	r.Get("/trust-bundle", func(w http.ResponseWriter, req *http.Request) {
		jwtKeys := boolParam(req, "jwt_keys", true)
		x509CAs := boolParam(req, "x509_cas", false)

		bundle, err := srv.GetTrustBundle(req.Context(), jwtKeys, x509CAs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, getTrustBundleResponse{TrustBundle: toTrustBundleDTO(bundle)})
	})

	return r
}

func toDomainEntries(dtos []entryDTO) []domain.RegistrationEntry {
	entries := make([]domain.RegistrationEntry, 0, len(dtos))
	for _, d := range dtos {
		entries = append(entries, fromEntryDTO(d))
	}
	return entries
}

// positionalResults builds the select-list-entries response in request
// order: each requested id maps to its entry DTO if found, or an
// idErrorDTO otherwise.
func positionalResults(ids []string, found []domain.RegistrationEntry, errs map[string]error) []interface{} {
	byID := make(map[string]domain.RegistrationEntry, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	results := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			results = append(results, toEntryDTO(e))
			continue
		}
		err := errs[id]
		if err == nil {
			err = domain.ErrEntryNotFound
		}
		results = append(results, idErrorDTO{ID: id, Error: err.Error()})
	}
	return results
}

func pageSizeParam(req *http.Request) (uint32, error) {
	raw := req.URL.Query().Get("page_size")
	if raw == "" {
		return 0, domain.ErrInvalidPageSize
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, domain.ErrInvalidPageSize
	}
	return uint32(n), nil
}

func boolParam(req *http.Request, key string, def bool) bool {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func decodeJSON(w http.ResponseWriter, req *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: error encoding response body: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeAttestationAwareError maps a failed node attestation to 403 and a
// malformed spiffe-id filter to 400; every other error is a 500.
func writeAttestationAwareError(w http.ResponseWriter, err error) {
	switch {
	case isAttestationFailure(err):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrInvalidTrustDomain):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func isAttestationFailure(err error) bool {
	for _, sentinel := range []error{
		domain.ErrInvalidToken,
		domain.ErrServiceAccountNotAllowed,
		domain.ErrMissingField,
		domain.ErrK8sTokenReviewAPI,
		domain.ErrGettingPodInfo,
		domain.ErrGettingNodeInfo,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
