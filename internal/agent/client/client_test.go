package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sufield/edgespiffe/internal/agent/client"
	"github.com/sufield/edgespiffe/internal/domain"
)

func TestCreateWorkloadJWTs(t *testing.T) {
	var gotBody map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/workload-jwts", r.URL.Path)
		require.Equal(t, "2022-06-01", r.URL.Query().Get("api-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jwt_svids": []map[string]interface{}{
				{"token": "h.c.s", "spiffe_id": "spiffe://edge.example.org/generic", "expiry": 100, "issued_at": 90},
			},
		})
	}))
	defer ts.Close()

	c := client.New(client.Config{ServerAddress: ts.URL})
	svids, err := c.CreateWorkloadJWTs(context.Background(), "node-token", "", []string{"trust/aud"}, []string{"PODLABELS:app:genericnode"})
	require.NoError(t, err)

	require.Len(t, svids, 1)
	require.Equal(t, domain.JWTSVIDCompact{
		Token:    "h.c.s",
		SPIFFEID: "spiffe://edge.example.org/generic",
		Expiry:   100,
		IssuedAt: 90,
	}, svids[0])

	require.Equal(t, "node-token", gotBody["attestation_token"])
	require.Equal(t, []interface{}{"trust/aud"}, gotBody["audiences"])
	require.Equal(t, []interface{}{"PODLABELS:app:genericnode"}, gotBody["selectors"])
	// No filter was supplied, so the field is omitted entirely.
	_, present := gotBody["workload_spiffe_id"]
	require.False(t, present)
}

func TestCreateWorkloadJWTs_AttestationRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent attestation failed", http.StatusForbidden)
	}))
	defer ts.Close()

	c := client.New(client.Config{ServerAddress: ts.URL})
	_, err := c.CreateWorkloadJWTs(context.Background(), "bad-token", "", []string{"aud"}, nil)
	require.ErrorIs(t, err, domain.ErrCreateJWTSVIDs)
}

func TestGetTrustBundle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/trust-bundle", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("jwt_keys"))
		require.Equal(t, "false", r.URL.Query().Get("x509_cas"))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"trust_bundle": map[string]interface{}{
				"trust_domain": "edge.example.org",
				"jwt_key_set": map[string]interface{}{
					"keys": []map[string]interface{}{
						{"kty": "EC", "crv": "P-256", "x": "xx", "y": "yy", "kid": "key-1", "use": "jwt-svid"},
					},
					"spiffe_refresh_hint":    30,
					"spiffe_sequence_number": 7,
				},
			},
		})
	}))
	defer ts.Close()

	c := client.New(client.Config{ServerAddress: ts.URL})
	bundle, err := c.GetTrustBundle(context.Background(), true, false)
	require.NoError(t, err)

	require.Equal(t, "edge.example.org", bundle.TrustDomain)
	require.Equal(t, int64(30), bundle.JWTKeySet.RefreshHint)
	require.Equal(t, uint64(7), bundle.JWTKeySet.SequenceNumber)
	require.Len(t, bundle.JWTKeySet.Keys, 1)
	require.Equal(t, "key-1", bundle.JWTKeySet.Keys[0].Kid)
}

func TestGetTrustBundle_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := client.New(client.Config{ServerAddress: ts.URL})
	_, err := c.GetTrustBundle(context.Background(), true, false)
	require.ErrorIs(t, err, domain.ErrTrustBundleResponse)
}

func TestGetTrustBundle_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := client.New(client.Config{ServerAddress: ts.URL})
	_, err := c.GetTrustBundle(ctx, true, false)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrTrustBundleResponse))
}

func TestAttestationToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("projected-sa-token"), 0o600))

	c := client.New(client.Config{AttestationTokenPath: path})
	token, err := c.AttestationToken()
	require.NoError(t, err)
	require.Equal(t, "projected-sa-token", token)
}

func TestAttestationToken_MissingFile(t *testing.T) {
	c := client.New(client.Config{AttestationTokenPath: filepath.Join(t.TempDir(), "absent")})
	_, err := c.AttestationToken()
	require.ErrorIs(t, err, domain.ErrMissingField)
}
