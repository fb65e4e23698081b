// Package client implements the Agent↔Server client: an HTTP client for
// the Server↔Agent surface, plus reading the node's projected
// service-account token from disk.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/ports"
)

const apiVersion = "2022-06-01"

// Config is the Agent↔Server Client's static configuration.
type Config struct {
	// ServerAddress is the base URL of the Server↔Agent HTTP surface, e.g.
	// "https://spire-server.example:8443".
	ServerAddress string
	// AttestationTokenPath is the path the node's projected service-account
	// token is mounted at (default /var/run/secrets/tokens/iotedge-spiffe-agent).
	AttestationTokenPath string
	// Timeout bounds every outbound request.
	Timeout time.Duration
}

// Client is the HTTP implementation of ports.ServerClient.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ ports.ServerClient = (*Client)(nil)

// New returns a Client dialing cfg.ServerAddress.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.AttestationTokenPath == "" {
		cfg.AttestationTokenPath = "/var/run/secrets/tokens/iotedge-spiffe-agent"
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// wireJWTSVID and wireJWKSet/wireTrustBundle mirror the server's httpapi DTOs;
// duplicated rather than imported to keep the Agent binary independent of
// internal/server's HTTP package.
type wireJWTSVID struct {
	Token    string `json:"token"`
	SPIFFEID string `json:"spiffe_id"`
	Expiry   int64  `json:"expiry"`
	IssuedAt int64  `json:"issued_at"`
}

type wireJWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Kid string `json:"kid"`
	Use string `json:"use"`
}

type wireJWKSet struct {
	Keys           []wireJWK `json:"keys"`
	RefreshHint    int64     `json:"spiffe_refresh_hint"`
	SequenceNumber uint64    `json:"spiffe_sequence_number"`
}

type wireTrustBundle struct {
	TrustDomain string     `json:"trust_domain"`
	JWTKeySet   wireJWKSet `json:"jwt_key_set"`
	X509KeySet  wireJWKSet `json:"x509_key_set"`
}

type createWorkloadJWTsRequest struct {
	AttestationToken string   `json:"attestation_token"`
	WorkloadSPIFFEID string   `json:"workload_spiffe_id,omitempty"`
	Audiences        []string `json:"audiences"`
	Selectors        []string `json:"selectors"`
}

type createWorkloadJWTsResponse struct {
	JWTSVIDs []wireJWTSVID `json:"jwt_svids"`
}

type getTrustBundleResponse struct {
	TrustBundle wireTrustBundle `json:"trust_bundle"`
}

// CreateWorkloadJWTs calls POST /workload-jwts (implements
// ports.ServerClient).
func (c *Client) CreateWorkloadJWTs(ctx context.Context, attestationToken, workloadSPIFFEID string, audiences, selectors []string) ([]domain.JWTSVIDCompact, error) {
	reqBody := createWorkloadJWTsRequest{
		AttestationToken: attestationToken,
		WorkloadSPIFFEID: workloadSPIFFEID,
		Audiences:        audiences,
		Selectors:        selectors,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateJWTSVIDs, err)
	}

	u := c.cfg.ServerAddress + "/workload-jwts?api-version=" + apiVersion
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateJWTSVIDs, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var respBody createWorkloadJWTsResponse
	if err := c.do(req, http.StatusCreated, &respBody); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCreateJWTSVIDs, err)
	}

	svids := make([]domain.JWTSVIDCompact, 0, len(respBody.JWTSVIDs))
	for _, s := range respBody.JWTSVIDs {
		svids = append(svids, domain.JWTSVIDCompact{Token: s.Token, SPIFFEID: s.SPIFFEID, Expiry: s.Expiry, IssuedAt: s.IssuedAt})
	}
	return svids, nil
}

// GetTrustBundle calls GET /trust-bundle (implements
// ports.ServerClient).
func (c *Client) GetTrustBundle(ctx context.Context, jwtKeys, x509CAs bool) (domain.TrustBundle, error) {
	q := url.Values{}
	q.Set("api-version", apiVersion)
	q.Set("jwt_keys", strconv.FormatBool(jwtKeys))
	q.Set("x509_cas", strconv.FormatBool(x509CAs))

	u := c.cfg.ServerAddress + "/trust-bundle?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.TrustBundle{}, fmt.Errorf("%w: %w", domain.ErrTrustBundleResponse, err)
	}

	var respBody getTrustBundleResponse
	if err := c.do(req, http.StatusCreated, &respBody); err != nil {
		return domain.TrustBundle{}, fmt.Errorf("%w: %w", domain.ErrTrustBundleResponse, err)
	}

	return domain.TrustBundle{
		TrustDomain: respBody.TrustBundle.TrustDomain,
		JWTKeySet:   toDomainJWKSet(respBody.TrustBundle.JWTKeySet),
		X509KeySet:  toDomainJWKSet(respBody.TrustBundle.X509KeySet),
	}, nil
}

func toDomainJWKSet(s wireJWKSet) domain.JWKSet {
	keys := make([]domain.JWK, 0, len(s.Keys))
	for _, k := range s.Keys {
		keys = append(keys, domain.JWK{Kty: k.Kty, Crv: k.Crv, X: k.X, Y: k.Y, Kid: k.Kid, Use: k.Use})
	}
	return domain.JWKSet{Keys: keys, RefreshHint: s.RefreshHint, SequenceNumber: s.SequenceNumber}
}

// AttestationToken reads the node's projected service-account token from
// disk (implements ports.ServerClient).
func (c *Client) AttestationToken() (string, error) {
	data, err := os.ReadFile(c.cfg.AttestationTokenPath) // #nosec G304 - path is operator-configured, not user input
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrMissingField, err)
	}
	return string(data), nil
}

func (c *Client) do(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
