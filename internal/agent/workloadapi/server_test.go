package workloadapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spiffe/go-spiffe/v2/proto/spiffe/workload"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/jwkcodec"
	"github.com/sufield/edgespiffe/internal/keystore"
	"github.com/sufield/edgespiffe/internal/svid"
)

const testTrustDomain = "edge.example.org"

type fakeAttestor struct {
	selectors []string
	err       error
	gotPID    int
}

func (f *fakeAttestor) Attest(_ context.Context, pid int) ([]string, error) {
	f.gotPID = pid
	return f.selectors, f.err
}

type fakeClient struct {
	svids        []domain.JWTSVIDCompact
	bundle       domain.TrustBundle
	token        string
	tokenErr     error
	createErr    error
	bundleErr    error
	gotToken     string
	gotSPIFFEID  string
	gotAudiences []string
	gotSelectors []string
}

func (f *fakeClient) CreateWorkloadJWTs(_ context.Context, attestationToken, workloadSPIFFEID string, audiences, selectors []string) ([]domain.JWTSVIDCompact, error) {
	f.gotToken = attestationToken
	f.gotSPIFFEID = workloadSPIFFEID
	f.gotAudiences = audiences
	f.gotSelectors = selectors
	return f.svids, f.createErr
}

func (f *fakeClient) GetTrustBundle(context.Context, bool, bool) (domain.TrustBundle, error) {
	return f.bundle, f.bundleErr
}

func (f *fakeClient) AttestationToken() (string, error) {
	return f.token, f.tokenErr
}

type fakeBundleCache struct {
	bundle domain.TrustBundle
}

func (f *fakeBundleCache) GetCachedTrustBundle() domain.TrustBundle { return f.bundle }

type fixedKeyManager struct {
	slot *domain.KeySlot
}

func (f *fixedKeyManager) Snapshot() domain.KeySlots { return domain.KeySlots{Current: f.slot} }
func (f *fixedKeyManager) KeyType() domain.KeyType   { return domain.KeyTypeES256 }

// mintTokenAndBundle signs a real JWT-SVID and builds the trust bundle
// holding its public key, so ValidateJWTSVID exercises the full
// decode/verify path.
func mintTokenAndBundle(t *testing.T, audience string) (string, domain.TrustBundle) {
	t.Helper()
	ks := keystore.NewInMemory()
	if _, err := ks.CreateKeyPairIfNotExists(context.Background(), "key-1", domain.KeyTypeES256); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	km := &fixedKeyManager{slot: &domain.KeySlot{ID: "key-1", Expiry: 1000}}
	factory := svid.NewFactory(km, ks, testTrustDomain, 60, func() int64 { return 0 })

	minted, err := factory.CreateJWTSVID(context.Background(), svid.Params{
		SPIFFEIDPath: "generic",
		Audiences:    []string{audience},
	})
	require.NoError(t, err)

	pub, err := ks.GetPublicKey(context.Background(), "key-1")
	require.NoError(t, err)
	jwk, err := jwkcodec.Encode(pub, "key-1", domain.JWKUseJWTSVID)
	require.NoError(t, err)

	bundle := domain.TrustBundle{
		TrustDomain: testTrustDomain,
		JWTKeySet:   domain.JWKSet{Keys: []domain.JWK{jwk}},
	}
	return minted.Token, bundle
}

func newTestServer(attestor *fakeAttestor, client *fakeClient, cache *fakeBundleCache) *Server {
	return New(Config{TrustDomain: testTrustDomain}, nil, attestor, client, cache, svid.NewValidator(func() int64 { return 0 }))
}

// peerContext stands in for what the peer-credential handshake attaches
// over a live socket.
func peerContext(pid int, err error) context.Context {
	return peer.NewContext(context.Background(), &peer.Peer{
		AuthInfo: peerCredAuthInfo{pid: pid, err: err},
	})
}

// fakeBundleStream captures FetchJWTBundles's server-streamed messages.
type fakeBundleStream struct {
	grpc.ServerStream
	ctx  context.Context
	msgs []*workload.JWTBundlesResponse
}

func (s *fakeBundleStream) Context() context.Context { return s.ctx }

func (s *fakeBundleStream) Send(msg *workload.JWTBundlesResponse) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

type fakeX509Stream struct {
	grpc.ServerStream
}

func (fakeX509Stream) Context() context.Context              { return context.Background() }
func (fakeX509Stream) Send(*workload.X509SVIDResponse) error { return nil }

func TestFetchJWTSVID(t *testing.T) {
	attestor := &fakeAttestor{selectors: []string{"PODLABELS:app:genericnode"}}
	client := &fakeClient{
		token: "node-token",
		svids: []domain.JWTSVIDCompact{{Token: "h.c.s", SPIFFEID: "spiffe://edge.example.org/generic", Expiry: 60}},
	}
	s := newTestServer(attestor, client, &fakeBundleCache{})

	resp, err := s.FetchJWTSVID(peerContext(1234, nil), &workload.JWTSVIDRequest{Audience: []string{"trust/aud"}})
	require.NoError(t, err)

	require.Len(t, resp.Svids, 1)
	require.Equal(t, "h.c.s", resp.Svids[0].Svid)
	require.Equal(t, "spiffe://edge.example.org/generic", resp.Svids[0].SpiffeId)

	require.Equal(t, 1234, attestor.gotPID)
	require.Equal(t, "node-token", client.gotToken)
	require.Equal(t, []string{"trust/aud"}, client.gotAudiences)
	require.Equal(t, []string{"PODLABELS:app:genericnode"}, client.gotSelectors)
}

func TestFetchJWTSVID_NoAudience(t *testing.T) {
	s := newTestServer(&fakeAttestor{}, &fakeClient{}, &fakeBundleCache{})

	_, err := s.FetchJWTSVID(peerContext(1234, nil), &workload.JWTSVIDRequest{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestFetchJWTSVID_NoPeerPID(t *testing.T) {
	s := newTestServer(&fakeAttestor{}, &fakeClient{}, &fakeBundleCache{})

	_, err := s.FetchJWTSVID(peerContext(0, domain.ErrUdsClientPID), &workload.JWTSVIDRequest{Audience: []string{"aud"}})
	require.Equal(t, codes.Internal, status.Code(err))

	// No peer on the context at all is equally fatal.
	_, err = s.FetchJWTSVID(context.Background(), &workload.JWTSVIDRequest{Audience: []string{"aud"}})
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestFetchJWTSVID_AttestationFailure(t *testing.T) {
	attestor := &fakeAttestor{err: domain.ErrNoPIDCgroup}
	s := newTestServer(attestor, &fakeClient{}, &fakeBundleCache{})

	_, err := s.FetchJWTSVID(peerContext(1234, nil), &workload.JWTSVIDRequest{Audience: []string{"aud"}})
	require.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestFetchJWTSVID_NoMatchingEntries(t *testing.T) {
	attestor := &fakeAttestor{selectors: []string{"PODLABELS:app:unknown"}}
	s := newTestServer(attestor, &fakeClient{token: "node-token"}, &fakeBundleCache{})

	_, err := s.FetchJWTSVID(peerContext(1234, nil), &workload.JWTSVIDRequest{Audience: []string{"aud"}})
	require.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestFetchJWTBundles(t *testing.T) {
	client := &fakeClient{
		bundle: domain.TrustBundle{
			TrustDomain: testTrustDomain,
			JWTKeySet: domain.JWKSet{
				Keys:           []domain.JWK{{Kty: "EC", Crv: "P-256", Kid: "key-1", Use: "jwt-svid"}},
				RefreshHint:    30,
				SequenceNumber: 4,
			},
		},
	}
	s := newTestServer(&fakeAttestor{}, client, &fakeBundleCache{})

	stream := &fakeBundleStream{ctx: context.Background()}
	require.NoError(t, s.FetchJWTBundles(&workload.JWTBundlesRequest{}, stream))

	require.Len(t, stream.msgs, 1)
	blob, ok := stream.msgs[0].Bundles[testTrustDomain]
	require.True(t, ok, "bundle must be keyed by trust domain")

	var set domain.JWKSet
	require.NoError(t, json.Unmarshal(blob, &set))
	require.Len(t, set.Keys, 1)
	require.Equal(t, "key-1", set.Keys[0].Kid)
	require.Equal(t, uint64(4), set.SequenceNumber)
}

func TestValidateJWTSVID(t *testing.T) {
	token, bundle := mintTokenAndBundle(t, "trust/aud")
	s := newTestServer(&fakeAttestor{}, &fakeClient{}, &fakeBundleCache{bundle: bundle})

	resp, err := s.ValidateJWTSVID(context.Background(), &workload.ValidateJWTSVIDRequest{Audience: "trust/aud", Svid: token})
	require.NoError(t, err)

	require.Equal(t, "spiffe://edge.example.org/generic", resp.SpiffeId)
	require.Equal(t, "spiffe://edge.example.org/generic", resp.Claims.Fields["subject"].GetStringValue())
	aud := resp.Claims.Fields["audience"].GetListValue()
	require.NotNil(t, aud)
	require.Len(t, aud.Values, 1)
	require.Equal(t, "trust/aud", aud.Values[0].GetStringValue())
}

func TestValidateJWTSVID_WrongAudience(t *testing.T) {
	token, bundle := mintTokenAndBundle(t, "trust/aud")
	s := newTestServer(&fakeAttestor{}, &fakeClient{}, &fakeBundleCache{bundle: bundle})

	_, err := s.ValidateJWTSVID(context.Background(), &workload.ValidateJWTSVIDRequest{Audience: "wrongaudience", Svid: token})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestValidateJWTSVID_Garbage(t *testing.T) {
	_, bundle := mintTokenAndBundle(t, "trust/aud")
	s := newTestServer(&fakeAttestor{}, &fakeClient{}, &fakeBundleCache{bundle: bundle})

	_, err := s.ValidateJWTSVID(context.Background(), &workload.ValidateJWTSVIDRequest{Audience: "trust/aud", Svid: "not-a-jwt"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestValidateJWTSVID_MissingParams(t *testing.T) {
	s := newTestServer(&fakeAttestor{}, &fakeClient{}, &fakeBundleCache{})

	_, err := s.ValidateJWTSVID(context.Background(), &workload.ValidateJWTSVIDRequest{Svid: "x.y.z"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.ValidateJWTSVID(context.Background(), &workload.ValidateJWTSVIDRequest{Audience: "aud"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestFetchX509SVID_Unimplemented(t *testing.T) {
	s := newTestServer(&fakeAttestor{}, &fakeClient{}, &fakeBundleCache{})

	err := s.FetchX509SVID(&workload.X509SVIDRequest{}, fakeX509Stream{})
	require.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestPeerPID(t *testing.T) {
	pid, err := peerPID(peerContext(42, nil))
	require.NoError(t, err)
	require.Equal(t, 42, pid)

	_, err = peerPID(peerContext(0, domain.ErrNegativePID))
	require.ErrorIs(t, err, domain.ErrNegativePID)

	_, err = peerPID(context.Background())
	require.ErrorIs(t, err, errNoPeerCred)
}
