package workloadapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/spiffe/go-spiffe/v2/proto/spiffe/workload"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/ports"
	"github.com/sufield/edgespiffe/internal/svid"
)

// socketDirPerm is the owner-only permission enforced on the socket's
// parent directory; the socket file itself inherits Config.SocketPerm.
const socketDirPerm = os.FileMode(0700)

// ServerClient is the upstream surface FetchJWTSVID/FetchJWTBundles fan out to.
type ServerClient interface {
	CreateWorkloadJWTs(ctx context.Context, attestationToken, workloadSPIFFEID string, audiences, selectors []string) ([]domain.JWTSVIDCompact, error)
	GetTrustBundle(ctx context.Context, jwtKeys, x509CAs bool) (domain.TrustBundle, error)
	AttestationToken() (string, error)
}

// TrustBundleCache is the local bundle cache ValidateJWTSVID reads from.
type TrustBundleCache interface {
	GetCachedTrustBundle() domain.TrustBundle
}

// Config is the Agent Workload-API's static configuration.
type Config struct {
	SocketPath  string
	SocketPerm  os.FileMode
	TrustDomain string
}

// Server implements the SpiffeWorkloadAPI gRPC service over a Unix socket
// with SO_PEERCRED peer-PID resolution, fanning out to the ServerClient,
// the TrustBundleCache and the WorkloadAttestor. Wire types are the SPIFFE
// reference workload.proto generated types shipped with go-spiffe.
type Server struct {
	workload.UnimplementedSpiffeWorkloadAPIServer

	cfg       Config
	resolver  ports.PeerCredResolver
	attestor  ports.WorkloadAttestor
	client    ServerClient
	bundles   TrustBundleCache
	validator *svid.Validator

	grpcServer *grpc.Server
	wg         sync.WaitGroup
}

// New returns a Server. cfg.SocketPerm defaults to 0700 (owner-only).
func New(cfg Config, resolver ports.PeerCredResolver, attestor ports.WorkloadAttestor, client ServerClient, bundles TrustBundleCache, validator *svid.Validator) *Server {
	if cfg.SocketPerm == 0 {
		cfg.SocketPerm = 0700
	}
	return &Server{cfg: cfg, resolver: resolver, attestor: attestor, client: client, bundles: bundles, validator: validator}
}

// Start creates the Unix socket and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	socketDir := filepath.Dir(s.cfg.SocketPath)
	if err := os.MkdirAll(socketDir, socketDirPerm); err != nil {
		return fmt.Errorf("workloadapi: create socket directory %q: %w", socketDir, err)
	}
	if err := os.RemoveAll(s.cfg.SocketPath); err != nil {
		return fmt.Errorf("workloadapi: remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("workloadapi: listen on %q: %w", s.cfg.SocketPath, err)
	}
	if err := os.Chmod(s.cfg.SocketPath, s.cfg.SocketPerm); err != nil {
		listener.Close()
		return fmt.Errorf("workloadapi: chmod socket: %w", err)
	}

	s.grpcServer = grpc.NewServer(grpc.Creds(peerCredCredentials{resolve: s.resolver.ResolvePID}))
	workload.RegisterSpiffeWorkloadAPIServer(s.grpcServer, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grpcServer.Serve(listener); err != nil {
			log.Printf("workloadapi: serve error: %v", err)
		}
	}()

	if err := ctx.Err(); err != nil {
		s.grpcServer.Stop()
		return err
	}
	return nil
}

// Stop drains in-flight RPCs gracefully, falling back to a hard stop if
// ctx expires first, and removes the socket file.
func (s *Server) Stop(ctx context.Context) error {
	if s.grpcServer != nil {
		done := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.grpcServer.Stop()
			<-done
		}
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.cfg.SocketPath); err != nil {
		return fmt.Errorf("workloadapi: remove socket: %w", err)
	}
	return nil
}

// FetchJWTSVID resolves the caller's PID from the handshake-time peer
// credential, attests its workload selectors, fetches the node's
// attestation token and forwards the request to the Server.
func (s *Server) FetchJWTSVID(ctx context.Context, req *workload.JWTSVIDRequest) (*workload.JWTSVIDResponse, error) {
	if len(req.Audience) == 0 {
		return nil, status.Error(codes.InvalidArgument, "audience must be specified")
	}

	pid, err := peerPID(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", fmt.Errorf("%w: %w", domain.ErrUdsClientPID, err))
	}

	selectors, err := s.attestor.Attest(ctx, pid)
	if err != nil {
		return nil, status.Errorf(attestationCode(err), "%v", fmt.Errorf("%w: %w", domain.ErrCreateJWTSVIDs, err))
	}

	token, err := s.client.AttestationToken()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", fmt.Errorf("%w: %w", domain.ErrCreateJWTSVIDs, err))
	}

	svids, err := s.client.CreateWorkloadJWTs(ctx, token, req.SpiffeId, req.Audience, selectors)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", fmt.Errorf("%w: %w", domain.ErrCreateJWTSVIDs, err))
	}
	if len(svids) == 0 {
		return nil, status.Error(codes.PermissionDenied, "no identity issued for workload")
	}

	resp := &workload.JWTSVIDResponse{}
	for _, sv := range svids {
		resp.Svids = append(resp.Svids, &workload.JWTSVID{SpiffeId: sv.SPIFFEID, Svid: sv.Token})
	}
	return resp, nil
}

// FetchJWTBundles fetches a fresh trust bundle from the Server and streams
// a single bundle message, the serialized JWKSet JSON keyed by trust
// domain, before closing.
func (s *Server) FetchJWTBundles(_ *workload.JWTBundlesRequest, stream workload.SpiffeWorkloadAPI_FetchJWTBundlesServer) error {
	bundle, err := s.client.GetTrustBundle(stream.Context(), true, false)
	if err != nil {
		return status.Errorf(codes.Internal, "%v", fmt.Errorf("%w: %w", domain.ErrTrustBundleResponse, err))
	}

	blob, err := json.Marshal(bundle.JWTKeySet)
	if err != nil {
		return status.Errorf(codes.Internal, "%v", fmt.Errorf("%w: %w", domain.ErrTrustBundleResponse, err))
	}

	return stream.Send(&workload.JWTBundlesResponse{
		Bundles: map[string][]byte{s.cfg.TrustDomain: blob},
	})
}

// ValidateJWTSVID validates against the cached trust bundle.
func (s *Server) ValidateJWTSVID(_ context.Context, req *workload.ValidateJWTSVIDRequest) (*workload.ValidateJWTSVIDResponse, error) {
	if req.Audience == "" {
		return nil, status.Error(codes.InvalidArgument, "audience must be specified")
	}
	if req.Svid == "" {
		return nil, status.Error(codes.InvalidArgument, "svid must be specified")
	}

	bundle := s.bundles.GetCachedTrustBundle()
	result, err := s.validator.Validate(req.Svid, bundle, req.Audience)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", fmt.Errorf("%w: %w", domain.ErrValidateJWTSVIDs, err))
	}

	claims, err := claimsStruct(result.Claims)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", fmt.Errorf("%w: %w", domain.ErrValidateJWTSVIDs, err))
	}

	return &workload.ValidateJWTSVIDResponse{
		SpiffeId: result.Claims.Subject,
		Claims:   claims,
	}, nil
}

// FetchX509SVID is reserved, not implemented. FetchX509Bundles falls
// through to the embedded UnimplementedSpiffeWorkloadAPIServer.
func (s *Server) FetchX509SVID(_ *workload.X509SVIDRequest, _ workload.SpiffeWorkloadAPI_FetchX509SVIDServer) error {
	return status.Error(codes.Unimplemented, "FetchX509SVID is not implemented")
}

// claimsStruct converts the validated claims into the proto Struct the
// Workload API response carries, round-tripping through JSON so the
// field names match the wire claim names.
func claimsStruct(claims domain.JWTClaims) (*structpb.Struct, error) {
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return nil, err
	}
	st := new(structpb.Struct)
	if err := protojson.Unmarshal(claimsJSON, st); err != nil {
		return nil, err
	}
	return st, nil
}

func attestationCode(err error) codes.Code {
	for _, sentinel := range []error{
		domain.ErrNoPIDCgroup,
		domain.ErrExtractPodUIDAndContainer,
		domain.ErrListingPods,
		domain.ErrContainerNotFoundInPod,
	} {
		if errors.Is(err, sentinel) {
			return codes.PermissionDenied
		}
	}
	return codes.Internal
}
