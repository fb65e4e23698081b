// Command server runs the identity control plane Server: the Catalog, Key
// Manager, Trust-Bundle Builder, SVID Factory, PSAT Node Attestor, Identity
// Matcher and Server API, composed the way
// cmd/agent/main.go composes the Agent's components.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sufield/edgespiffe/internal/bg"
	"github.com/sufield/edgespiffe/internal/catalog"
	"github.com/sufield/edgespiffe/internal/clock"
	"github.com/sufield/edgespiffe/internal/config"
	"github.com/sufield/edgespiffe/internal/debug"
	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/k8sclient"
	"github.com/sufield/edgespiffe/internal/keymanager"
	"github.com/sufield/edgespiffe/internal/keystore"
	"github.com/sufield/edgespiffe/internal/keystore/diskstore"
	"github.com/sufield/edgespiffe/internal/matcher"
	"github.com/sufield/edgespiffe/internal/nodeattestor/psat"
	"github.com/sufield/edgespiffe/internal/ports"
	"github.com/sufield/edgespiffe/internal/server"
	"github.com/sufield/edgespiffe/internal/server/httpapi"
	"github.com/sufield/edgespiffe/internal/svid"
	"github.com/sufield/edgespiffe/internal/trustbundle"
)

// rotationTickInterval paces KeyManager.RotatePeriodic; both
// thresholds it checks are derived from the configured Key TTL, so a short,
// fixed tick is safe regardless of that TTL.
const rotationTickInterval = 30 * time.Second

func main() {
	debug.Init()
	debug.InitLogger()

	configPath := os.Getenv("EDGESPIFFE_SERVER_CONFIG")
	if configPath == "" {
		configPath = "/etc/edgespiffe/server.yaml"
	}
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		log.Fatalf("server: loading config %s: %v", configPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Catalog: registration entries, JWK store, node-selector cache.
	cat := catalog.New()

	// Key Store.
	var keyStore ports.KeyStore
	switch cfg.KeyStore.Backend {
	case "disk":
		keyStore = diskstore.New(cfg.KeyStore.DiskBasePath)
	default:
		keyStore = keystore.NewInMemory()
	}

	// Key Manager: mints the initial signing key on startup.
	km, err := keymanager.New(ctx, cfg.TrustDomain, cat, keyStore, domain.KeyTypeES256, cfg.KeyTTLSeconds, clock.Unix())
	if err != nil {
		log.Fatalf("server: initializing key manager: %v", err)
	}

	// Trust-Bundle Builder.
	builder := trustbundle.NewBuilder(cfg.TrustDomain, cat, cfg.RefreshHintSeconds)

	// SVID Factory.
	factory := svid.NewFactory(km, keyStore, cfg.TrustDomain, cfg.JWTTTLSeconds, nil)

	// PSAT Node Attestor: needs a live cluster API client.
	k8sClient, err := k8sclient.New("")
	if err != nil {
		log.Fatalf("server: building kubernetes client: %v", err)
	}
	nodeAttestor := psat.New(psat.Config{
		Audience:                cfg.PSAT.Audience,
		Namespace:               cfg.PSAT.Namespace,
		ServiceAccountAllowList: toSet(cfg.PSAT.ServiceAccountAllowList),
		ClusterName:             cfg.PSAT.ClusterName,
		AllowedNodeLabelKeys:    toSet(cfg.PSAT.AllowedNodeLabelKeys),
		AllowedPodLabelKeys:     toSet(cfg.PSAT.AllowedPodLabelKeys),
	}, k8sClient)

	// Identity Matcher.
	idMatcher := matcher.New(cat)

	// Server API and Admin API façade.
	srv := server.New(cfg.TrustDomain, nodeAttestor, idMatcher, factory, builder, cat, cat)
	admin := server.NewAdmin(cat, cat)

	runner := rotationRunner()
	runner.Do(func() { runRotationLoop(ctx, km) })

	adminErrCh := serveAdmin(cfg.HTTP.AdminSocketPath, admin)
	agentErrCh := serveAgent(cfg.HTTP.AgentListenAddr, srv)

	log.Printf("server: listening for admin requests on %s, agent requests on %s", cfg.HTTP.AdminSocketPath, cfg.HTTP.AgentListenAddr)

	select {
	case <-sigCh:
		log.Printf("server: shutdown signal received")
	case err := <-adminErrCh:
		log.Fatalf("server: admin listener failed: %v", err)
	case err := <-agentErrCh:
		log.Fatalf("server: agent listener failed: %v", err)
	}

	cancel()
}

// rotationRunner selects bg.Sync in single-threaded debug mode so rotation
// ticks run deterministically in tests and traces.
func rotationRunner() bg.Runner {
	if debug.Active.SingleThreaded {
		return bg.Sync{}
	}
	return bg.Async{}
}

func runRotationLoop(ctx context.Context, km *keymanager.KeyManager) {
	ticker := time.NewTicker(rotationTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := km.RotatePeriodic(ctx, clock.Unix()); err != nil {
				log.Printf("server: key rotation tick failed: %v", err)
			}
		}
	}
}

func serveAdmin(socketPath string, admin *server.Admin) <-chan error {
	errCh := make(chan error, 1)
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		errCh <- fmt.Errorf("removing stale admin socket: %w", err)
		return errCh
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		errCh <- fmt.Errorf("listening on admin socket: %w", err)
		return errCh
	}
	if err := os.Chmod(socketPath, 0o660); err != nil {
		errCh <- fmt.Errorf("setting admin socket permissions: %w", err)
		return errCh
	}
	go func() {
		errCh <- http.Serve(ln, httpapi.NewAdminRouter(admin))
	}()
	return errCh
}

func serveAgent(addr string, srv *server.Server) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- http.ListenAndServe(addr, httpapi.NewServerAgentRouter(srv))
	}()
	return errCh
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
