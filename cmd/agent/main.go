// Command agent runs the edge Agent: the Agent↔Server Client, Trust-Bundle
// Manager, K8s Workload Attestor and Workload-API server,
// composed the way cmd/server/main.go composes the Server's components.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sufield/edgespiffe/internal/agent/client"
	"github.com/sufield/edgespiffe/internal/agent/trustbundle"
	"github.com/sufield/edgespiffe/internal/agent/workloadapi"
	"github.com/sufield/edgespiffe/internal/bg"
	"github.com/sufield/edgespiffe/internal/clock"
	"github.com/sufield/edgespiffe/internal/config"
	"github.com/sufield/edgespiffe/internal/debug"
	"github.com/sufield/edgespiffe/internal/k8sclient"
	"github.com/sufield/edgespiffe/internal/svid"
	"github.com/sufield/edgespiffe/internal/workloadattestor/k8s"
)

// defaultSocketPerm is owner-only, since SO_PEERCRED already
// authenticates callers.
const defaultSocketPerm = 0o700

func main() {
	debug.Init()
	debug.InitLogger()

	configPath := os.Getenv("EDGESPIFFE_AGENT_CONFIG")
	if configPath == "" {
		configPath = "/etc/edgespiffe/agent.yaml"
	}
	cfg, err := config.LoadAgentConfig(configPath)
	if err != nil {
		log.Fatalf("agent: loading config %s: %v", configPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Agent↔Server client.
	serverClient := client.New(client.Config{
		ServerAddress:        cfg.Server.Address,
		AttestationTokenPath: cfg.AttestationTokenPath,
		Timeout:              time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
	})

	// Trust-Bundle Manager, bootstrapped with bounded retry.
	tbCfg := trustbundle.Config{
		MaxRetry:     cfg.TrustBundle.InitMaxRetry,
		WaitRetrySec: time.Duration(cfg.TrustBundle.InitWaitRetrySecs) * time.Second,
	}
	initial, err := trustbundle.GetInitTrustBundle(ctx, serverClient, tbCfg)
	if err != nil {
		log.Fatalf("agent: fetching initial trust bundle: %v", err)
	}
	tbManager := trustbundle.New(serverClient, tbCfg, initial)

	// K8s Workload Attestor: needs a live cluster API client.
	k8sClient, err := k8sclient.New("")
	if err != nil {
		log.Fatalf("agent: building kubernetes client: %v", err)
	}
	workloadAttestor := k8s.New(k8s.Config{
		NodeName:          cfg.WorkloadAttestor.NodeName,
		MaxPollAttempt:    cfg.WorkloadAttestor.MaxPollAttempt,
		PollRetryInterval: time.Duration(cfg.WorkloadAttestor.PollRetryIntervalMs) * time.Millisecond,
	}, k8sClient)

	// JWT-SVID Validator, used by the Workload-API's validate_jwtsvid call.
	validator := svid.NewValidator(clock.Unix)

	// Workload-API server.
	waServer := workloadapi.New(workloadapi.Config{
		SocketPath:  cfg.WorkloadAPI.SocketPath,
		SocketPerm:  os.FileMode(defaultSocketPerm),
		TrustDomain: cfg.TrustDomain,
	}, workloadapi.Resolver{}, workloadAttestor, serverClient, tbManager, validator)

	if err := waServer.Start(ctx); err != nil {
		log.Fatalf("agent: starting workload-api server: %v", err)
	}
	defer waServer.Stop(ctx)

	runner := refreshRunner()
	runner.Do(func() { runRefreshLoop(ctx, tbManager) })

	log.Printf("agent: workload-api listening on %s", cfg.WorkloadAPI.SocketPath)

	<-sigCh
	log.Printf("agent: shutdown signal received")
	cancel()
}

// refreshRunner selects bg.Sync in single-threaded debug mode so the
// trust-bundle refresh tick runs deterministically in tests and traces.
func refreshRunner() bg.Runner {
	if debug.Active.SingleThreaded {
		return bg.Sync{}
	}
	return bg.Async{}
}

func runRefreshLoop(ctx context.Context, tbManager *trustbundle.Manager) {
	hint := tbManager.RefreshHint()
	if hint <= 0 {
		hint = 60 * time.Second
	}
	ticker := time.NewTicker(hint)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := tbManager.RefreshTrustBundle(ctx); err != nil {
				log.Printf("agent: trust bundle refresh failed: %v", err)
			}
		}
	}
}
