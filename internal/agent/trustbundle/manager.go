// Package trustbundle implements the Agent's trust-bundle manager: a
// single-cell cache of the Server's trust bundle, refreshed on an
// interval and bootstrapped with bounded retry.
package trustbundle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sufield/edgespiffe/internal/domain"
)

// ServerClient is the upstream surface the Manager depends on.
type ServerClient interface {
	GetTrustBundle(ctx context.Context, jwtKeys, x509CAs bool) (domain.TrustBundle, error)
}

// Config bounds the initial trust-bundle fetch's retry loop.
type Config struct {
	MaxRetry     uint64
	WaitRetrySec time.Duration
}

// Manager owns the single-cell trust bundle cache.
type Manager struct {
	client ServerClient
	cfg    Config

	mu    sync.RWMutex
	cache domain.TrustBundle
}

// New returns a Manager seeded with initial, the trust bundle obtained by
// GetInitTrustBundle.
func New(client ServerClient, cfg Config, initial domain.TrustBundle) *Manager {
	return &Manager{client: client, cfg: cfg, cache: initial}
}

// GetInitTrustBundle retries client.GetTrustBundle with a bounded backoff
// until it succeeds or MaxRetry attempts are exhausted, returning
// domain.ErrInitTrustBundle on exhaustion.
func GetInitTrustBundle(ctx context.Context, client ServerClient, cfg Config) (domain.TrustBundle, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(cfg.WaitRetrySec),
			cfg.MaxRetry,
		),
		ctx,
	)

	var (
		bundle domain.TrustBundle
		lastErr error
		attempt uint64
	)
	op := func() error {
		b, err := client.GetTrustBundle(ctx, true, false)
		if err != nil {
			attempt++
			lastErr = err
			log.Printf("trustbundle: attempt %d/%d to fetch initial trust bundle failed: %v", attempt, cfg.MaxRetry+1, err)
			return err
		}
		bundle = b
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return domain.TrustBundle{}, fmt.Errorf("%w: %w", domain.ErrInitTrustBundle, lastErr)
	}
	return bundle, nil
}

// RefreshTrustBundle fetches a fresh trust bundle and atomically replaces
// the cache on success; on failure it logs and leaves the previous value
// in place.
func (m *Manager) RefreshTrustBundle(ctx context.Context) error {
	bundle, err := m.client.GetTrustBundle(ctx, true, false)
	if err != nil {
		log.Printf("trustbundle: refresh failed, keeping previous bundle: %v", err)
		return fmt.Errorf("%w: %w", domain.ErrTrustBundleResponse, err)
	}

	m.mu.Lock()
	m.cache = bundle
	m.mu.Unlock()
	return nil
}

// GetCachedTrustBundle returns a shared snapshot of the cached bundle.
func (m *Manager) GetCachedTrustBundle() domain.TrustBundle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache
}

// RefreshHint returns the configured refresh hint of the cached bundle's
// JWT key set, in seconds, used to pace the refresh tick.
func (m *Manager) RefreshHint() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.cache.JWTKeySet.RefreshHint) * time.Second
}
