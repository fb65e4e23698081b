package trustbundle_test

import (
	"context"
	"testing"

	"github.com/sufield/edgespiffe/internal/catalog"
	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/trustbundle"
)

const trustDomain = "edge.example.org"

func TestBuild_IncludesJWTKeysAndStampsVersion(t *testing.T) {
	c := catalog.New()
	ctx := context.Background()
	if err := c.AddJWK(ctx, trustDomain, domain.JWK{Kid: "k1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.AddJWK(ctx, trustDomain, domain.JWK{Kid: "k2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := trustbundle.NewBuilder(trustDomain, c, 60)
	bundle, err := b.Build(ctx, true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle.TrustDomain != trustDomain {
		t.Fatalf("TrustDomain = %q, want %q", bundle.TrustDomain, trustDomain)
	}
	if len(bundle.JWTKeySet.Keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(bundle.JWTKeySet.Keys))
	}
	if bundle.JWTKeySet.SequenceNumber != 2 {
		t.Fatalf("SequenceNumber = %d, want 2", bundle.JWTKeySet.SequenceNumber)
	}
	if bundle.JWTKeySet.RefreshHint != 60 {
		t.Fatalf("RefreshHint = %d, want 60", bundle.JWTKeySet.RefreshHint)
	}
}

func TestBuild_ExcludesJWTKeysWhenNotRequested(t *testing.T) {
	c := catalog.New()
	ctx := context.Background()
	if err := c.AddJWK(ctx, trustDomain, domain.JWK{Kid: "k1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := trustbundle.NewBuilder(trustDomain, c, 60)
	bundle, err := b.Build(ctx, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.JWTKeySet.Keys) != 0 {
		t.Fatalf("expected no keys when includeJWT=false, got %d", len(bundle.JWTKeySet.Keys))
	}
}

// X.509 path is reserved; certificate SVID issuance is a non-goal.
func TestBuild_X509PathAlwaysEmpty(t *testing.T) {
	c := catalog.New()
	b := trustbundle.NewBuilder(trustDomain, c, 60)
	bundle, err := b.Build(context.Background(), false, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.X509KeySet.Keys) != 0 {
		t.Fatalf("X.509 key set must stay empty, got %d keys", len(bundle.X509KeySet.Keys))
	}
}

// spiffe_sequence_number is monotonically non-decreasing across the
// Server process's lifetime.
func TestBuild_SequenceNumberMonotonicAcrossMutations(t *testing.T) {
	c := catalog.New()
	ctx := context.Background()
	b := trustbundle.NewBuilder(trustDomain, c, 60)

	bundle1, err := b.Build(ctx, true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.AddJWK(ctx, trustDomain, domain.JWK{Kid: "k1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bundle2, err := b.Build(ctx, true, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle2.JWTKeySet.SequenceNumber <= bundle1.JWTKeySet.SequenceNumber {
		t.Fatalf("sequence number must be monotonically non-decreasing: %d then %d",
			bundle1.JWTKeySet.SequenceNumber, bundle2.JWTKeySet.SequenceNumber)
	}
}
