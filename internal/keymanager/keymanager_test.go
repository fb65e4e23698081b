package keymanager_test

import (
	"context"
	"testing"

	"github.com/sufield/edgespiffe/internal/catalog"
	"github.com/sufield/edgespiffe/internal/domain"
	"github.com/sufield/edgespiffe/internal/keymanager"
	"github.com/sufield/edgespiffe/internal/keystore"
)

const trustDomain = "edge.example.org"

func newManager(t *testing.T, keyTTL int64) (*keymanager.KeyManager, *catalog.InMemory) {
	t.Helper()
	cat := catalog.New()
	ks := keystore.NewInMemory()
	km, err := keymanager.New(context.Background(), trustDomain, cat, ks, domain.KeyTypeES256, keyTTL, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return km, cat
}

func TestNew_PopulatesCurrentAndPublishesJWK(t *testing.T) {
	km, cat := newManager(t, 300)

	slots := km.Snapshot()
	if slots.Current == nil {
		t.Fatalf("Current slot must never be nil after New")
	}
	if slots.Previous != nil || slots.Next != nil {
		t.Fatalf("Previous and Next must be empty right after New, got %+v", slots)
	}

	keys, _, err := cat.GetJWK(context.Background(), trustDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 || keys[0].Kid != slots.Current.ID {
		t.Fatalf("expected one published JWK matching Current.ID, got %+v", keys)
	}
}

// Rotation state machine: KEY_TTL=300, start at t=0.
func TestRotatePeriodic_StateMachine(t *testing.T) {
	km, cat := newManager(t, 300)
	ctx := context.Background()
	original := km.Snapshot().Current.ID

	// rotate_periodic(151): current unchanged, next populated, 2 JWKs.
	if err := km.RotatePeriodic(ctx, 151); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots := km.Snapshot()
	if slots.Current.ID != original {
		t.Fatalf("Current changed prematurely at t=151: %+v", slots)
	}
	if slots.Next == nil {
		t.Fatalf("Next should be populated at t=151 (prepare threshold = 300-150 = 150)")
	}
	keys, _, err := cat.GetJWK(ctx, trustDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 published JWKs at t=151, got %d", len(keys))
	}
	nextID := slots.Next.ID

	// rotate_periodic(251): previous = old_current, current = old_next, next = nil.
	if err := km.RotatePeriodic(ctx, 251); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots = km.Snapshot()
	if slots.Previous == nil || slots.Previous.ID != original {
		t.Fatalf("Previous should be the old Current (%s) at t=251, got %+v", original, slots.Previous)
	}
	if slots.Current == nil || slots.Current.ID != nextID {
		t.Fatalf("Current should be the old Next (%s) at t=251, got %+v", nextID, slots.Current)
	}
	if slots.Next != nil {
		t.Fatalf("Next should be empty after promotion, got %+v", slots.Next)
	}

	// rotate_periodic(301): previous evicted, 1 JWK remains (promoted key).
	if err := km.RotatePeriodic(ctx, 301); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots = km.Snapshot()
	if slots.Previous != nil {
		t.Fatalf("Previous should be evicted once its expiry (300) has passed at t=301, got %+v", slots.Previous)
	}
	keys, _, err = cat.GetJWK(ctx, trustDomain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 published JWK at t=301, got %d", len(keys))
	}
}

func TestRotatePeriodic_IdempotentBetweenTicks(t *testing.T) {
	km, _ := newManager(t, 300)
	ctx := context.Background()

	if err := km.RotatePeriodic(ctx, 151); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := km.Snapshot()
	if err := km.RotatePeriodic(ctx, 151); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := km.Snapshot()
	if before.Next.ID != after.Next.ID || before.Current.ID != after.Current.ID {
		t.Fatalf("calling RotatePeriodic twice at the same time must be a no-op: before=%+v after=%+v", before, after)
	}
}

// Because the prepare threshold (current.expiry - TTL/2) is always
// crossed before the promote threshold (current.expiry - TTL/6) for
// increasing now, a single RotatePeriodic call always prepares Next
// before it would need to promote it, even jumping straight past both
// thresholds in one tick.
func TestRotatePeriodic_PrepareAndPromoteInOneTick(t *testing.T) {
	km, _ := newManager(t, 300)
	ctx := context.Background()
	original := km.Snapshot().Current.ID

	if err := km.RotatePeriodic(ctx, 251); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	slots := km.Snapshot()
	if slots.Previous == nil || slots.Previous.ID != original {
		t.Fatalf("expected promotion to have occurred in the same tick, got %+v", slots)
	}
	if slots.Next != nil {
		t.Fatalf("Next should be empty after promotion, got %+v", slots.Next)
	}
}
