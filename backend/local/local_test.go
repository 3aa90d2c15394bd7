package local

import (
	"context"
	"errors"
	"testing"

	"github.com/homechef/sessionkit/backend"
	"github.com/homechef/sessionkit/role"
	"github.com/homechef/sessionkit/snapshot"
)

var testSeed = []SeedUser{
	{Email: "user@example.com", Password: "password", Name: "John Doe", Role: role.Customer},
	{Email: "chef@example.com", Password: "chefpass", Name: "Jacob Jones", Role: role.Chef},
}

func newTestBackend(t *testing.T, store snapshot.Store) *Backend {
	t.Helper()

	b, err := New(context.Background(), Config{Seed: testSeed, Store: store})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return b
}

func TestAuthenticateSuccess(t *testing.T) {
	b := newTestBackend(t, nil)

	id, r, err := b.Authenticate(context.Background(), "user@example.com", "password", backend.AnyRole)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if r != role.Customer {
		t.Fatalf("expected customer role, got %s", r)
	}
	if id.Email != "user@example.com" || id.DisplayName != "John Doe" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.ID == "" {
		t.Fatal("expected generated user id")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	b := newTestBackend(t, nil)

	_, _, err := b.Authenticate(context.Background(), "user@example.com", "wrong", backend.AnyRole)
	if !errors.Is(err, backend.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// No partial sign-in.
	if id, _, _ := b.Resume(context.Background()); id != nil {
		t.Fatalf("expected no active identity, got %+v", id)
	}
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	b := newTestBackend(t, nil)

	_, _, err := b.Authenticate(context.Background(), "ghost@example.com", "password", backend.AnyRole)
	if !errors.Is(err, backend.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateRoleMismatch(t *testing.T) {
	b := newTestBackend(t, nil)

	_, _, err := b.Authenticate(context.Background(), "user@example.com", "password", role.Chef)
	if !errors.Is(err, backend.ErrRoleMismatch) {
		t.Fatalf("expected ErrRoleMismatch, got %v", err)
	}
	if errors.Is(err, backend.ErrInvalidCredentials) {
		t.Fatal("sentinels must stay distinct")
	}

	// A mismatch must leave nothing behind.
	if id, _, _ := b.Resume(context.Background()); id != nil {
		t.Fatalf("expected no active identity after mismatch, got %+v", id)
	}
}

func TestRoleMismatchMessageRevealsNothing(t *testing.T) {
	b := newTestBackend(t, nil)

	_, _, mismatchErr := b.Authenticate(context.Background(), "user@example.com", "password", role.Chef)
	_, _, credErr := b.Authenticate(context.Background(), "user@example.com", "wrong", backend.AnyRole)

	if mismatchErr.Error() != credErr.Error() {
		t.Fatalf("error text must not distinguish the failed check: %q vs %q", mismatchErr, credErr)
	}
}

func TestRegisterAndLoginBack(t *testing.T) {
	b := newTestBackend(t, nil)
	ctx := context.Background()

	id, r, err := b.Register(ctx, "new-chef@example.com", "pw123456", "Nina", role.Chef)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if r != role.Chef || id.DisplayName != "Nina" {
		t.Fatalf("unexpected registration result: %+v role=%s", id, r)
	}

	// Registration is also the first sign-in.
	cur, curRole, err := b.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if cur == nil || cur.ID != id.ID || curRole != role.Chef {
		t.Fatalf("expected registration to establish identity, got %+v", cur)
	}

	if err := b.Revoke(ctx); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	id2, _, err := b.Authenticate(ctx, "new-chef@example.com", "pw123456", role.Chef)
	if err != nil {
		t.Fatalf("Authenticate after register failed: %v", err)
	}
	if id2.ID != id.ID {
		t.Fatalf("expected stable user id, got %s != %s", id2.ID, id.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	b := newTestBackend(t, nil)

	_, _, err := b.Register(context.Background(), "User@Example.com", "pw123456", "Dup", role.Customer)
	if !errors.Is(err, backend.ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	b := newTestBackend(t, nil)
	ctx := context.Background()

	if _, _, err := b.Authenticate(ctx, "chef@example.com", "chefpass", role.Chef); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if err := b.Revoke(ctx); err != nil {
		t.Fatalf("first Revoke failed: %v", err)
	}
	if err := b.Revoke(ctx); err != nil {
		t.Fatalf("second Revoke failed: %v", err)
	}
	if id, _, _ := b.Resume(ctx); id != nil {
		t.Fatalf("expected signed-out state, got %+v", id)
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()

	b := newTestBackend(t, store)
	id, _, err := b.Register(ctx, "keeper@example.com", "pw123456", "Keeper", role.Customer)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Simulated restart: a fresh backend over the same store. Seeds must
	// not clobber the persisted record set.
	b2, err := New(ctx, Config{Seed: testSeed, Store: store})
	if err != nil {
		t.Fatalf("New after restart failed: %v", err)
	}

	cur, r, err := b2.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if cur == nil || cur.ID != id.ID || r != role.Customer {
		t.Fatalf("expected restored identity %s, got %+v", id.ID, cur)
	}

	if _, _, err := b2.Authenticate(ctx, "keeper@example.com", "pw123456", backend.AnyRole); err != nil {
		t.Fatalf("Authenticate against restored set failed: %v", err)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	b := newTestBackend(t, nil)
	ctx := context.Background()

	if _, _, err := b.Authenticate(ctx, "user@example.com", "password", backend.AnyRole); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if err := b.UpdateDisplayName(ctx, "Johnny"); err != nil {
		t.Fatalf("UpdateDisplayName failed: %v", err)
	}

	id, _, err := b.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if id.DisplayName != "Johnny" {
		t.Fatalf("expected updated name, got %q", id.DisplayName)
	}
}

func TestNoSpontaneousEvents(t *testing.T) {
	b := newTestBackend(t, nil)
	ctx := context.Background()

	fired := 0
	unsub := b.OnIdentityChanged(func(backend.Change) { fired++ })
	defer unsub()

	if _, _, err := b.Authenticate(ctx, "user@example.com", "password", backend.AnyRole); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if err := b.Revoke(ctx); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if fired != 0 {
		t.Fatalf("local backend must never fire spontaneously, got %d events", fired)
	}
}
