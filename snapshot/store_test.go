package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisStore(rdb, "sk-test")
}

func newBoltStore(t *testing.T) *BoltStore {
	t.Helper()

	store, err := OpenBolt(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, SessionKey); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	if err := store.Set(ctx, SessionKey, []byte(`{"id":"u1"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, SessionKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"id":"u1"}` {
		t.Fatalf("unexpected value: %s", got)
	}

	if err := store.Set(ctx, SessionKey, []byte(`{"id":"u2"}`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err = store.Get(ctx, SessionKey)
	if err != nil {
		t.Fatalf("Get after overwrite failed: %v", err)
	}
	if string(got) != `{"id":"u2"}` {
		t.Fatalf("overwrite not visible: %s", got)
	}

	if err := store.Remove(ctx, SessionKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := store.Get(ctx, SessionKey); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}

	// Removing an absent key must not error.
	if err := store.Remove(ctx, SessionKey); err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
}

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, newRedisStore(t))
}

func TestBoltStoreContract(t *testing.T) {
	runStoreContract(t, newBoltStore(t))
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots.db")

	store, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	if err := store.Set(ctx, SessionKey, []byte(`{"id":"u1","role":"chef"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, SessionKey)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != `{"id":"u1","role":"chef"}` {
		t.Fatalf("snapshot did not survive reopen: %s", got)
	}
}

func TestBoltStoreClosedReportsUnavailable(t *testing.T) {
	ctx := context.Background()

	store, err := OpenBolt(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	if err := store.Set(ctx, SessionKey, []byte(`{"id":"u1"}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// All operations must report breakage, not absence, and all through
	// the same sentinel.
	if _, err := store.Get(ctx, SessionKey); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Get on closed store = %v, want ErrStoreUnavailable", err)
	}
	if err := store.Set(ctx, SessionKey, []byte(`{"id":"u2"}`)); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Set on closed store = %v, want ErrStoreUnavailable", err)
	}
	if err := store.Remove(ctx, SessionKey); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Remove on closed store = %v, want ErrStoreUnavailable", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := Record{ID: "u1", Name: "Jacob Jones", Email: "chef@example.com", Role: "chef"}

	data, err := EncodeRecord(in)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}

	out, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}

	if _, err := DecodeRecord([]byte("{broken")); err == nil {
		t.Fatal("expected decode error for corrupt snapshot")
	}
}
