package password

import (
	"strings"
	"testing"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	encoded, err := h.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected hash format: %s", encoded)
	}

	ok, err := h.Verify("pw123456", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = h.Verify("wrong-pass", encoded)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	if _, err := h.Hash("pw"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestHashUniqueSalts(t *testing.T) {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	a, err := h.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}

	for _, encoded := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=32768,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		if _, err := h.Verify("pw123456", encoded); err == nil {
			t.Fatalf("expected error for hash %q", encoded)
		}
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory = 1024

	if _, err := NewHasher(cfg); err == nil {
		t.Fatal("expected config validation error")
	}
}
