package sessionkit

import (
	"testing"

	"github.com/homechef/sessionkit/snapshot"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("defaultConfig().Validate() = %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty snapshot key", func(c *Config) { c.Snapshot.Key = "" }},
		{"zero events buffer", func(c *Config) { c.Events.BufferSize = 0 }},
		{"audit enabled with zero buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() accepted %s", tc.name)
			}
		})
	}
}

func TestEnvironmentFromOS(t *testing.T) {
	t.Setenv("SESSIONKIT_BACKEND", "remote")
	t.Setenv("SESSIONKIT_PROVIDER_URL", "https://identity.example.com")
	t.Setenv("SESSIONKIT_SNAPSHOT_KEY", "sess-v2")
	t.Setenv("SESSIONKIT_AUDIT_LOG", "true")

	e, err := EnvironmentFromOS()
	if err != nil {
		t.Fatalf("EnvironmentFromOS() error: %v", err)
	}
	if e.BackendKind != "remote" {
		t.Fatalf("BackendKind = %q", e.BackendKind)
	}
	if e.ProviderBaseURL != "https://identity.example.com" {
		t.Fatalf("ProviderBaseURL = %q", e.ProviderBaseURL)
	}
	if e.SnapshotKey != "sess-v2" {
		t.Fatalf("SnapshotKey = %q", e.SnapshotKey)
	}
	if !e.AuditLog {
		t.Fatal("AuditLog = false, want true")
	}
	// Unset variables fall back to their defaults.
	if e.SnapshotPath != "sessionkit.db" {
		t.Fatalf("SnapshotPath = %q", e.SnapshotPath)
	}
}

func TestBuilderRequiresBackendAndStore(t *testing.T) {
	if _, err := New().WithStore(snapshot.NewMemoryStore()).Build(); err == nil {
		t.Fatal("Build() without backend succeeded")
	}
	if _, err := New().WithBackend(&fakeBackend{}).Build(); err == nil {
		t.Fatal("Build() without store succeeded")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithBackend(&fakeBackend{}).WithStore(snapshot.NewMemoryStore())

	m, err := b.Build()
	if err != nil {
		t.Fatalf("first Build() error: %v", err)
	}
	defer m.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build() on the same builder succeeded")
	}
}
