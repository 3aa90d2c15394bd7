package sessionkit

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

// Config is the manager configuration tree. Zero values are filled in by
// defaultConfig; a Config is treated as immutable after Build.
type Config struct {
	Snapshot SnapshotConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Events   EventsConfig
}

// SnapshotConfig controls where the serialized session lives in the store.
type SnapshotConfig struct {
	// Key under which the session snapshot is persisted.
	Key string
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the emitting operation
	// when the buffer is full.
	DropIfFull bool
}

// MetricsConfig controls the counter set.
type MetricsConfig struct {
	Enabled bool
}

// EventsConfig controls the session-changed dispatcher.
type EventsConfig struct {
	// BufferSize bounds how many published events may be queued ahead of
	// slow listeners before publishers block. Ordering is always
	// preserved; events are never dropped.
	BufferSize int
}

func defaultConfig() Config {
	return Config{
		Snapshot: SnapshotConfig{Key: "session"},
		Audit:    AuditConfig{Enabled: false, BufferSize: 64, DropIfFull: true},
		Metrics:  MetricsConfig{Enabled: true},
		Events:   EventsConfig{BufferSize: 16},
	}
}

// Validate reports configuration errors before any wiring happens.
func (c Config) Validate() error {
	if c.Snapshot.Key == "" {
		return errors.New("snapshot key must not be empty")
	}
	if c.Events.BufferSize <= 0 {
		return errors.New("events buffer size must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	return nil
}

// Environment is the process-level configuration consumed by binaries that
// wire a Manager from the outside (see examples/device-sim). Library users
// construct Config and the backend/store directly instead.
type Environment struct {
	BackendKind     string `env:"SESSIONKIT_BACKEND" envDefault:"local"`
	ProviderBaseURL string `env:"SESSIONKIT_PROVIDER_URL"`
	ProviderAPIKey  string `env:"SESSIONKIT_PROVIDER_API_KEY"`
	RedisAddr       string `env:"SESSIONKIT_REDIS_ADDR"`
	SnapshotPath    string `env:"SESSIONKIT_SNAPSHOT_PATH" envDefault:"sessionkit.db"`
	SnapshotKey     string `env:"SESSIONKIT_SNAPSHOT_KEY" envDefault:"session"`
	AuditLog        bool   `env:"SESSIONKIT_AUDIT_LOG" envDefault:"false"`
}

// EnvironmentFromOS parses Environment from process environment variables.
func EnvironmentFromOS() (Environment, error) {
	var e Environment
	if err := env.Parse(&e); err != nil {
		return Environment{}, err
	}
	return e, nil
}
