// Package snapshot provides durable key-value persistence for the last-known
// session state. A snapshot outlives the process; it is the only state that
// does. Drivers guarantee per-key atomicity: a reader observes either the
// previous value or the new one, never a partial write.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("snapshot not found")

// ErrStoreUnavailable wraps driver-level failures (connection refused,
// closed database) so callers can distinguish absence from breakage.
var ErrStoreUnavailable = errors.New("snapshot store unavailable")

// SessionKey is the default key under which the serialized session lives.
const SessionKey = "session"

// Store is the durable snapshot capability. All operations are atomic per
// key. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Record is the persisted form of a session. It carries exactly the fields
// the app needs to render optimistically before the backend confirms.
type Record struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// EncodeRecord serializes a record for storage.
func EncodeRecord(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord parses a stored record. A decode failure means the snapshot
// is from an incompatible build or was corrupted; callers treat it as absent.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode snapshot record: %w", err)
	}
	return r, nil
}
