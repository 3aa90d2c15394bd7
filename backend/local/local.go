// Package local implements the credential backend against a device-held
// record set. Records are seeded at construction, optionally persisted
// through a snapshot store, and never leave the package except as an
// identity with the password hash stripped.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/homechef/sessionkit/backend"
	"github.com/homechef/sessionkit/password"
	"github.com/homechef/sessionkit/role"
	"github.com/homechef/sessionkit/snapshot"
)

const (
	usersKey   = "localauth:users"
	currentKey = "localauth:current"
)

// SeedUser is a plaintext seed record hashed during construction. Used to
// preload development accounts.
type SeedUser struct {
	ID       string
	Email    string
	Password string
	Name     string
	Role     role.Role
}

// Config configures the local backend.
type Config struct {
	// Seed accounts, hashed and inserted when no persisted record set
	// exists yet.
	Seed []SeedUser

	// Store, when non-nil, persists the record set and the active
	// identity across restarts. A nil Store keeps everything in memory.
	Store snapshot.Store

	// Password overrides the argon2id parameters. Zero value means
	// password.DefaultConfig.
	Password password.Config
}

type record struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	Role         role.Role `json:"role"`
}

// Backend is the local credential backend. It satisfies backend.Backend and
// backend.ProfileUpdater. It never emits spontaneous identity changes.
type Backend struct {
	hasher    *password.Hasher
	store     snapshot.Store
	listeners backend.Listeners

	mu      sync.Mutex
	byEmail map[string]*record
	current string // user ID of the active identity, "" when signed out
}

// New builds the backend, restoring a persisted record set when cfg.Store
// holds one and seeding cfg.Seed otherwise.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	pwCfg := cfg.Password
	if pwCfg == (password.Config{}) {
		pwCfg = password.DefaultConfig()
	}
	hasher, err := password.NewHasher(pwCfg)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		hasher:  hasher,
		store:   cfg.Store,
		byEmail: make(map[string]*record),
	}

	restored, err := b.restore(ctx)
	if err != nil {
		return nil, err
	}
	if !restored {
		if err := b.seed(ctx, cfg.Seed); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (b *Backend) seed(ctx context.Context, seeds []SeedUser) error {
	for _, s := range seeds {
		email := normalizeEmail(s.Email)
		if email == "" || !s.Role.Valid() {
			return fmt.Errorf("invalid seed user %q", s.Email)
		}
		if _, exists := b.byEmail[email]; exists {
			return fmt.Errorf("duplicate seed email %q", s.Email)
		}

		hash, err := b.hasher.Hash(s.Password)
		if err != nil {
			return fmt.Errorf("hash seed password for %q: %w", s.Email, err)
		}

		id := s.ID
		if id == "" {
			id = uuid.NewString()
		}
		b.byEmail[email] = &record{
			ID:           id,
			Email:        email,
			PasswordHash: hash,
			Name:         s.Name,
			Role:         s.Role,
		}
	}

	return b.persistLocked(ctx)
}

// Authenticate verifies the credentials and, when want is not AnyRole,
// requires an exact role match. No state is established on any failure
// path, so there is never a partial sign-in to revoke.
func (b *Backend) Authenticate(ctx context.Context, email, pw string, want role.Role) (*backend.Identity, role.Role, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, "", backend.ErrInvalidCredentials
	}

	match, err := b.hasher.Verify(pw, rec.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	if !match {
		return nil, "", backend.ErrInvalidCredentials
	}

	if want != backend.AnyRole && rec.Role != want {
		return nil, "", backend.ErrRoleMismatch
	}

	b.current = rec.ID
	if err := b.persistCurrentLocked(ctx); err != nil {
		b.current = ""
		return nil, "", err
	}

	return identityOf(rec), rec.Role, nil
}

// Register creates the account and atomically makes it the active identity.
func (b *Backend) Register(ctx context.Context, email, pw, name string, r role.Role) (*backend.Identity, role.Role, error) {
	if !r.Valid() {
		return nil, "", fmt.Errorf("register: invalid role %q", r)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := normalizeEmail(email)
	if _, exists := b.byEmail[key]; exists {
		return nil, "", backend.ErrEmailInUse
	}

	hash, err := b.hasher.Hash(pw)
	if err != nil {
		return nil, "", err
	}

	rec := &record{
		ID:           uuid.NewString(),
		Email:        key,
		PasswordHash: hash,
		Name:         name,
		Role:         r,
	}
	b.byEmail[key] = rec
	b.current = rec.ID

	if err := b.persistLocked(ctx); err != nil {
		delete(b.byEmail, key)
		b.current = ""
		return nil, "", err
	}
	if err := b.persistCurrentLocked(ctx); err != nil {
		b.current = ""
		return nil, "", err
	}

	return identityOf(rec), rec.Role, nil
}

// Revoke clears the active identity. It is idempotent and only fails when
// the persisted marker cannot be cleared.
func (b *Backend) Revoke(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = ""
	if b.store == nil {
		return nil
	}
	if err := b.store.Remove(ctx, currentKey); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	return nil
}

// Resume reports the persisted active identity, or nil when none exists.
// It never touches the network.
func (b *Backend) Resume(ctx context.Context) (*backend.Identity, role.Role, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == "" {
		return nil, "", nil
	}
	for _, rec := range b.byEmail {
		if rec.ID == b.current {
			return identityOf(rec), rec.Role, nil
		}
	}

	// Dangling marker: the record set no longer has the user.
	b.current = ""
	return nil, "", nil
}

// OnIdentityChanged registers fn. The local backend never notifies
// spontaneously; the registry exists to satisfy the backend contract.
func (b *Backend) OnIdentityChanged(fn func(backend.Change)) func() {
	return b.listeners.Subscribe(fn)
}

// UpdateDisplayName renames the active identity's record.
func (b *Backend) UpdateDisplayName(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == "" {
		return errors.New("no active identity")
	}
	for _, rec := range b.byEmail {
		if rec.ID == b.current {
			rec.Name = name
			return b.persistLocked(ctx)
		}
	}
	return errors.New("no active identity")
}

func (b *Backend) restore(ctx context.Context) (bool, error) {
	if b.store == nil {
		return false, nil
	}

	data, err := b.store.Get(ctx, usersKey)
	if errors.Is(err, snapshot.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	var recs []*record
	if err := json.Unmarshal(data, &recs); err != nil {
		return false, fmt.Errorf("restore local credential set: %w", err)
	}
	for _, rec := range recs {
		b.byEmail[rec.Email] = rec
	}

	cur, err := b.store.Get(ctx, currentKey)
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	default:
		b.current = string(cur)
	}

	return true, nil
}

func (b *Backend) persistLocked(ctx context.Context) error {
	if b.store == nil {
		return nil
	}

	recs := make([]*record, 0, len(b.byEmail))
	for _, rec := range b.byEmail {
		recs = append(recs, rec)
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	if err := b.store.Set(ctx, usersKey, data); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	return nil
}

func (b *Backend) persistCurrentLocked(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.Set(ctx, currentKey, []byte(b.current)); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	return nil
}

func identityOf(rec *record) *backend.Identity {
	return &backend.Identity{
		ID:          rec.ID,
		Email:       rec.Email,
		DisplayName: rec.Name,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
