// Package remote implements the credential backend against a hosted
// identity provider speaking a token-based REST protocol. The provider
// issues a signed ID token on sign-in; the client parses its claims for
// identity metadata and treats signature verification as the provider's
// job. Roles are not a provider concept: they live in a small user-data
// directory persisted through the snapshot store, keyed by user ID.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/homechef/sessionkit/backend"
	"github.com/homechef/sessionkit/role"
	"github.com/homechef/sessionkit/snapshot"
)

const (
	credentialKey = "credential"
	userDataKey   = "userdata:"

	defaultTimeout = 15 * time.Second
)

// Config configures the remote backend.
type Config struct {
	// BaseURL of the identity provider, without a trailing slash.
	BaseURL string

	// APIKey sent with every request.
	APIKey string

	// Store persists the obtained ID token and the user-data directory.
	// Required.
	Store snapshot.Store

	// HTTPClient overrides the default client (15s timeout).
	HTTPClient *http.Client

	// WatchExpiry enables the token-expiry watcher: when the active ID
	// token reaches its expiry, the backend drops it and notifies
	// identity-change listeners. On by default in NewConfig-less use;
	// disable for deterministic tests.
	DisableExpiryWatch bool

	// Now overrides the clock for tests.
	Now func() time.Time
}

type userData struct {
	Role role.Role `json:"role"`
	Name string    `json:"name"`
}

// Backend is the remote credential backend. It satisfies backend.Backend
// and backend.ProfileUpdater.
type Backend struct {
	cfg       Config
	client    *http.Client
	store     snapshot.Store
	now       func() time.Time
	listeners backend.Listeners

	mu     sync.Mutex
	token  *idToken // active credential, nil when signed out
	expiry *time.Timer
}

// New validates cfg and returns a backend with no active credential. Call
// Resume to restore a persisted one.
func New(cfg Config) (*Backend, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote: BaseURL required")
	}
	if cfg.Store == nil {
		return nil, errors.New("remote: snapshot store required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Backend{cfg: cfg, client: client, store: cfg.Store, now: now}, nil
}

// Authenticate signs in against the provider and resolves the account role
// from the user-data directory. When want is not AnyRole and the resolved
// role differs, the freshly obtained credential is revoked before the
// failure is reported, so no partial sign-in survives the call.
func (b *Backend) Authenticate(ctx context.Context, email, pw string, want role.Role) (*backend.Identity, role.Role, error) {
	tok, err := b.signIn(ctx, email, pw)
	if err != nil {
		return nil, "", err
	}

	r, cachedName, err := b.lookupRole(ctx, tok.UserID)
	if err != nil {
		b.revokeToken(ctx, tok)
		return nil, "", err
	}

	if want != backend.AnyRole && r != want {
		b.revokeToken(ctx, tok)
		return nil, "", backend.ErrRoleMismatch
	}

	if err := b.adopt(ctx, tok); err != nil {
		b.revokeToken(ctx, tok)
		return nil, "", err
	}

	return identityOf(tok, cachedName), r, nil
}

// Register creates the provider account, sets its display name, writes the
// role record, and adopts the credential. The caller observes registration
// and first sign-in as one atomic step.
func (b *Backend) Register(ctx context.Context, email, pw, name string, r role.Role) (*backend.Identity, role.Role, error) {
	if !r.Valid() {
		return nil, "", fmt.Errorf("register: invalid role %q", r)
	}

	tok, err := b.signUp(ctx, email, pw)
	if err != nil {
		return nil, "", err
	}

	if name != "" {
		// Best effort: a failed name push must not orphan the account.
		_ = b.pushDisplayName(ctx, tok, name)
		tok.DisplayName = name
	}

	if err := b.writeUserData(ctx, tok.UserID, userData{Role: r, Name: name}); err != nil {
		b.revokeToken(ctx, tok)
		return nil, "", err
	}

	if err := b.adopt(ctx, tok); err != nil {
		b.revokeToken(ctx, tok)
		return nil, "", err
	}

	return identityOf(tok, name), r, nil
}

// Revoke drops the active credential. The provider-side revoke is best
// effort; the local effect always succeeds and the call never fails the
// user out of signing out.
func (b *Backend) Revoke(ctx context.Context) error {
	b.mu.Lock()
	tok := b.token
	b.token = nil
	b.stopExpiryLocked()
	b.mu.Unlock()

	if tok != nil {
		b.revokeRemote(ctx, tok)
	}
	if err := b.store.Remove(ctx, credentialKey); err != nil {
		// The in-memory credential is already gone; a stale persisted
		// token is caught by Resume's expiry check on next start.
		return nil
	}
	return nil
}

// Resume restores the persisted credential. An expired or absent token
// resolves to signed-out. A provider that is unreachable while the token is
// still within its lifetime resolves to the token's identity (offline
// grace); the expiry watcher bounds how long that grace lasts.
func (b *Backend) Resume(ctx context.Context) (*backend.Identity, role.Role, error) {
	raw, err := b.store.Get(ctx, credentialKey)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	tok, err := parseIDToken(string(raw))
	if err != nil || !tok.ExpiresAt.After(b.now()) {
		_ = b.store.Remove(ctx, credentialKey)
		return nil, "", nil
	}

	if valid, err := b.lookup(ctx, tok); err == nil && !valid {
		// Provider reached and the token is no longer honored.
		_ = b.store.Remove(ctx, credentialKey)
		return nil, "", nil
	}

	r, cachedName, err := b.lookupRole(ctx, tok.UserID)
	if err != nil {
		return nil, "", err
	}

	if err := b.adopt(ctx, tok); err != nil {
		return nil, "", err
	}

	return identityOf(tok, cachedName), r, nil
}

// OnIdentityChanged registers fn for provider-driven changes (token expiry,
// remote revocation discovered at expiry).
func (b *Backend) OnIdentityChanged(fn func(backend.Change)) func() {
	return b.listeners.Subscribe(fn)
}

// UpdateDisplayName pushes the new name to the provider and mirrors it in
// the user-data record.
func (b *Backend) UpdateDisplayName(ctx context.Context, name string) error {
	b.mu.Lock()
	tok := b.token
	b.mu.Unlock()

	if tok == nil {
		return errors.New("no active credential")
	}
	if err := b.pushDisplayName(ctx, tok, name); err != nil {
		return err
	}

	r, _, err := b.lookupRole(ctx, tok.UserID)
	if err != nil {
		return err
	}
	return b.writeUserData(ctx, tok.UserID, userData{Role: r, Name: name})
}

// Close stops the expiry watcher.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopExpiryLocked()
}

// adopt makes tok the active credential, persists it, and arms the expiry
// watcher.
func (b *Backend) adopt(ctx context.Context, tok *idToken) error {
	if err := b.store.Set(ctx, credentialKey, []byte(tok.Raw)); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.token = tok
	b.stopExpiryLocked()
	if !b.cfg.DisableExpiryWatch {
		d := tok.ExpiresAt.Sub(b.now())
		if d < 0 {
			d = 0
		}
		b.expiry = time.AfterFunc(d, func() { b.expire(tok) })
	}
	return nil
}

// expire fires when the active token's lifetime ends. The drop is only
// applied if tok is still the active credential; a newer sign-in wins.
func (b *Backend) expire(tok *idToken) {
	b.mu.Lock()
	if b.token != tok {
		b.mu.Unlock()
		return
	}
	b.token = nil
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	_ = b.store.Remove(ctx, credentialKey)

	b.listeners.Notify(backend.Change{})
}

func (b *Backend) stopExpiryLocked() {
	if b.expiry != nil {
		b.expiry.Stop()
		b.expiry = nil
	}
}

// revokeToken undoes a partial credential obtained during a call that is
// about to fail: remote revoke best effort, persisted copy removed.
func (b *Backend) revokeToken(ctx context.Context, tok *idToken) {
	b.revokeRemote(ctx, tok)
	_ = b.store.Remove(ctx, credentialKey)
}

func (b *Backend) lookupRole(ctx context.Context, userID string) (role.Role, string, error) {
	data, err := b.store.Get(ctx, userDataKey+userID)
	if errors.Is(err, snapshot.ErrNotFound) {
		// Accounts predating the directory default to customer.
		return role.Customer, "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	var ud userData
	if err := json.Unmarshal(data, &ud); err != nil {
		return role.Customer, "", nil
	}
	if !ud.Role.Valid() {
		ud.Role = role.Customer
	}
	return ud.Role, ud.Name, nil
}

func (b *Backend) writeUserData(ctx context.Context, userID string, ud userData) error {
	data, err := json.Marshal(ud)
	if err != nil {
		return err
	}
	if err := b.store.Set(ctx, userDataKey+userID, data); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	return nil
}

func identityOf(tok *idToken, cachedName string) *backend.Identity {
	name := tok.DisplayName
	if name == "" {
		name = cachedName
	}
	return &backend.Identity{
		ID:          tok.UserID,
		Email:       tok.Email,
		DisplayName: name,
		TokenExpiry: tok.ExpiresAt,
	}
}

// ---- provider protocol ----

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	IDToken string `json:"idToken"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *Backend) signIn(ctx context.Context, email, pw string) (*idToken, error) {
	return b.credentialCall(ctx, "/v1/accounts:signIn", email, pw)
}

func (b *Backend) signUp(ctx context.Context, email, pw string) (*idToken, error) {
	return b.credentialCall(ctx, "/v1/accounts:signUp", email, pw)
}

func (b *Backend) credentialCall(ctx context.Context, path, email, pw string) (*idToken, error) {
	var resp signInResponse
	status, err := b.post(ctx, path, signInRequest{Email: email, Password: pw}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusConflict || resp.Error.Message == "EMAIL_EXISTS":
		return nil, backend.ErrEmailInUse
	case status == http.StatusUnauthorized || status == http.StatusBadRequest:
		return nil, backend.ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("%w: provider status %d", backend.ErrUnavailable, status)
	}

	tok, err := parseIDToken(resp.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	return tok, nil
}

func (b *Backend) pushDisplayName(ctx context.Context, tok *idToken, name string) error {
	body := map[string]string{"idToken": tok.Raw, "displayName": name}
	status, err := b.post(ctx, "/v1/accounts:update", body, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: provider status %d", backend.ErrUnavailable, status)
	}
	return nil
}

// lookup asks the provider whether tok is still honored. valid=false only
// on an authoritative provider "no"; transport errors are returned as-is so
// the caller can apply offline grace.
func (b *Backend) lookup(ctx context.Context, tok *idToken) (valid bool, err error) {
	body := map[string]string{"idToken": tok.Raw}
	status, err := b.post(ctx, "/v1/accounts:lookup", body, nil)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

func (b *Backend) revokeRemote(ctx context.Context, tok *idToken) {
	body := map[string]string{"idToken": tok.Raw}
	_, _ = b.post(ctx, "/v1/accounts:revoke", body, nil)
}

func (b *Backend) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", b.cfg.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
