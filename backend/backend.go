// Package backend defines the credential backend capability: authenticate,
// register, revoke, and identity-change notification. Two implementations
// exist, a seedable local credential set (backend/local) and a remote
// identity provider client (backend/remote); the session manager is written
// against this contract and never against a concrete variant.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/homechef/sessionkit/role"
)

// Typed authentication failures. ErrInvalidCredentials and ErrRoleMismatch
// intentionally share the same message: a caller that demanded a role must
// not be able to learn, from the rendered error, whether the password or the
// role check failed. They remain distinct sentinels for errors.Is.
var (
	ErrInvalidCredentials = errors.New("cannot sign in")
	ErrRoleMismatch       = errors.New("cannot sign in")
	ErrEmailInUse         = errors.New("email already in use")
	ErrUnavailable        = errors.New("credential backend unavailable")
)

// Identity is the opaque result of a successful authentication or
// registration. A new sign-in produces a new Identity even for the same
// person; the struct is never mutated after the backend returns it.
type Identity struct {
	ID          string
	Email       string
	DisplayName string

	// TokenExpiry is set by token-based backends and zero otherwise.
	TokenExpiry time.Time
}

// Change is delivered to identity-change listeners. A nil Identity means
// the backend no longer holds an authenticated identity (revocation, token
// expiry, remote sign-out).
type Change struct {
	Identity *Identity
	Role     role.Role
}

// AnyRole passed as the wanted role disables the role-equality check.
const AnyRole = role.Role("")

// Backend is the credential backend capability.
//
// Authenticate and Register return the new active identity together with
// the account's resolved role. When want is not AnyRole, Authenticate
// performs an exact-equality check against the account's role and fails
// with ErrRoleMismatch on disagreement, revoking any partial credential it
// obtained first; no partial sign-in is ever observable.
//
// Register fails with ErrEmailInUse for a duplicate email and otherwise
// atomically creates the account and makes it the active identity.
//
// Revoke is idempotent and must succeed locally even when a network revoke
// fails.
//
// Resume is the authoritative startup resolution: it restores whatever
// credential the backend persisted and reports the current identity, or
// (nil, "", nil) when there is none. It may require a network round trip.
//
// OnIdentityChanged registers a listener for changes that originate inside
// the backend rather than from a direct call on it. The local variant never
// fires spontaneously. The returned function unsubscribes.
type Backend interface {
	Authenticate(ctx context.Context, email, password string, want role.Role) (*Identity, role.Role, error)
	Register(ctx context.Context, email, password, name string, r role.Role) (*Identity, role.Role, error)
	Revoke(ctx context.Context) error
	Resume(ctx context.Context) (*Identity, role.Role, error)
	OnIdentityChanged(fn func(Change)) (unsubscribe func())
}

// ProfileUpdater is an optional capability: backends that hold their own
// copy of the display name implement it so profile edits propagate. The
// session manager calls it best-effort.
type ProfileUpdater interface {
	UpdateDisplayName(ctx context.Context, name string) error
}
