package sessionkit

import (
	"errors"

	"github.com/homechef/sessionkit/backend"
)

// Backend failure sentinels re-exported so callers need only this package
// for errors.Is checks.
var (
	// ErrInvalidCredentials reports a failed credential check.
	ErrInvalidCredentials = backend.ErrInvalidCredentials
	// ErrRoleMismatch reports valid credentials for an account whose role
	// differs from the one the caller demanded. Its rendered text matches
	// ErrInvalidCredentials so the caller cannot leak which check failed.
	ErrRoleMismatch = backend.ErrRoleMismatch
	// ErrEmailInUse reports a registration against an existing email.
	ErrEmailInUse = backend.ErrEmailInUse
	// ErrBackendUnavailable reports a network or provider failure.
	ErrBackendUnavailable = backend.ErrUnavailable
)

var (
	// ErrNotAuthenticated is returned by operations requiring a session
	// when none exists.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotStarted is returned when an operation runs before Start.
	ErrNotStarted = errors.New("session manager not started")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("session manager already started")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session manager closed")
)
