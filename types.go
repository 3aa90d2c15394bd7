package sessionkit

import (
	"github.com/homechef/sessionkit/role"
	"github.com/homechef/sessionkit/snapshot"
)

// State is the manager's position in the session state machine.
type State uint8

const (
	// StateUnknown holds only between construction and the completion of
	// Start's reconciliation. Navigation must not redirect while Unknown.
	StateUnknown State = iota
	// StateUnauthenticated means no session exists.
	StateUnauthenticated
	// StateAuthenticated means a session with a resolved role exists.
	StateAuthenticated
)

// String returns a stable name for logging.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return "invalid"
}

// Session is the canonical logged-in state. A Session exists if and only if
// a currently authenticated identity has a resolved role; its absence means
// logged out. Sessions are values: the Manager hands out copies, never its
// own instance.
type Session struct {
	ID    string
	Name  string
	Email string
	Role  role.Role
}

// IsChef reports whether the session may enter the chef-admin surface.
func (s Session) IsChef() bool {
	return s.Role == role.Chef
}

// Event is delivered to session-changed subscribers. Session is nil unless
// State is StateAuthenticated. Consumers must treat repeated identical
// events as no-ops.
type Event struct {
	State   State
	Session *Session
}

func (s Session) record() snapshot.Record {
	return snapshot.Record{
		ID:    s.ID,
		Name:  s.Name,
		Email: s.Email,
		Role:  s.Role.String(),
	}
}

func sessionFromRecord(r snapshot.Record) (Session, bool) {
	parsed, err := role.Parse(r.Role)
	if err != nil || r.ID == "" {
		return Session{}, false
	}
	return Session{ID: r.ID, Name: r.Name, Email: r.Email, Role: parsed}, true
}
