// Package role defines the authorization categories attached to a session.
//
// A Role is resolved separately from the authenticated identity and gates
// which part of the app a session may navigate into.
package role

import "fmt"

// Role is an authorization category. The zero value is not a valid role.
type Role string

const (
	// Customer is the default role for self-registered accounts.
	Customer Role = "customer"
	// Chef grants access to the chef-admin surface.
	Chef Role = "chef"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case Customer, Chef:
		return true
	}
	return false
}

// String returns the wire form of the role.
func (r Role) String() string {
	return string(r)
}

// Parse converts a stored or wire role string into a Role.
func Parse(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
