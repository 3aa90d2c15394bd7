// Package route turns published session state into navigation decisions.
// The gate is a pure function of the latest session-changed event: it never
// stores authorization state of its own and re-evaluates on every event, so
// a role-restricted screen loses its route the moment the session's role
// stops matching.
package route

import (
	"strings"
	"sync"

	"github.com/homechef/sessionkit"
	"github.com/homechef/sessionkit/role"
)

// Default entry routes, mirroring the app's navigation layout.
const (
	LoginRoute         = "/login"
	CustomerEntryRoute = "/tabs/home"
	ChefEntryRoute     = "/chef-admin/dashboard"
)

// Table maps each role to the route prefixes it may occupy. Routes outside
// every role's prefix set are the unauthenticated complement.
type Table struct {
	prefixes map[role.Role][]string
}

// NewTable builds a table from a role-to-prefixes mapping. Prefixes are
// matched against whole path segments: "/tabs" matches "/tabs/home" but not
// "/tabsx".
func NewTable(prefixes map[role.Role][]string) Table {
	cp := make(map[role.Role][]string, len(prefixes))
	for r, ps := range prefixes {
		cp[r] = append([]string(nil), ps...)
	}
	return Table{prefixes: cp}
}

// DefaultTable reflects the app's screen layout: customers own /tabs, chefs
// own /chef-admin, and both may visit the shared profile surface.
func DefaultTable() Table {
	return NewTable(map[role.Role][]string{
		role.Customer: {"/tabs", "/profile"},
		role.Chef:     {"/chef-admin", "/profile"},
	})
}

// Allowed reports whether a session with role r may occupy path.
func (t Table) Allowed(r role.Role, path string) bool {
	for _, prefix := range t.prefixes[r] {
		if matchPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Unauthenticated reports whether path needs no session: it is the
// complement of every role's prefix set.
func (t Table) Unauthenticated(path string) bool {
	for _, ps := range t.prefixes {
		for _, prefix := range ps {
			if matchPrefix(path, prefix) {
				return false
			}
		}
	}
	return true
}

func matchPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Decision is the gate's verdict for one session state.
type Decision struct {
	// Route is the redirect target; empty when Redirect is false.
	Route string
	// Redirect is false during StateUnknown: rendering anything but the
	// splash before reconciliation finishes is the classic source of
	// auth flicker.
	Redirect bool
}

// Gate derives redirect intents from session events and hands them to a
// navigate callback, deduplicating against the route the app is already on.
type Gate struct {
	table    Table
	entries  map[role.Role]string
	login    string
	navigate func(string)

	mu      sync.Mutex
	current string
}

// NewGate builds a gate over table. navigate is invoked with the target
// route for every redirect intent; it must be safe to call from the
// manager's event dispatch goroutine.
func NewGate(table Table, navigate func(string)) *Gate {
	return &Gate{
		table: table,
		entries: map[role.Role]string{
			role.Customer: CustomerEntryRoute,
			role.Chef:     ChefEntryRoute,
		},
		login:    LoginRoute,
		navigate: navigate,
	}
}

// WithEntry overrides the entry route for a role.
func (g *Gate) WithEntry(r role.Role, route string) *Gate {
	g.entries[r] = route
	return g
}

// WithLogin overrides the unauthenticated entry route.
func (g *Gate) WithLogin(route string) *Gate {
	g.login = route
	return g
}

// Decide is the pure policy: given a session state, where should the app
// be? It consults nothing but its arguments.
func (g *Gate) Decide(state sessionkit.State, sess *sessionkit.Session) Decision {
	switch state {
	case sessionkit.StateUnknown:
		return Decision{}
	case sessionkit.StateAuthenticated:
		if sess != nil {
			if entry, ok := g.entries[sess.Role]; ok {
				return Decision{Route: entry, Redirect: true}
			}
		}
		// Authenticated with an unroutable role: treat as unauthenticated
		// rather than leaving a gated screen mounted.
		return Decision{Route: g.login, Redirect: true}
	default:
		return Decision{Route: g.login, Redirect: true}
	}
}

// OnSessionChanged is the subscriber endpoint: wire it with
// Manager.Subscribe. Redirecting to the current route is a no-op, and a
// redirect away is issued whenever the current route is no longer allowed
// for the session's role, even if the entry route did not change.
func (g *Gate) OnSessionChanged(event sessionkit.Event) {
	d := g.Decide(event.State, event.Session)
	if !d.Redirect {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == d.Route {
		return
	}
	if event.State == sessionkit.StateAuthenticated && event.Session != nil && g.current != "" &&
		g.table.Allowed(event.Session.Role, g.current) {
		// Already somewhere the role may be; don't yank the user to the
		// entry route on every re-published event.
		return
	}

	g.current = d.Route
	if g.navigate != nil {
		g.navigate(d.Route)
	}
}

// Visit records in-app navigation that did not go through the gate, keeping
// the dedup state honest.
func (g *Gate) Visit(routePath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = routePath
}

// Current returns the route the gate believes the app is on.
func (g *Gate) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}
