// Package sessionkit is the session and authorization core of a two-role
// mobile client: it owns the canonical "who is signed in and what can they
// do" state between a credential backend and the app's navigation layer.
//
// The package is built around [Manager], constructed through [Builder.Build].
// A Manager mediates between a [backend.Backend] (local credential set or
// remote identity provider) and a [snapshot.Store] (durable per-key
// key-value persistence), exposes Login/Signup/Logout/UpdateProfile, and
// publishes ordered session-changed events that the route package turns
// into navigation decisions.
//
// # Architecture boundaries
//
// sessionkit never constructs UI state and never retries failed operations;
// both are caller policy. The Session value is owned exclusively by the
// Manager: stores persist a serialized snapshot of it, listeners receive a
// copy, and neither may fabricate one.
//
// # State machine
//
// A Manager starts in StateUnknown and leaves it exactly once, when Start's
// reconciliation completes. After that it moves between StateAuthenticated
// and StateUnauthenticated and never returns to StateUnknown. A role change
// always passes through StateUnauthenticated; listeners never observe a
// silent Authenticated(A) to Authenticated(B) transition.
package sessionkit
