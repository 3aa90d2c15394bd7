package sessionkit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/homechef/sessionkit/backend"
	"github.com/homechef/sessionkit/role"
	"github.com/homechef/sessionkit/snapshot"
)

// Manager owns the canonical session. All mutating operations are
// serialized on a single mutex: a logout racing a login resolves to
// whichever completed last, and the snapshot store never sees interleaved
// writes for the session key. Backend-driven identity changes go through
// the same mutex, ordered by arrival time.
type Manager struct {
	config  Config
	backend backend.Backend
	store   snapshot.Store
	logger  *slog.Logger
	audit   *auditDispatcher
	metrics *Metrics
	events  *eventDispatcher

	// opMu serializes Start/Login/Signup/Logout/UpdateProfile and the
	// backend identity-change handler. started and closed are guarded by
	// it too.
	opMu    sync.Mutex
	started bool
	closed  bool

	// stateMu guards the fields read by Current without taking opMu.
	stateMu    sync.RWMutex
	state      State
	session    *Session
	optimistic *Session

	unsubBackend func()
}

// Current returns the manager's state and a copy of the session it is
// based on. During StateUnknown the returned session, when non-nil, is the
// unconfirmed persisted snapshot: good enough to render optimistically,
// never good enough to redirect on.
func (m *Manager) Current() (State, *Session) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	switch m.state {
	case StateAuthenticated:
		cp := *m.session
		return m.state, &cp
	case StateUnknown:
		if m.optimistic != nil {
			cp := *m.optimistic
			return m.state, &cp
		}
	}
	return m.state, nil
}

// Subscribe registers a session-changed listener and returns its
// unsubscribe function. Listeners receive events in commit order on a
// dispatcher goroutine; repeated identical events are legal and must be
// treated as no-ops.
func (m *Manager) Subscribe(fn func(Event)) func() {
	return m.events.subscribe(fn)
}

// MetricsSnapshot copies the manager's counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return m.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded under
// back-pressure.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}

// Close tears down the backend subscription and the dispatchers. Pending
// events are drained before Close returns. Operations after Close fail
// with ErrClosed.
func (m *Manager) Close() {
	if m == nil {
		return
	}

	m.opMu.Lock()
	if m.closed {
		m.opMu.Unlock()
		return
	}
	m.closed = true
	unsub := m.unsubBackend
	m.unsubBackend = nil
	m.opMu.Unlock()

	if unsub != nil {
		unsub()
	}
	if closer, ok := m.backend.(interface{ Close() }); ok {
		closer.Close()
	}
	m.events.Close()
	m.audit.Close()
}

// ensureReadyLocked is called with opMu held by every operation that
// requires a started, open manager.
func (m *Manager) ensureReadyLocked() error {
	if m.closed {
		return ErrClosed
	}
	if !m.started {
		return ErrNotStarted
	}
	return nil
}

// commitAuthenticated persists sess, makes it canonical, and publishes. The
// snapshot write happens first: an in-memory session whose snapshot write
// failed must never become observable.
func (m *Manager) commitAuthenticated(ctx context.Context, sess Session) error {
	if err := m.persistSession(ctx, sess); err != nil {
		return err
	}
	m.adoptInMemory(sess)
	return nil
}

// persistSession writes the snapshot without touching in-memory state or
// publishing anything. Callers that need to publish intermediate events
// around the adoption persist first, so a write failure stays invisible.
func (m *Manager) persistSession(ctx context.Context, sess Session) error {
	data, err := snapshot.EncodeRecord(sess.record())
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, m.config.Snapshot.Key, data); err != nil {
		return fmt.Errorf("persist session snapshot: %w", err)
	}
	return nil
}

// adoptInMemory makes an already persisted session canonical and publishes.
func (m *Manager) adoptInMemory(sess Session) {
	m.stateMu.Lock()
	cp := sess
	m.state = StateAuthenticated
	m.session = &cp
	m.optimistic = nil
	m.stateMu.Unlock()

	m.publish(Event{State: StateAuthenticated, Session: &cp})
}

// commitUnauthenticated clears the snapshot and the canonical session and
// publishes. Store failures are logged, not returned: local state always
// converges to signed-out.
func (m *Manager) commitUnauthenticated(ctx context.Context) {
	if err := m.store.Remove(ctx, m.config.Snapshot.Key); err != nil {
		m.logger.Warn("failed to clear session snapshot", "error", err)
	}

	m.stateMu.Lock()
	m.state = StateUnauthenticated
	m.session = nil
	m.optimistic = nil
	m.stateMu.Unlock()

	m.publish(Event{State: StateUnauthenticated})
}

func (m *Manager) publish(event Event) {
	m.metrics.Inc(MetricSessionPublished)
	m.events.publish(event)
}

// buildSession attaches the resolved role to an identity. Backend-reported
// display name wins; the cached name is the fallback for providers that
// never stored one.
func (m *Manager) buildSession(id *backend.Identity, r role.Role, cachedName string) Session {
	name := id.DisplayName
	if name == "" {
		name = cachedName
	}
	return Session{
		ID:    id.ID,
		Name:  name,
		Email: id.Email,
		Role:  r,
	}
}

func (m *Manager) cachedNameFor(userID string) string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	if m.session != nil && m.session.ID == userID {
		return m.session.Name
	}
	if m.optimistic != nil && m.optimistic.ID == userID {
		return m.optimistic.Name
	}
	return ""
}

func (m *Manager) emitAudit(ctx context.Context, eventType string, success bool, userID, email string, opErr error) {
	if m.audit == nil {
		return
	}
	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	m.audit.emit(ctx, event)
}
