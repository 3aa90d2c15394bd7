package sessionkit

import (
	"context"

	"github.com/homechef/sessionkit/backend"
)

// Logout revokes the backend credential, clears the persisted snapshot and
// the canonical session, and publishes an unauthenticated event. It is
// idempotent and never fails the caller: a network revoke error is logged
// and swallowed because local state must always converge to signed-out.
func (m *Manager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.ensureReadyLocked(); err != nil {
		return err
	}

	m.stateMu.RLock()
	var userID string
	if m.session != nil {
		userID = m.session.ID
	}
	m.stateMu.RUnlock()

	if err := m.backend.Revoke(ctx); err != nil {
		m.logger.Warn("backend revoke failed, continuing local sign-out", "error", err)
	}

	m.commitUnauthenticated(ctx)

	m.metrics.Inc(MetricLogout)
	m.emitAudit(ctx, auditEventLogout, true, userID, "", nil)
	m.logger.Info("logout completed", "user_id", userID)

	return nil
}

// UpdateProfile changes the session's display name, preserving id, email,
// and role exactly. The new name is written through to the snapshot store
// and published; backends holding their own copy of the name receive it
// best-effort. Fails with ErrNotAuthenticated when no session exists.
func (m *Manager) UpdateProfile(ctx context.Context, name string) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.ensureReadyLocked(); err != nil {
		return Session{}, err
	}

	m.stateMu.RLock()
	authenticated := m.state == StateAuthenticated
	var updated Session
	if authenticated {
		updated = *m.session
	}
	m.stateMu.RUnlock()

	if !authenticated {
		return Session{}, ErrNotAuthenticated
	}

	updated.Name = name

	if pu, ok := m.backend.(backend.ProfileUpdater); ok {
		if err := pu.UpdateDisplayName(ctx, name); err != nil {
			m.logger.Warn("backend display name push failed", "error", err)
		}
	}

	if err := m.commitAuthenticated(ctx, updated); err != nil {
		return Session{}, err
	}

	m.metrics.Inc(MetricProfileUpdate)
	m.emitAudit(ctx, auditEventProfileUpdate, true, updated.ID, updated.Email, nil)

	return updated, nil
}
