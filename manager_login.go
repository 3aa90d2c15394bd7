package sessionkit

import (
	"context"

	"github.com/homechef/sessionkit/role"
)

// Login authenticates against the credential backend and, on success,
// commits and publishes the new session. When want is not backend.AnyRole
// the backend enforces an exact role match and fails with ErrRoleMismatch.
//
// On any failure the canonical session and the persisted snapshot are left
// untouched and no event is published; the typed error is for the caller to
// display, never retried here.
func (m *Manager) Login(ctx context.Context, email, password string, want role.Role) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.ensureReadyLocked(); err != nil {
		return Session{}, err
	}

	id, r, err := m.backend.Authenticate(ctx, email, password, want)
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emitAudit(ctx, auditEventLoginFailure, false, "", email, err)
		return Session{}, err
	}

	sess := m.buildSession(id, r, m.cachedNameFor(id.ID))
	if err := m.adoptSessionLocked(ctx, sess); err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emitAudit(ctx, auditEventLoginFailure, false, id.ID, email, err)
		return Session{}, err
	}

	m.metrics.Inc(MetricLoginSuccess)
	m.emitAudit(ctx, auditEventLoginSuccess, true, sess.ID, sess.Email, nil)
	m.logger.Info("login succeeded", "user_id", sess.ID, "role", sess.Role)

	return sess, nil
}

// Signup registers a new account. Registration and first sign-in are one
// atomic step: the caller observes either a full session or a typed
// failure, never an intermediate unauthenticated state. ErrEmailInUse is
// surfaced verbatim.
func (m *Manager) Signup(ctx context.Context, email, password, name string, r role.Role) (Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if err := m.ensureReadyLocked(); err != nil {
		return Session{}, err
	}

	id, resolved, err := m.backend.Register(ctx, email, password, name, r)
	if err != nil {
		m.metrics.Inc(MetricSignupFailure)
		m.emitAudit(ctx, auditEventSignupFailure, false, "", email, err)
		return Session{}, err
	}

	sess := m.buildSession(id, resolved, name)
	if err := m.adoptSessionLocked(ctx, sess); err != nil {
		m.metrics.Inc(MetricSignupFailure)
		m.emitAudit(ctx, auditEventSignupFailure, false, id.ID, email, err)
		return Session{}, err
	}

	m.metrics.Inc(MetricSignupSuccess)
	m.emitAudit(ctx, auditEventSignupSuccess, true, sess.ID, sess.Email, nil)
	m.logger.Info("signup succeeded", "user_id", sess.ID, "role", sess.Role)

	return sess, nil
}

// adoptSessionLocked commits sess as canonical. If the backend sign-in
// succeeded but the snapshot write fails, the backend credential is revoked
// so the device never holds an unpersistable session.
func (m *Manager) adoptSessionLocked(ctx context.Context, sess Session) error {
	m.stateMu.RLock()
	prevRoleDiffers := m.state == StateAuthenticated && m.session.Role != sess.Role
	m.stateMu.RUnlock()

	// Persist before publishing anything: a failed login must emit zero
	// events, including the intermediate sign-out leg below.
	if err := m.persistSession(ctx, sess); err != nil {
		if revokeErr := m.backend.Revoke(ctx); revokeErr != nil {
			m.logger.Warn("revoke after failed snapshot write also failed", "error", revokeErr)
		}
		return err
	}

	// An explicit login over an existing session of a different role is a
	// deliberate switch: make the sign-out leg observable rather than
	// jumping Authenticated(A) to Authenticated(B) in one event.
	if prevRoleDiffers {
		m.publish(Event{State: StateUnauthenticated})
	}
	m.adoptInMemory(sess)
	return nil
}
