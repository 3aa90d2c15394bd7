package sessionkit

import (
	"context"
	"errors"
	"time"

	"github.com/homechef/sessionkit/backend"
	"github.com/homechef/sessionkit/snapshot"
)

const backendEventTimeout = 15 * time.Second

// Start performs the two-phase startup reconciliation.
//
// Phase one reads the persisted snapshot so the UI can render optimistically
// (exposed through Current while the state is still StateUnknown). Phase two
// asks the backend for the authoritative answer via Resume; whatever it says
// overwrites both the in-memory session and the snapshot, and the first
// session-changed event is published. The optimistic snapshot is never
// treated as final.
//
// Start subscribes to the backend's identity-change feed before resolving,
// so provider-driven revocations cannot fall between the two phases. On a
// Resume error the manager stays in StateUnknown and Start may be called
// again; it returns ErrAlreadyStarted only after a successful run.
func (m *Manager) Start(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}

	cached := m.loadSnapshot(ctx)
	if cached != nil {
		m.stateMu.Lock()
		m.optimistic = cached
		m.stateMu.Unlock()
	}

	if m.unsubBackend == nil {
		m.unsubBackend = m.backend.OnIdentityChanged(m.handleBackendChange)
	}

	id, r, err := m.backend.Resume(ctx)
	if err != nil {
		return err
	}

	m.started = true

	if id == nil {
		corrected := cached != nil
		m.commitUnauthenticated(ctx)
		m.finishReconcile(ctx, corrected, "", nil)
		return nil
	}

	sess := m.buildSession(id, r, cachedNameOf(cached, id.ID))
	corrected := cached == nil || *cached != sess
	if err := m.commitAuthenticated(ctx, sess); err != nil {
		// Authoritative state is known but unpersistable; surface it and
		// let the caller retry Start.
		m.started = false
		return err
	}
	m.finishReconcile(ctx, corrected, sess.ID, nil)
	return nil
}

func (m *Manager) finishReconcile(ctx context.Context, corrected bool, userID string, err error) {
	if corrected {
		m.metrics.Inc(MetricReconcileCorrected)
		m.emitAudit(ctx, auditEventReconcileCorrected, true, userID, "", err)
		m.logger.Info("startup reconciliation corrected persisted snapshot", "user_id", userID)
		return
	}
	m.metrics.Inc(MetricReconcileConfirmed)
	m.emitAudit(ctx, auditEventReconcileConfirmed, true, userID, "", err)
}

// loadSnapshot reads the optimistic snapshot. Absence, corruption, and
// store failures all resolve to nil: phase two decides anyway.
func (m *Manager) loadSnapshot(ctx context.Context) *Session {
	data, err := m.store.Get(ctx, m.config.Snapshot.Key)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			m.logger.Warn("snapshot read failed, starting without optimistic state", "error", err)
		}
		return nil
	}

	rec, err := snapshot.DecodeRecord(data)
	if err != nil {
		m.logger.Warn("discarding undecodable session snapshot", "error", err)
		return nil
	}

	sess, ok := sessionFromRecord(rec)
	if !ok {
		return nil
	}
	return &sess
}

// handleBackendChange applies a provider-driven identity change. It takes
// the operation mutex, so an event arriving while a login is in flight is
// applied after that login completes: ordering follows arrival time, and
// the backend's word is final.
func (m *Manager) handleBackendChange(ch backend.Change) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed || !m.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), backendEventTimeout)
	defer cancel()

	if ch.Identity == nil {
		m.stateMu.RLock()
		wasAuthenticated := m.state == StateAuthenticated
		var userID string
		if m.session != nil {
			userID = m.session.ID
		}
		m.stateMu.RUnlock()

		m.commitUnauthenticated(ctx)

		if wasAuthenticated {
			m.metrics.Inc(MetricBackendRevocation)
			m.emitAudit(ctx, auditEventBackendRevocation, true, userID, "", nil)
			m.logger.Info("backend revoked the active identity", "user_id", userID)
		}
		return
	}

	sess := m.buildSession(ch.Identity, ch.Role, m.cachedNameFor(ch.Identity.ID))

	m.stateMu.RLock()
	roleChanged := m.state == StateAuthenticated && m.session.Role != sess.Role
	m.stateMu.RUnlock()

	if err := m.persistSession(ctx, sess); err != nil {
		m.logger.Warn("failed to apply backend identity change", "error", err)
		return
	}

	// A role change must never be observable as a silent
	// Authenticated(A) to Authenticated(B) hop.
	if roleChanged {
		m.publish(Event{State: StateUnauthenticated})
	}
	m.adoptInMemory(sess)
}

func cachedNameOf(cached *Session, userID string) string {
	if cached != nil && cached.ID == userID {
		return cached.Name
	}
	return ""
}
