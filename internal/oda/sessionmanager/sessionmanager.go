// Package sessionmanager implements C9: SessionManager, owner of the
// global set of Sessions, a concurrency cap, and idle-timeout reaping.
package sessionmanager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
	"github.com/onedragon-agent/oda-agent/internal/oda/metrics"
	"github.com/onedragon-agent/oda-agent/internal/oda/session"
)

// Factory is the subset of AgentFactory each Session needs to create
// executors lazily.
type Factory = session.Factory

// Manager is C9: SessionManager.
type Manager struct {
	mu       sync.Mutex
	sessions map[engine.Triple]*session.Session
	limit    int // 0 == unlimited

	factory  Factory
	engineDB engine.SessionStore
	log      *logging.Logger
	metrics  *metrics.Registry

	reaperCancel context.CancelFunc
}

// SetMetrics attaches a metrics registry; counters increment from the
// next Create/DeleteSession call onward. Optional — nil is a no-op.
func (m *Manager) SetMetrics(reg *metrics.Registry) {
	m.metrics = reg
}

// New constructs an empty Manager. engineDB is consulted on pool-miss
// lookups (§9 open question 2: materialize-on-miss if the engine knows
// the triple, else null).
func New(factory Factory, engineDB engine.SessionStore) *Manager {
	return &Manager{
		sessions: make(map[engine.Triple]*session.Session),
		factory:  factory,
		engineDB: engineDB,
		log:      logging.Named("sessionmanager"),
	}
}

// SetConcurrentLimit updates the cap. Does not retroactively evict.
func (m *Manager) SetConcurrentLimit(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = n
}

// CreateSession generates sessionID if absent, returning the existing
// Session if the triple already has a pool entry (idempotent on
// collision). Fails Overloaded if the cap is set and would be exceeded.
func (m *Manager) CreateSession(ctx context.Context, appName, userID, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	triple := engine.Triple{AppName: appName, UserID: userID, SessionID: sessionID}

	m.mu.Lock()
	if existing, ok := m.sessions[triple]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	if m.limit > 0 && len(m.sessions) >= m.limit {
		m.mu.Unlock()
		return nil, errkind.Wrap(errkind.ErrOverloaded, "concurrent session limit %d reached", m.limit)
	}
	s := session.New(triple, m.factory)
	m.sessions[triple] = s
	m.mu.Unlock()

	if err := m.engineDB.Create(ctx, triple, nil); err != nil {
		m.mu.Lock()
		delete(m.sessions, triple)
		m.mu.Unlock()
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.SessionsCreated.Inc()
	}
	m.log.Info("created session %s/%s/%s", appName, userID, sessionID)
	return s, nil
}

// GetSession returns the pool entry on hit. On miss, it consults the
// engine's session store: if the engine knows the triple, a fresh
// Session wrapper is materialized and cached; otherwise nil is returned.
func (m *Manager) GetSession(ctx context.Context, appName, userID, sessionID string) (*session.Session, error) {
	triple := engine.Triple{AppName: appName, UserID: userID, SessionID: sessionID}

	m.mu.Lock()
	if existing, ok := m.sessions[triple]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	exists, err := m.engineDB.Get(ctx, triple)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[triple]; ok {
		return existing, nil
	}
	s := session.New(triple, m.factory)
	m.sessions[triple] = s
	return s, nil
}

// ListSessions returns every Session whose triple matches (app, user).
func (m *Manager) ListSessions(appName, userID string) []*session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*session.Session
	for triple, s := range m.sessions {
		if triple.AppName == appName && triple.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// DeleteSession removes the pool entry (if any), disposes it, and
// instructs the engine to delete its session record. Idempotent.
func (m *Manager) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	triple := engine.Triple{AppName: appName, UserID: userID, SessionID: sessionID}

	m.mu.Lock()
	s, ok := m.sessions[triple]
	if ok {
		delete(m.sessions, triple)
	}
	m.mu.Unlock()

	if ok {
		s.Cleanup()
		if m.metrics != nil {
			m.metrics.SessionsDeleted.Inc()
		}
	}
	return m.engineDB.Delete(ctx, triple)
}

// CleanupInactiveSessions deletes every Session whose LastAccess is
// older than timeout. Cooperative: call from a host-driven ticker, or
// see StartIdleReaper.
func (m *Manager) CleanupInactiveSessions(ctx context.Context, timeout time.Duration) {
	cutoff := time.Now().Add(-timeout)

	m.mu.Lock()
	var stale []engine.Triple
	for triple, s := range m.sessions {
		if s.LastAccess().Before(cutoff) {
			stale = append(stale, triple)
		}
	}
	m.mu.Unlock()

	for _, triple := range stale {
		if err := m.DeleteSession(ctx, triple.AppName, triple.UserID, triple.SessionID); err != nil {
			m.log.Warn("idle reap of %s/%s/%s failed: %v", triple.AppName, triple.UserID, triple.SessionID, err)
		} else {
			m.log.Info("idle-reaped session %s/%s/%s", triple.AppName, triple.UserID, triple.SessionID)
		}
	}
}

// StartIdleReaper launches a ticker goroutine invoking
// CleanupInactiveSessions every interval, until ctx is cancelled or Stop
// is called. Supplemented convenience over the bare cooperative
// contract in spec §5 — the host still owns the schedule.
func (m *Manager) StartIdleReaper(ctx context.Context, interval, timeout time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	m.reaperCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupInactiveSessions(ctx, timeout)
			}
		}
	}()
}

// Stop cancels the idle reaper, if started.
func (m *Manager) Stop() {
	if m.reaperCancel != nil {
		m.reaperCancel()
	}
}

// DrainAll disposes every Session in the pool, used by Context.stop().
func (m *Manager) DrainAll() {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for triple, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, triple)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Cleanup()
	}
}
