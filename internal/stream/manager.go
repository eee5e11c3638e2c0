package stream

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tspipe/tspipe/internal/segstore"
	"github.com/tspipe/tspipe/internal/session"
	"github.com/tspipe/tspipe/internal/stats"
)

// Manager registers itself as the session manager's sole "create_session"
// trigger sink, spinning up one Runner per live stream and exposing a
// Registry the HTTP surface queries by name.
type Manager struct {
	cfg   segstore.Config
	log   zerolog.Logger
	stats *stats.Reporter

	mu      sync.RWMutex
	runners map[string]*Runner
}

// NewManager builds a stream.Manager and registers it against sm so every
// future session.Manager.Create call spins up a matching Runner. reporter
// may be nil if the §6 enable_metrics flag is off.
func NewManager(sm *session.Manager, cfg segstore.Config, reporter *stats.Reporter, log zerolog.Logger) *Manager {
	m := &Manager{cfg: cfg, log: log, stats: reporter, runners: make(map[string]*Runner)}
	sm.RegisterTrigger("create_session", m.onCreateSession)
	return m
}

func (m *Manager) onCreateSession(name string, sub *session.Subscription) {
	r := newRunner(name, m.cfg, m.log)
	if m.stats != nil {
		r.counters = m.stats.Counters(name)
	}

	m.mu.Lock()
	m.runners[name] = r
	m.mu.Unlock()

	go func() {
		r.Run(sub)
		m.mu.Lock()
		delete(m.runners, name)
		m.mu.Unlock()
		if m.stats != nil {
			m.stats.Forget(name)
		}
	}()
}

// Lookup implements Registry for the HTTP surface.
func (m *Manager) Lookup(name string) (*segstore.Store, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runners[name]
	if !ok {
		return nil, false
	}
	return r.Store(), true
}
