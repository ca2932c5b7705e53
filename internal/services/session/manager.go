// -----------------------------------------------------------------------
// Session manager - registry of live editor sessions
// -----------------------------------------------------------------------

package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/autosave"
)

// sweepInterval is how often the manager looks for idle sessions
const sweepInterval = time.Minute

// Manager opens and tracks editor sessions, one per entry. Sessions idle
// past the configured timeout are flushed and closed by the sweeper.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	stopCh   chan struct{}
	started  bool

	entries     interfaces.EntryStorage
	catalog     interfaces.CatalogService
	saver       interfaces.EntrySaver
	events      interfaces.EventService
	editorCfg   common.EditorConfig
	autosaveCfg autosave.Config

	logger arbor.ILogger
}

// NewManager creates a session manager over the given storage, catalog and
// save transport
func NewManager(entries interfaces.EntryStorage, catalog interfaces.CatalogService, saver interfaces.EntrySaver, events interfaces.EventService, editorCfg common.EditorConfig, autosaveCfg common.AutosaveConfig, logger arbor.ILogger) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		entries:   entries,
		catalog:   catalog,
		saver:     saver,
		events:    events,
		editorCfg: editorCfg,
		autosaveCfg: autosave.Config{
			Debounce:   autosaveCfg.Debounce,
			MaxDelay:   autosaveCfg.MaxDelay,
			MaxRetries: autosaveCfg.MaxRetries,
		},
		logger: logger,
	}
}

// Open returns the live session for an entry, creating one from storage on
// first use
func (m *Manager) Open(entryID string) (*Session, error) {
	if entryID == "" {
		return nil, fmt.Errorf("entry ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[entryID]; ok {
		return s, nil
	}

	entry, err := m.entries.GetEntry(entryID)
	if err != nil {
		return nil, err
	}

	s, err := newSession(entry, m.catalog, m.saver, m.autosaveCfg, m.editorCfg.IdleNormalizeDelay, m.events, m.logger)
	if err != nil {
		return nil, err
	}
	m.sessions[entryID] = s

	m.logger.Info().
		Str("entry_id", entryID).
		Int("open_sessions", len(m.sessions)).
		Msg("Editor session opened")

	return s, nil
}

// Get returns the live session for an entry without creating one
func (m *Manager) Get(entryID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[entryID]
	return s, ok
}

// Close flushes and removes one session
func (m *Manager) Close(entryID string) {
	m.mu.Lock()
	s, ok := m.sessions[entryID]
	delete(m.sessions, entryID)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}

// CloseAll flushes and removes every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// CloseIdle flushes and removes sessions with no activity since the cutoff.
// Returns how many were closed.
func (m *Manager) CloseIdle(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}

	if len(expired) > 0 {
		m.logger.Info().Int("closed", len(expired)).Msg("Idle sessions closed")
	}
	return len(expired)
}

// Count reports how many sessions are open
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start launches the idle sweeper. No-op when the idle timeout is disabled.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.editorCfg.SessionIdleTimeout <= 0 {
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})

	go m.sweep(m.stopCh)
}

// Stop halts the sweeper and closes every session
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.started {
		close(m.stopCh)
		m.started = false
	}
	m.mu.Unlock()

	m.CloseAll()
}

func (m *Manager) sweep(stopCh <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CloseIdle(m.editorCfg.SessionIdleTimeout)
		case <-stopCh:
			return
		}
	}
}
