package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/autosave"
	"github.com/ternarybob/scribo/internal/services/session"
)

// AppState is the aggregate editor state across open sessions
type AppState string

const (
	StateIdle    AppState = "idle"    // every open session is at rest
	StateEditing AppState = "editing" // unsaved changes are waiting out a debounce
	StateSaving  AppState = "saving"  // at least one save is in flight
)

// Service aggregates application status: entry counts from storage, the open
// session count, and a live editor state derived from autosave status events.
type Service struct {
	mu       sync.RWMutex
	statuses map[string]autosave.Status
	started  time.Time
	dispose  func()

	entries  interfaces.EntryStorage
	sessions *session.Manager
	events   interfaces.EventService
	logger   arbor.ILogger
}

// NewService creates a new status service
func NewService(entries interfaces.EntryStorage, sessions *session.Manager, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		statuses: make(map[string]autosave.Status),
		started:  time.Now(),
		entries:  entries,
		sessions: sessions,
		events:   events,
		logger:   logger,
	}
}

// GetState returns the aggregate editor state (thread-safe)
func (s *Service) GetState() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// stateLocked derives the aggregate: any in-flight save wins, any unsaved
// work ranks above idle. Caller holds at least a read lock.
func (s *Service) stateLocked() AppState {
	state := StateIdle
	for _, status := range s.statuses {
		switch status {
		case autosave.StatusSaving:
			return StateSaving
		case autosave.StatusUnsaved, autosave.StatusError:
			state = StateEditing
		}
	}
	return state
}

// GetStatus returns the full status document for the status endpoint
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	state := s.stateLocked()
	s.mu.RUnlock()

	result := map[string]interface{}{
		"state":         string(state),
		"version":       common.GetVersion(),
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"open_sessions": s.sessions.Count(),
		"timestamp":     time.Now(),
	}

	stats, err := s.entries.GetStats()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load entry stats")
		return result
	}
	result["total_entries"] = stats.TotalEntries
	result["published_entries"] = stats.PublishedEntries
	if !stats.LastUpdated.IsZero() {
		result["last_updated"] = stats.LastUpdated
	}

	return result
}

// SubscribeToSessionEvents tracks autosave status flips so the aggregate
// state stays live. Entries back at rest drop out of the index.
func (s *Service) SubscribeToSessionEvents() {
	dispose, err := s.events.Subscribe(interfaces.EventStatusChanged, func(ctx context.Context, event interfaces.Event) error {
		update, ok := event.Payload.(session.StatusUpdate)
		if !ok {
			return nil
		}

		s.mu.Lock()
		if update.Status == autosave.StatusSaved {
			delete(s.statuses, update.EntryID)
		} else {
			s.statuses[update.EntryID] = update.Status
		}
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to subscribe to session status events")
		return
	}
	s.dispose = dispose

	s.logger.Info().Msg("StatusService subscribed to session events")
}

// Close drops the event subscription
func (s *Service) Close() {
	if s.dispose != nil {
		s.dispose()
		s.dispose = nil
	}
}
