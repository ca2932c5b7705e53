// -----------------------------------------------------------------------
// Editor session - one entry's engine behind a single lock
// -----------------------------------------------------------------------

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/autosave"
	"github.com/ternarybob/scribo/internal/services/editor"
)

// EntryMeta is the session's editable entry metadata. Edits feed the same
// autosave snapshot diff the document body does.
type EntryMeta struct {
	Title              string `json:"title"`
	EntryDate          string `json:"entry_date"`
	Timezone           string `json:"timezone"`
	ReferenceImageUUID string `json:"reference_image_uuid"`
	IncludeInPublish   bool   `json:"include_in_publish"`
}

// StatusUpdate is the EventStatusChanged payload
type StatusUpdate struct {
	EntryID string          `json:"entry_id"`
	Status  autosave.Status `json:"status"`
}

// SaveNotice is the EventEntrySaved payload
type SaveNotice struct {
	EntryID string `json:"entry_id"`
	Version int    `json:"version"`
}

// ConflictNotice is the EventEntryConflict payload
type ConflictNotice struct {
	EntryID string `json:"entry_id"`
	Message string `json:"message"`
}

// ImageNotice is the EventImageUsed / EventImageReleased payload
type ImageNotice struct {
	EntryID string `json:"entry_id"`
	UUID    string `json:"uuid"`
}

// Session hosts one entry's editor behind a single mutex, the server-side
// stand-in for the browser event loop: client operations run one at a time
// to completion. Saves run off-lock on the coordinator's goroutines; timers
// re-acquire the session before touching the document.
type Session struct {
	entryID string

	mu         sync.Mutex
	editor     *editor.Editor
	meta       EntryMeta
	idleTimer  *time.Timer
	idleDelay  time.Duration
	lastActive time.Time
	closed     bool

	coordinator *autosave.Coordinator
	events      interfaces.EventService
	logger      arbor.ILogger
}

// newSession loads an entry into a fresh editor and arms its autosave
// coordinator against the canonical form
func newSession(entry *models.Entry, catalog interfaces.CatalogService, saver interfaces.EntrySaver, autosaveCfg autosave.Config, idleDelay time.Duration, events interfaces.EventService, logger arbor.ILogger) (*Session, error) {
	s := &Session{
		entryID: entry.ID,
		meta: EntryMeta{
			Title:              entry.Title,
			EntryDate:          entry.EntryDate,
			Timezone:           entry.Timezone,
			ReferenceImageUUID: entry.ReferenceImageUUID,
			IncludeInPublish:   entry.IncludeInPublish,
		},
		idleDelay:  idleDelay,
		lastActive: time.Now(),
		events:     events,
		logger:     logger,
	}

	// Editor callbacks fire inside operations, with the session lock held
	// by the operation itself.
	callbacks := &editor.Callbacks{
		OnContentChanged: func() { s.contentChangedLocked() },
		OnImageAdded: func(uuid string) {
			s.publish(interfaces.EventImageUsed, ImageNotice{EntryID: s.entryID, UUID: uuid})
		},
		OnImageRemoved: func(uuid string) {
			s.publish(interfaces.EventImageReleased, ImageNotice{EntryID: s.entryID, UUID: uuid})
		},
	}

	s.editor = editor.NewEditor(catalog, callbacks, logger)
	if err := s.editor.LoadHTML(entry.HTML); err != nil {
		return nil, fmt.Errorf("failed to load entry %s: %w", entry.ID, err)
	}
	if err := s.editor.RefreshPicker(); err != nil {
		logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("Picker gallery unavailable")
	}

	// The baseline is the canonical render, so reloading an entry does not
	// count as an edit.
	baseline := autosave.Snapshot{
		HTML:               s.editor.HTML(),
		Title:              s.meta.Title,
		Date:               s.meta.EntryDate,
		Timezone:           s.meta.Timezone,
		ReferenceImageUUID: s.meta.ReferenceImageUUID,
		IncludeInPublish:   s.meta.IncludeInPublish,
	}

	s.coordinator = autosave.NewCoordinator(entry.ID, entry.Version, baseline, saver, autosaveCfg, &autosave.Callbacks{
		OnStatusChanged: func(status autosave.Status) {
			s.publish(interfaces.EventStatusChanged, StatusUpdate{EntryID: s.entryID, Status: status})
		},
		OnSaved: func(res *models.SaveResult) {
			s.publish(interfaces.EventEntrySaved, SaveNotice{EntryID: res.EntryID, Version: res.Version})
		},
		OnConflict: func(err error) {
			s.publish(interfaces.EventEntryConflict, ConflictNotice{EntryID: s.entryID, Message: err.Error()})
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("Autosave gave up")
		},
	}, logger)

	return s, nil
}

// EntryID returns the entry this session edits
func (s *Session) EntryID() string {
	return s.entryID
}

// HTML renders the current document
func (s *Session) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.HTML()
}

// Meta returns a copy of the entry metadata
func (s *Session) Meta() EntryMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// Status reports the autosave state
func (s *Session) Status() autosave.Status {
	return s.coordinator.Status()
}

// Version reports the entry version the coordinator holds
func (s *Session) Version() int {
	return s.coordinator.Version()
}

// LastActive reports when a client operation last touched the session
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// UpdateContent replaces the document with the client's live markup. Typing
// syncs arrive this way; full normalization waits for the idle pause, so the
// keystroke path stays cheap.
func (s *Session) UpdateContent(fragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.entryID)
	}
	s.lastActive = time.Now()

	if err := s.editor.Document().Load(fragment); err != nil {
		return err
	}
	s.editor.Images().InitializeUsedImages()
	s.contentChangedLocked()
	return nil
}

// Normalize runs the full pipeline now, cursor preserved
func (s *Session) Normalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastActive = time.Now()
	s.normalizeLocked()
}

// Paste routes clipboard text through the paste handler
func (s *Session) Paste(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.lastActive = time.Now()
	return s.editor.HandlePaste(text)
}

// SaveSelection flattens the live selection into a marker for the client
func (s *Session) SaveSelection() *editor.Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.SaveCursor()
}

// RestoreSelection re-anchors a client marker
func (s *Session) RestoreSelection(m *editor.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.editor.RestoreCursor(m)
}

// ToggleBold toggles strong formatting over the selection
func (s *Session) ToggleBold() bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.ToggleBold() })
}

// ToggleItalic toggles emphasis over the selection
func (s *Session) ToggleItalic() bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.ToggleItalic() })
}

// ToggleCode toggles inline code over the selection
func (s *Session) ToggleCode() bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.ToggleCode() })
}

// ToggleHeading converts selected blocks to or from a heading level
func (s *Session) ToggleHeading(level int) bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.ToggleHeading(level) })
}

// ToggleUnorderedList wraps or unwraps the selection as a bulleted list
func (s *Session) ToggleUnorderedList() bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.ToggleUnorderedList() })
}

// ToggleOrderedList wraps or unwraps the selection as a numbered list
func (s *Session) ToggleOrderedList() bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.ToggleOrderedList() })
}

// Indent indents the selected block or list item
func (s *Session) Indent() bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.Indent() })
}

// Outdent outdents the selected block or list item
func (s *Session) Outdent() bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.Outdent() })
}

// ApplyLink wraps the selection in a link after URL normalization
func (s *Session) ApplyLink(rawURL string) bool {
	return s.toolbarOp(func(t *editor.Toolbar) bool { return t.ApplyLink(rawURL) })
}

// ActiveStates reports which toolbar buttons light up for the selection
func (s *Session) ActiveStates() editor.ActiveStates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Toolbar().ActiveStates()
}

func (s *Session) toolbarOp(op func(*editor.Toolbar) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.lastActive = time.Now()
	return op(s.editor.Toolbar())
}

// PickerCards returns the picker's visible gallery
func (s *Session) PickerCards() []*editor.PickerCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Picker().Cards()
}

// TogglePickerSelection toggles one card, or extends the range when the
// client holds shift
func (s *Session) TogglePickerSelection(uuid string, shiftKey bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastActive = time.Now()
	if shiftKey {
		s.editor.Picker().HandleRangeSelection(uuid)
	} else {
		s.editor.Picker().ToggleSelection(uuid)
	}
}

// ClearPickerSelections drops every picker selection
func (s *Session) ClearPickerSelections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.editor.Picker().ClearAllSelections()
}

// SetPickerFilter switches the gallery scope (unused, used, all)
func (s *Session) SetPickerFilter(scope editor.FilterScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastActive = time.Now()
	s.editor.Picker().ApplyFilter(scope)
}

// PickerBadge renders the selection count badge text
func (s *Session) PickerBadge() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Picker().SelectionBadge()
}

// RefreshPicker reloads the gallery from the catalog
func (s *Session) RefreshPicker() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.entryID)
	}
	return s.editor.RefreshPicker()
}

// StartDrag begins a drag from the editor (by wrapper index), the picker, or
// the reference image (by UUID)
func (s *Session) StartDrag(source editor.DragSource, wrapperIndex int, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.entryID)
	}
	s.lastActive = time.Now()

	switch source {
	case editor.DragSourceEditor:
		return s.editor.Drag().StartEditorDrag(wrapperIndex)
	case editor.DragSourcePicker:
		return s.editor.Drag().StartPickerDrag(uuid)
	case editor.DragSourceReference:
		return s.editor.Drag().StartReferenceDrag(uuid)
	default:
		return fmt.Errorf("unknown drag source: %s", source)
	}
}

// Drop resolves the active drag against the client-measured geometry
func (s *Session) Drop(geom *editor.DropGeometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.entryID)
	}
	s.lastActive = time.Now()
	return s.editor.Drag().Drop(geom)
}

// CancelDrag abandons the active drag, document untouched
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.editor.Drag().Cancel()
}

// DragState reports the drag state machine position
func (s *Session) DragState() editor.DragState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Drag().State()
}

// RemoveImage removes every wrapper carrying the UUID from the document
func (s *Session) RemoveImage(uuid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.lastActive = time.Now()
	return s.editor.Images().RemoveImageByUUID(uuid)
}

// SetTitle updates the entry title
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.meta.Title == title {
		return
	}
	s.lastActive = time.Now()
	s.meta.Title = title
	s.recordChangeLocked()
}

// SetEntryDate updates the journal date (YYYY-MM-DD)
func (s *Session) SetEntryDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid entry date %q: %w", date, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.meta.EntryDate == date {
		return nil
	}
	s.lastActive = time.Now()
	s.meta.EntryDate = date
	s.recordChangeLocked()
	return nil
}

// SetTimezone updates the entry's IANA timezone
func (s *Session) SetTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.meta.Timezone == tz {
		return nil
	}
	s.lastActive = time.Now()
	s.meta.Timezone = tz
	s.recordChangeLocked()
	return nil
}

// SetReferenceImage updates the entry's reference image UUID
func (s *Session) SetReferenceImage(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.meta.ReferenceImageUUID == uuid {
		return
	}
	s.lastActive = time.Now()
	s.meta.ReferenceImageUUID = uuid
	s.recordChangeLocked()
}

// SetIncludeInPublish flags the entry for the publish export
func (s *Session) SetIncludeInPublish(include bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.meta.IncludeInPublish == include {
		return
	}
	s.lastActive = time.Now()
	s.meta.IncludeInPublish = include
	s.recordChangeLocked()
}

// SaveNow flushes the pending snapshot, skipping the debounce
func (s *Session) SaveNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.coordinator.SaveNow()
}

// Close flushes unsaved work and stops the session's timers. In-flight saves
// run to completion.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	s.mu.Unlock()

	if s.coordinator.Dirty() {
		s.coordinator.SaveNow()
	}
	s.coordinator.Close()

	s.logger.Debug().Str("entry_id", s.entryID).Msg("Session closed")
}

// contentChangedLocked is the editor's change notification: feed the autosave
// diff and arm the idle normalization timer. Caller holds the session lock.
func (s *Session) contentChangedLocked() {
	s.recordChangeLocked()
	s.armIdleTimerLocked()
}

func (s *Session) recordChangeLocked() {
	s.coordinator.RecordChange(autosave.Snapshot{
		HTML:               s.editor.HTML(),
		Title:              s.meta.Title,
		Date:               s.meta.EntryDate,
		Timezone:           s.meta.Timezone,
		ReferenceImageUUID: s.meta.ReferenceImageUUID,
		IncludeInPublish:   s.meta.IncludeInPublish,
	})
}

// normalizeLocked runs the pipeline and feeds autosave only when the
// canonical form actually moved
func (s *Session) normalizeLocked() {
	before := s.editor.HTML()
	s.editor.Normalize()
	if s.editor.HTML() != before {
		s.recordChangeLocked()
	}
}

func (s *Session) armIdleTimerLocked() {
	if s.idleDelay <= 0 {
		return
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.normalizeLocked()
	})
}

func (s *Session) publish(eventType interfaces.EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish session event")
	}
}
