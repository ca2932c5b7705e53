// -----------------------------------------------------------------------
// Autosave coordinator - debounced, versioned entry persistence
// -----------------------------------------------------------------------

package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// Status is the save state surfaced to clients
type Status string

const (
	StatusSaved   Status = "saved"   // document matches the persisted entry
	StatusUnsaved Status = "unsaved" // changes waiting out the debounce window
	StatusSaving  Status = "saving"  // a save is in flight, retries included
	StatusError   Status = "error"   // the last save gave up
)

// Snapshot is the savable view of an entry. Two snapshots compare equal when
// every field matches; the diff against the last saved snapshot decides dirty.
type Snapshot struct {
	HTML               string
	Title              string
	Date               string
	Timezone           string
	ReferenceImageUUID string
	IncludeInPublish   bool
}

// Config tunes the coordinator timers and retry policy
type Config struct {
	// Debounce is the quiet period after the last change before a save
	Debounce time.Duration

	// MaxDelay caps how long changes may accumulate before a save is forced,
	// measured from the first change after a clean state
	MaxDelay time.Duration

	// MaxRetries bounds transient-failure retries per save
	MaxRetries int

	// BaseBackoff seeds the exponential retry delay
	BaseBackoff time.Duration
}

// Default autosave timing. The debounce window absorbs a typing burst; the
// ceiling guarantees a save during sustained typing.
const (
	DefaultDebounce    = 3 * time.Second
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 2 * time.Second
)

// DefaultConfig returns the production timer and retry settings
func DefaultConfig() Config {
	return Config{
		Debounce:    DefaultDebounce,
		MaxDelay:    DefaultMaxDelay,
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
	}
}

func (c Config) normalized() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	return c
}

// CalculateBackoff computes the wait before the given retry attempt, doubling
// from BaseBackoff: attempt 1 waits BaseBackoff, attempt 2 twice that.
func (c Config) CalculateBackoff(attempt int) time.Duration {
	backoff := c.BaseBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	return backoff
}

// Callbacks fan coordinator transitions out to the owning session. Any field
// may be nil. Callbacks run on the coordinator's timer and save goroutines
// without the internal lock held.
type Callbacks struct {
	OnStatusChanged func(Status)
	OnSaved         func(*models.SaveResult)
	OnConflict      func(error)
	OnError         func(error)
}

// Coordinator runs the autosave state machine for one entry: clean until a
// snapshot diff marks it dirty, a debounced save with a max-delay ceiling,
// transient failures retried with exponential backoff, version conflicts
// surfaced and never retried.
type Coordinator struct {
	mu  sync.Mutex
	cfg Config

	saver     interfaces.EntrySaver
	callbacks *Callbacks
	logger    arbor.ILogger

	entryID  string
	version  int
	baseline Snapshot // last persisted state
	pending  Snapshot // most recently observed state

	status  Status
	dirty   bool
	saving  bool
	attempt int
	closed  bool

	debounceTimer *time.Timer
	maxDelayTimer *time.Timer
	retryTimer    *time.Timer
}

// NewCoordinator builds a coordinator for one entry. The baseline snapshot is
// the persisted state the first diffs run against; version is the entry's
// stored version.
func NewCoordinator(entryID string, version int, baseline Snapshot, saver interfaces.EntrySaver, cfg Config, callbacks *Callbacks, logger arbor.ILogger) *Coordinator {
	if callbacks == nil {
		callbacks = &Callbacks{}
	}
	return &Coordinator{
		cfg:       cfg.normalized(),
		saver:     saver,
		callbacks: callbacks,
		logger:    logger,
		entryID:   entryID,
		version:   version,
		baseline:  baseline,
		pending:   baseline,
		status:    StatusSaved,
	}
}

// RecordChange feeds the latest snapshot into the state machine. Equal to the
// baseline means clean; anything else arms the debounce timer and, on the
// first change after a clean state, the max-delay ceiling. Changes observed
// while a save is in flight are picked up after it completes.
func (c *Coordinator) RecordChange(snap Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = snap

	if c.saving {
		c.mu.Unlock()
		return
	}

	if snap == c.baseline {
		// edited back to the saved state
		c.dirty = false
		c.stopTimersLocked()
		fire := c.setStatusLocked(StatusSaved)
		c.mu.Unlock()
		fire()
		return
	}

	c.dirty = true
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	c.debounceTimer = time.AfterFunc(c.cfg.Debounce, c.flush)
	if c.maxDelayTimer == nil {
		c.maxDelayTimer = time.AfterFunc(c.cfg.MaxDelay, c.flush)
	}
	fire := c.setStatusLocked(StatusUnsaved)
	c.mu.Unlock()
	fire()
}

// SaveNow pushes pending changes out immediately, skipping the debounce. A
// no-op when clean or already saving.
func (c *Coordinator) SaveNow() {
	c.flush()
}

// Status returns the current observable save state
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Dirty reports whether unsaved changes exist
func (c *Coordinator) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Version returns the entry version the next save will carry
func (c *Coordinator) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Close stops all timers. A save already in flight finishes on its own but
// nothing new is scheduled.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimersLocked()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// flush begins a save of the pending snapshot. Both timers route here; the
// guard makes the second arrival a no-op.
func (c *Coordinator) flush() {
	c.mu.Lock()
	if c.closed || c.saving || !c.dirty {
		c.mu.Unlock()
		return
	}
	c.saving = true
	c.attempt = 0
	snap := c.pending
	c.stopTimersLocked()
	fire := c.setStatusLocked(StatusSaving)
	c.mu.Unlock()
	fire()

	go c.performSave(snap)
}

func (c *Coordinator) performSave(snap Snapshot) {
	c.mu.Lock()
	req := &models.SaveRequest{
		EntryID:            c.entryID,
		Text:               snap.HTML,
		Version:            c.version,
		NewTitle:           snap.Title,
		NewDate:            snap.Date,
		NewTimezone:        snap.Timezone,
		ReferenceImageUUID: snap.ReferenceImageUUID,
		IncludeInPublish:   snap.IncludeInPublish,
	}
	c.mu.Unlock()

	res, err := c.saver.Save(context.Background(), req)
	if err != nil {
		c.handleSaveFailure(snap, err)
		return
	}
	c.handleSaveSuccess(snap, res)
}

func (c *Coordinator) handleSaveSuccess(snap Snapshot, res *models.SaveResult) {
	c.mu.Lock()
	c.saving = false
	c.attempt = 0
	c.baseline = snap
	if res != nil {
		c.version = res.Version
	}

	var fire func()
	if c.pending != c.baseline {
		// changed while the save ran; go around again
		c.dirty = true
		if !c.closed {
			c.debounceTimer = time.AfterFunc(c.cfg.Debounce, c.flush)
			c.maxDelayTimer = time.AfterFunc(c.cfg.MaxDelay, c.flush)
		}
		fire = c.setStatusLocked(StatusUnsaved)
	} else {
		c.dirty = false
		fire = c.setStatusLocked(StatusSaved)
	}
	saved := c.callbacks.OnSaved
	version := c.version
	c.mu.Unlock()

	c.logger.Debug().
		Str("entry_id", c.entryID).
		Int("version", version).
		Msg("Entry saved")

	fire()
	if saved != nil {
		saved(res)
	}
}

func (c *Coordinator) handleSaveFailure(snap Snapshot, err error) {
	kind := interfaces.ClassifySaveError(err)

	c.mu.Lock()
	if c.closed {
		c.saving = false
		c.mu.Unlock()
		return
	}

	switch kind {
	case interfaces.SaveFailureConflict:
		c.saving = false
		c.attempt = 0
		fire := c.setStatusLocked(StatusError)
		conflict := c.callbacks.OnConflict
		c.mu.Unlock()

		c.logger.Warn().
			Str("entry_id", c.entryID).
			Err(err).
			Msg("Save rejected, entry version is stale")

		fire()
		if conflict != nil {
			conflict(err)
		}

	case interfaces.SaveFailurePermanent:
		c.saving = false
		c.attempt = 0
		fire := c.setStatusLocked(StatusError)
		onErr := c.callbacks.OnError
		c.mu.Unlock()

		c.logger.Warn().
			Str("entry_id", c.entryID).
			Err(err).
			Msg("Save failed permanently")

		fire()
		if onErr != nil {
			onErr(err)
		}

	default:
		c.attempt++
		if c.attempt > c.cfg.MaxRetries {
			c.saving = false
			c.attempt = 0
			fire := c.setStatusLocked(StatusError)
			onErr := c.callbacks.OnError
			c.mu.Unlock()

			c.logger.Warn().
				Str("entry_id", c.entryID).
				Int("retries", c.cfg.MaxRetries).
				Err(err).
				Msg("Save abandoned after retries")

			fire()
			if onErr != nil {
				onErr(err)
			}
			return
		}

		backoff := c.cfg.CalculateBackoff(c.attempt)
		attempt := c.attempt
		c.retryTimer = time.AfterFunc(backoff, func() { c.performSave(snap) })
		c.mu.Unlock()

		c.logger.Debug().
			Str("entry_id", c.entryID).
			Int("attempt", attempt).
			Str("backoff", backoff.String()).
			Err(err).
			Msg("Transient save failure, retrying")
	}
}

// setStatusLocked updates the status and returns the notification to run
// after the lock is released
func (c *Coordinator) setStatusLocked(s Status) func() {
	if c.status == s {
		return func() {}
	}
	c.status = s
	cb := c.callbacks.OnStatusChanged
	if cb == nil {
		return func() {}
	}
	return func() { cb(s) }
}

func (c *Coordinator) stopTimersLocked() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
		c.debounceTimer = nil
	}
	if c.maxDelayTimer != nil {
		c.maxDelayTimer.Stop()
		c.maxDelayTimer = nil
	}
}
