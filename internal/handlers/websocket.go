package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/editor"
	"github.com/ternarybob/scribo/internal/services/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the outbound message envelope
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// wsRequest is the inbound envelope; the payload decodes per message type
type wsRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type updatePayload struct {
	HTML string `json:"html"`
}

type pastePayload struct {
	Text string `json:"text"`
}

type toolbarPayload struct {
	Action string `json:"action"`
	Level  int    `json:"level,omitempty"`
	URL    string `json:"url,omitempty"`
}

type selectionPayload struct {
	Marker json.RawMessage `json:"marker"`
}

type pickerPayload struct {
	Op     string `json:"op"`
	UUID   string `json:"uuid,omitempty"`
	Shift  bool   `json:"shift,omitempty"`
	Filter string `json:"filter,omitempty"`
}

type dragPayload struct {
	Op           string               `json:"op"`
	Source       string               `json:"source,omitempty"`
	UUID         string               `json:"uuid,omitempty"`
	WrapperIndex int                  `json:"wrapper_index,omitempty"`
	Geometry     *editor.DropGeometry `json:"geometry,omitempty"`
}

type metaPayload struct {
	Field string `json:"field"`
	Value string `json:"value,omitempty"`
	Flag  bool   `json:"flag,omitempty"`
}

type imagePayload struct {
	UUID string `json:"uuid"`
}

type openedPayload struct {
	EntryID string            `json:"entry_id"`
	HTML    string            `json:"html"`
	Meta    session.EntryMeta `json:"meta"`
	Version int               `json:"version"`
	Status  string            `json:"status"`
}

type documentPayload struct {
	HTML   string              `json:"html"`
	States editor.ActiveStates `json:"states"`
}

type pickerStatePayload struct {
	Cards []*editor.PickerCard `json:"cards"`
	Badge string               `json:"badge"`
}

type pasteResultPayload struct {
	Handled bool   `json:"handled"`
	HTML    string `json:"html"`
}

type dragStatePayload struct {
	State editor.DragState `json:"state"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// wsClient is one connected editor. Writes are serialized per connection,
// and autosave status broadcasts coalesce under the client's throttle so a
// dirty -> saving -> saved burst reaches the wire as at most two messages.
type wsClient struct {
	conn    *websocket.Conn
	session *session.Session
	entryID string
	logger  arbor.ILogger

	writeMu sync.Mutex

	throttle    time.Duration
	limiter     *rate.Limiter
	statusMu    sync.Mutex
	pending     *session.StatusUpdate
	statusTimer *time.Timer

	disposers []func()
}

func (c *wsClient) write(msgType string, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		c.logger.Warn().Err(err).Str("message_type", msgType).Msg("Failed to marshal websocket message")
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debug().Err(err).Str("message_type", msgType).Msg("Failed to write websocket message")
	}
}

func (c *wsClient) writeError(format string, args ...interface{}) {
	c.write("error", errorPayload{Message: fmt.Sprintf(format, args...)})
}

func (c *wsClient) decode(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 {
		c.writeError("payload is required")
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.writeError("invalid payload: %v", err)
		return false
	}
	return true
}

// queueStatus records the latest autosave status and flushes it now when the
// throttle allows, otherwise on the trailing timer. Intermediate states are
// overwritten; only the newest one goes out.
func (c *wsClient) queueStatus(update session.StatusUpdate) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	c.pending = &update
	if c.limiter.Allow() {
		c.flushStatusLocked()
		return
	}
	if c.statusTimer == nil {
		c.statusTimer = time.AfterFunc(c.throttle, func() {
			c.statusMu.Lock()
			defer c.statusMu.Unlock()
			c.statusTimer = nil
			c.flushStatusLocked()
		})
	}
}

func (c *wsClient) flushStatusLocked() {
	if c.pending == nil {
		return
	}
	update := *c.pending
	c.pending = nil
	c.write("status", update)
}

func (c *wsClient) dispose() {
	for _, dispose := range c.disposers {
		dispose()
	}
	c.disposers = nil

	c.statusMu.Lock()
	if c.statusTimer != nil {
		c.statusTimer.Stop()
		c.statusTimer = nil
	}
	c.pending = nil
	c.statusMu.Unlock()
}

// WebSocketHandler streams one editor session per connection. Client
// operations arrive as typed messages and run on the session; autosave
// status, save and conflict notices fan out through the event bus filtered
// to the connection's entry.
type WebSocketHandler struct {
	sessions *session.Manager
	events   interfaces.EventService
	config   common.WebSocketConfig
	logger   arbor.ILogger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*wsClient
}

// NewWebSocketHandler creates a websocket handler over the session manager
func NewWebSocketHandler(sessions *session.Manager, events interfaces.EventService, config common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		events:   events,
		config:   config,
		logger:   logger,
		clients:  make(map[*websocket.Conn]*wsClient),
	}
}

// HandleWebSocket upgrades the connection and binds it to the entry named by
// the ?entry= query parameter, opening a session on first use
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	entryID := r.URL.Query().Get("entry")
	if entryID == "" {
		http.Error(w, "entry query parameter is required", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Open(entryID)
	if err != nil {
		if errors.Is(err, interfaces.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("entry_id", entryID).Msg("Failed to open editor session")
		http.Error(w, "Failed to open editor session", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}
	if h.config.MaxMessageSize > 0 {
		conn.SetReadLimit(h.config.MaxMessageSize)
	}

	throttle := h.config.StatusThrottle
	if throttle <= 0 {
		throttle = 250 * time.Millisecond
	}

	client := &wsClient{
		conn:     conn,
		session:  sess,
		entryID:  entryID,
		logger:   h.logger,
		throttle: throttle,
		limiter:  rate.NewLimiter(rate.Every(throttle), 1),
	}

	h.mu.Lock()
	h.clients[conn] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", total)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		client.dispose()
		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (total: %d)", remaining)
	}()

	h.subscribeClient(client)

	client.write("opened", openedPayload{
		EntryID: entryID,
		HTML:    sess.HTML(),
		Meta:    sess.Meta(),
		Version: sess.Version(),
		Status:  string(sess.Status()),
	})
	h.sendPicker(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			break
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			client.writeError("invalid message: %v", err)
			continue
		}
		h.dispatch(client, &req)
	}
}

// ClientCount reports how many connections are live
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscribeClient registers the per-entry event fan-out. Each subscription's
// disposer is kept on the client and runs at disconnect.
func (h *WebSocketHandler) subscribeClient(c *wsClient) {
	subscribe := func(eventType interfaces.EventType, handler interfaces.EventHandler) {
		dispose, err := h.events.Subscribe(eventType, handler)
		if err != nil {
			h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe websocket client")
			return
		}
		c.disposers = append(c.disposers, dispose)
	}

	subscribe(interfaces.EventStatusChanged, func(ctx context.Context, event interfaces.Event) error {
		if update, ok := event.Payload.(session.StatusUpdate); ok && update.EntryID == c.entryID {
			c.queueStatus(update)
		}
		return nil
	})

	subscribe(interfaces.EventEntrySaved, func(ctx context.Context, event interfaces.Event) error {
		if notice, ok := event.Payload.(session.SaveNotice); ok && notice.EntryID == c.entryID {
			c.write("saved", notice)
		}
		return nil
	})

	subscribe(interfaces.EventEntryConflict, func(ctx context.Context, event interfaces.Event) error {
		if notice, ok := event.Payload.(session.ConflictNotice); ok && notice.EntryID == c.entryID {
			c.write("conflict", notice)
		}
		return nil
	})

	subscribe(interfaces.EventImageUsed, func(ctx context.Context, event interfaces.Event) error {
		if notice, ok := event.Payload.(session.ImageNotice); ok && notice.EntryID == c.entryID {
			c.write("image_used", notice)
		}
		return nil
	})

	subscribe(interfaces.EventImageReleased, func(ctx context.Context, event interfaces.Event) error {
		if notice, ok := event.Payload.(session.ImageNotice); ok && notice.EntryID == c.entryID {
			c.write("image_released", notice)
		}
		return nil
	})
}

func (h *WebSocketHandler) dispatch(c *wsClient, req *wsRequest) {
	switch req.Type {
	case "update":
		var p updatePayload
		if !c.decode(req.Payload, &p) {
			return
		}
		if err := c.session.UpdateContent(p.HTML); err != nil {
			c.writeError("update failed: %v", err)
		}

	case "normalize":
		c.session.Normalize()
		h.sendDocument(c)

	case "paste":
		var p pastePayload
		if !c.decode(req.Payload, &p) {
			return
		}
		handled := c.session.Paste(p.Text)
		c.write("paste_result", pasteResultPayload{Handled: handled, HTML: c.session.HTML()})

	case "toolbar":
		h.applyToolbar(c, req.Payload)

	case "selection":
		var p selectionPayload
		if !c.decode(req.Payload, &p) {
			return
		}
		marker, err := editor.DecodeMarker(p.Marker)
		if err != nil {
			c.writeError("invalid selection marker: %v", err)
			return
		}
		c.session.RestoreSelection(marker)

	case "get_selection":
		c.write("selection", c.session.SaveSelection())

	case "picker":
		h.applyPicker(c, req.Payload)

	case "drag":
		h.applyDrag(c, req.Payload)

	case "remove_image":
		var p imagePayload
		if !c.decode(req.Payload, &p) {
			return
		}
		if c.session.RemoveImage(p.UUID) {
			h.sendDocument(c)
			h.sendPicker(c)
		}

	case "meta":
		h.applyMeta(c, req.Payload)

	case "save":
		c.session.SaveNow()

	default:
		c.writeError("unknown message type %q", req.Type)
	}
}

func (h *WebSocketHandler) applyToolbar(c *wsClient, raw json.RawMessage) {
	var p toolbarPayload
	if !c.decode(raw, &p) {
		return
	}

	var changed bool
	switch p.Action {
	case "bold":
		changed = c.session.ToggleBold()
	case "italic":
		changed = c.session.ToggleItalic()
	case "code":
		changed = c.session.ToggleCode()
	case "heading":
		changed = c.session.ToggleHeading(p.Level)
	case "unordered_list":
		changed = c.session.ToggleUnorderedList()
	case "ordered_list":
		changed = c.session.ToggleOrderedList()
	case "indent":
		changed = c.session.Indent()
	case "outdent":
		changed = c.session.Outdent()
	case "link":
		changed = c.session.ApplyLink(p.URL)
	default:
		c.writeError("unknown toolbar action %q", p.Action)
		return
	}

	if changed {
		h.sendDocument(c)
	} else {
		c.write("toolbar_state", c.session.ActiveStates())
	}
}

func (h *WebSocketHandler) applyPicker(c *wsClient, raw json.RawMessage) {
	var p pickerPayload
	if !c.decode(raw, &p) {
		return
	}

	switch p.Op {
	case "toggle":
		c.session.TogglePickerSelection(p.UUID, p.Shift)
	case "clear":
		c.session.ClearPickerSelections()
	case "filter":
		c.session.SetPickerFilter(editor.FilterScope(p.Filter))
	case "refresh":
		if err := c.session.RefreshPicker(); err != nil {
			c.writeError("picker refresh failed: %v", err)
			return
		}
	default:
		c.writeError("unknown picker op %q", p.Op)
		return
	}
	h.sendPicker(c)
}

func (h *WebSocketHandler) applyDrag(c *wsClient, raw json.RawMessage) {
	var p dragPayload
	if !c.decode(raw, &p) {
		return
	}

	switch p.Op {
	case "start":
		if err := c.session.StartDrag(editor.DragSource(p.Source), p.WrapperIndex, p.UUID); err != nil {
			c.writeError("drag start failed: %v", err)
			return
		}
	case "drop":
		if p.Geometry == nil {
			c.writeError("drop geometry is required")
			return
		}
		if err := c.session.Drop(p.Geometry); err != nil {
			c.writeError("drop failed: %v", err)
			return
		}
		h.sendDocument(c)
		h.sendPicker(c)
	case "cancel":
		c.session.CancelDrag()
	default:
		c.writeError("unknown drag op %q", p.Op)
		return
	}
	c.write("drag_state", dragStatePayload{State: c.session.DragState()})
}

func (h *WebSocketHandler) applyMeta(c *wsClient, raw json.RawMessage) {
	var p metaPayload
	if !c.decode(raw, &p) {
		return
	}

	var err error
	switch p.Field {
	case "title":
		c.session.SetTitle(p.Value)
	case "entry_date":
		err = c.session.SetEntryDate(p.Value)
	case "timezone":
		err = c.session.SetTimezone(p.Value)
	case "reference_image":
		c.session.SetReferenceImage(p.Value)
	case "include_in_publish":
		c.session.SetIncludeInPublish(p.Flag)
	default:
		c.writeError("unknown meta field %q", p.Field)
		return
	}
	if err != nil {
		c.writeError("meta update failed: %v", err)
		return
	}
	c.write("meta", c.session.Meta())
}

func (h *WebSocketHandler) sendDocument(c *wsClient) {
	c.write("document", documentPayload{HTML: c.session.HTML(), States: c.session.ActiveStates()})
}

func (h *WebSocketHandler) sendPicker(c *wsClient) {
	c.write("picker", pickerStatePayload{Cards: c.session.PickerCards(), Badge: c.session.PickerBadge()})
}
