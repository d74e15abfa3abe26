// Package transport is the WebSocket collaborator a host app layers over
// pkg/scheduler/pkg/commit for a live (non-SSR) session — grounded on
// pkg/server/websocket.go and Session's event dispatch (Dispatch,
// QueueEvent, handleEvent) in pkg/server/session.go.
package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/loomkit/loom/pkg/hostapp"
)

// ClientEvent is a decoded inbound message: a DOM-level event dispatched
// from the client, addressed by the document node id the teacher's HID
// scheme (and loom's document.Node.ID) assigns.
type ClientEvent struct {
	NodeID string          `json:"nodeId"`
	Name   string          `json:"name"` // e.g. "click"
	Data   json.RawMessage `json:"data,omitempty"`
}

// ServerPatch is one outbound mutation frame; SendPatches writes a batch of
// them as a single message so the client can apply them together.
type ServerPatch struct {
	Op    string `json:"op"`
	Node  string `json:"node,omitempty"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
	Index int    `json:"index,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Session binds one live *hostapp.App to one WebSocket connection: inbound
// client events become dispatched handlers. Serve does not send the
// patches a flush produces; outbound frames go out only through an
// explicit SendPatches call.
type Session struct {
	app  *hostapp.App
	conn *websocket.Conn

	handlers map[string]func(ClientEvent)

	mu  sync.Mutex
	log *slog.Logger
}

// NewSession upgrades an HTTP request to a WebSocket and binds it to app.
func NewSession(w http.ResponseWriter, r *http.Request, app *hostapp.App, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Session{app: app, conn: conn, handlers: make(map[string]func(ClientEvent)), log: log}, nil
}

// RegisterHandler binds a named client-event handler addressed by node id
// and event name (the teacher's "hid_eventname" registry key convention,
// e.g. "n3_click").
func (s *Session) RegisterHandler(nodeID, eventName string, fn func(ClientEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[nodeID+"_"+eventName] = fn
}

// Serve reads client events in a loop and dispatches them through the
// scheduler's event-handler wrapper until the connection closes.
func (s *Session) Serve() {
	defer s.conn.Close()
	for {
		var evt ClientEvent
		if err := s.conn.ReadJSON(&evt); err != nil {
			s.log.Debug("loom: session closed", "error", err)
			return
		}

		s.mu.Lock()
		handler, ok := s.handlers[evt.NodeID+"_"+evt.Name]
		s.mu.Unlock()
		if !ok {
			continue
		}

		s.app.Dispatch(func() { handler(evt) })
	}
}

// SendPatches pushes one atomic batch of outbound mutations to the client,
// matching the single-commit-per-flush guarantee the core itself upholds.
func (s *Session) SendPatches(patches []ServerPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(patches)
}

// Close terminates the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
