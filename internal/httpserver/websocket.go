package httpserver

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"drift/internal/updater"
)

// upgrader configures the WebSocket handshake.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // local host UI surface; no cross-origin concerns
	},
}

// wsMessage frames everything sent to a WebSocket client.
type wsMessage struct {
	Type  string            `json:"type"` // "state" or "event"
	State *updater.Snapshot `json:"state,omitempty"`
	Event *updater.Event    `json:"event,omitempty"`
}

// handleWebSocket upgrades the connection and bridges broadcaster events to
// the client. The current state snapshot is sent first so late joiners can
// render without waiting for the next transition.
func (s *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HTTP] websocket upgrade error: %v", err)
		return
	}

	// Writes come from broadcast deliveries and the initial snapshot; a
	// mutex keeps them from interleaving on the wire.
	var writeMu sync.Mutex
	send := func(msg wsMessage) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	snapshot := s.orch.State()
	if err := send(wsMessage{Type: "state", State: &snapshot}); err != nil {
		conn.Close()
		return
	}

	token := s.orch.Subscribe(func(evt updater.Event) {
		if err := send(wsMessage{Type: "event", Event: &evt}); err != nil {
			log.Printf("[HTTP] websocket write error: %v", err)
		}
	})

	// Drain the client until disconnect; incoming frames are not part of
	// the protocol and are ignored.
	go func() {
		defer func() {
			s.orch.Unsubscribe(token)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure,
				) {
					log.Printf("[HTTP] websocket read error: %v", err)
				}
				return
			}
		}
	}()
}
