package riot

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wamp-style opcodes used by the local client event bus
type wsOpcode int

const (
	opSubscribe   wsOpcode = 5
	opUnsubscribe wsOpcode = 6
	opEvent       wsOpcode = 8
)

const (
	eventPresences = "OnJsonApiEvent_chat_v4_presences"
	eventParties   = "OnJsonApiEvent_riot-messaging-service_v1_message"
)

// EventHandler receives local client event payloads.
type EventHandler func(event string, payload json.RawMessage)

// EventSocket listens to the local Riot Client WebSocket event bus and
// invokes a handler on presence/party activity, so the app can refresh
// immediately instead of waiting for the next poll tick.
type EventSocket struct {
	log *zap.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	isConnected bool
	stopChan    chan struct{}
	handler     EventHandler
}

// NewEventSocket creates a disconnected event socket.
func NewEventSocket(log *zap.Logger) *EventSocket {
	return &EventSocket{
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// SetHandler sets the callback for incoming events.
func (s *EventSocket) SetHandler(handler EventHandler) {
	s.handler = handler
}

// Connect dials the local client WebSocket and subscribes to the
// presence and messaging event feeds.
func (s *EventSocket) Connect(creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isConnected {
		return nil
	}

	dialer := websocket.Dialer{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}

	url := fmt.Sprintf("wss://127.0.0.1:%s", creds.Port)
	header := http.Header{}
	header.Set("Authorization", basicAuth(creds.Password))

	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("failed to connect to riot client websocket: %w", err)
	}

	s.conn = conn
	s.isConnected = true

	for _, event := range []string{eventPresences, eventParties} {
		if err := conn.WriteJSON([]interface{}{opSubscribe, event}); err != nil {
			conn.Close()
			s.isConnected = false
			return fmt.Errorf("failed to subscribe to %s: %w", event, err)
		}
	}

	go s.listen(conn, s.stopChan)

	return nil
}

// listen reads from its own conn rather than the struct field, so a
// concurrent Disconnect clearing the field cannot break the read loop.
func (s *EventSocket) listen(conn *websocket.Conn, stop chan struct{}) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
			s.isConnected = false
		}
		s.mu.Unlock()
	}()

	for {
		select {
		case <-stop:
			return
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.handleMessage(message)
		}
	}
}

func (s *EventSocket) handleMessage(data []byte) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) < 3 {
		return
	}

	var opcode wsOpcode
	if err := json.Unmarshal(raw[0], &opcode); err != nil || opcode != opEvent {
		return
	}

	var event string
	if err := json.Unmarshal(raw[1], &event); err != nil {
		return
	}

	if s.handler != nil {
		s.handler(event, raw[2])
	}
}

// Disconnect closes the socket.
func (s *EventSocket) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.stopChan)
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.isConnected = false
	s.stopChan = make(chan struct{})
}

// IsConnected reports whether the socket is live.
func (s *EventSocket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isConnected
}
