package riot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// eventServer upgrades incoming connections and pushes event frames
// until the client goes away.
func eventServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Drain subscribe frames so control frames keep flowing
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		frame := []interface{}{opEvent, eventPresences, map[string]interface{}{"seq": 1}}
		for {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}))
}

func serverCreds(t *testing.T, srv *httptest.Server) *Credentials {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return &Credentials{Port: u.Port(), Password: "secret"}
}

func TestEventSocketDeliversEvents(t *testing.T) {
	srv := eventServer(t)
	defer srv.Close()

	socket := NewEventSocket(zap.NewNop())
	received := make(chan string, 1)
	socket.SetHandler(func(event string, payload json.RawMessage) {
		select {
		case received <- event:
		default:
		}
	})

	if err := socket.Connect(serverCreds(t, srv)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer socket.Disconnect()

	select {
	case event := <-received:
		if event != eventPresences {
			t.Fatalf("got event %q, want %q", event, eventPresences)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestEventSocketDisconnectDuringTraffic(t *testing.T) {
	srv := eventServer(t)
	defer srv.Close()

	socket := NewEventSocket(zap.NewNop())
	socket.SetHandler(func(event string, payload json.RawMessage) {})

	if err := socket.Connect(serverCreds(t, srv)); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Tear down mid-stream; the read loop must wind down without
	// touching the cleared struct field.
	socket.Disconnect()
	time.Sleep(50 * time.Millisecond)

	if socket.IsConnected() {
		t.Fatal("socket still reports connected after Disconnect")
	}

	// The socket must be reusable for the next session
	if err := socket.Connect(serverCreds(t, srv)); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	socket.Disconnect()
}

func TestHandleMessageIgnoresNonEventFrames(t *testing.T) {
	socket := NewEventSocket(zap.NewNop())
	called := false
	socket.SetHandler(func(event string, payload json.RawMessage) { called = true })

	socket.handleMessage([]byte(`[5,"OnJsonApiEvent_chat_v4_presences",{}]`))
	socket.handleMessage([]byte(`not json`))
	socket.handleMessage([]byte(`[8,"short"]`))
	if called {
		t.Fatal("handler fired for a non-event frame")
	}

	socket.handleMessage([]byte(`[8,"OnJsonApiEvent_chat_v4_presences",{"seq":2}]`))
	if !called {
		t.Fatal("handler did not fire for an event frame")
	}
}
