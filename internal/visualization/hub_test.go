package visualization

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nvandessel/strangeloop/internal/loop"
)

func dialHub(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Clients() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("clients = %d, want %d", h.Clients(), want)
}

func TestHub_StreamsFrames(t *testing.T) {
	hub := NewHub(nil)
	l, _ := newTestLoop(t, loop.WithRenderer(hub))
	ts := newTestServer(t, l, WithHub(hub))

	conn := dialHub(t, ts)
	waitForClients(t, hub, 1)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var frame loop.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.GridSize != 3 || len(frame.Activations) != 9 {
		t.Errorf("frame grid=%d activations=%d, want 3/9", frame.GridSize, len(frame.Activations))
	}
}

func TestHub_PausedFramesShowStimulus(t *testing.T) {
	hub := NewHub(nil)
	l, _ := newTestLoop(t, loop.WithRenderer(hub))
	ts := newTestServer(t, l, WithHub(hub))

	conn := dialHub(t, ts)
	waitForClients(t, hub, 1)
	post(t, ts, "/api/stimulus", `{"x": 15, "y": 15, "radius_squared": 1}`)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var frame loop.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.Activations[4] == 2.0 {
			if frame.Tick != 0 {
				t.Errorf("paused frame tick = %d, want 0", frame.Tick)
			}
			return
		}
	}
}

func TestHub_DropsFramesForSlowClients(t *testing.T) {
	hub := NewHub(nil)
	c := &client{send: make(chan []byte, clientBuffer)}
	hub.clients[c] = struct{}{}

	for i := range clientBuffer + 3 {
		hub.Render(loop.Frame{Tick: int64(i)})
	}

	if got := hub.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
	if got := len(c.send); got != clientBuffer {
		t.Errorf("queued = %d, want %d", got, clientBuffer)
	}

	var first loop.Frame
	if err := json.Unmarshal(<-c.send, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Tick != 0 {
		t.Errorf("oldest queued tick = %d, want 0", first.Tick)
	}
}

func TestHub_RenderWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Render(loop.Frame{Tick: 1})
	if hub.Dropped() != 0 || hub.Clients() != 0 {
		t.Errorf("dropped=%d clients=%d, want 0/0", hub.Dropped(), hub.Clients())
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	ts := httptest.NewServer(hub)
	t.Cleanup(ts.Close)

	conn := dialHub(t, ts)
	waitForClients(t, hub, 1)

	if err := hub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if hub.Clients() != 0 {
		t.Errorf("clients after close = %d, want 0", hub.Clients())
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after close = %v, want normal closure", err)
	}

	// Closing twice is harmless and Render is a no-op.
	hub.Close()
	hub.Render(loop.Frame{})
}

func TestHub_RejectsAfterClose(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()
	ts := httptest.NewServer(hub)
	t.Cleanup(ts.Close)

	conn := dialHub(t, ts)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read = %v, want going-away closure", err)
	}
}
