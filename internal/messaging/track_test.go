package messaging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, h *hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.register(ws)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	// registration happens on the server goroutine after the handshake
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.mu.RLock()
		n := len(h.clients)
		h.mu.RUnlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestHubBroadcastConcurrentWriters(t *testing.T) {
	h := &hub{listingID: "t1", clients: make(map[*websocket.Conn]*trackClient)}
	conn := dialTestHub(t, h)

	// Status fan-out and rider positions arrive from different
	// goroutines; every write to one conn must come through intact.
	const writers = 10
	const perWriter = 20
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				h.broadcast(wsEvent{Type: "status_change", Data: map[string]string{"status": "claimed"}})
			}
		}()
	}
	wg.Wait()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < writers*perWriter; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	h := &hub{listingID: "t2", clients: make(map[*websocket.Conn]*trackClient)}
	conn := dialTestHub(t, h)

	h.broadcast(wsEvent{Type: "presence_join", Data: map[string]string{"user_id": "u1"}})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read: %v", err)
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n != 1 {
		t.Fatalf("registered clients = %d, want 1", n)
	}

	for c := range h.clients {
		h.unregister(c)
	}
	h.mu.RLock()
	n = len(h.clients)
	h.mu.RUnlock()
	if n != 0 {
		t.Fatalf("clients after unregister = %d, want 0", n)
	}
}
