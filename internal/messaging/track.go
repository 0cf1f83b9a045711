package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rescuebite/rescuebite/internal/db"
)

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// trackClient serializes writes to one connection. Both the rider's
// read loop and HTTP handlers broadcast into the hub, and
// gorilla/websocket allows only one concurrent writer per conn.
type trackClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (tc *trackClient) write(payload []byte) error {
	tc.writeMu.Lock()
	defer tc.writeMu.Unlock()
	return tc.conn.WriteMessage(websocket.TextMessage, payload)
}

type hub struct {
	listingID string
	clients   map[*websocket.Conn]*trackClient
	mu        sync.RWMutex
}

var (
	hubsMu sync.RWMutex
	hubs   = make(map[string]*hub)
)

func getHub(listingID string) *hub {
	hubsMu.Lock()
	defer hubsMu.Unlock()
	if h, ok := hubs[listingID]; ok {
		return h
	}
	h := &hub{listingID: listingID, clients: make(map[*websocket.Conn]*trackClient)}
	hubs[listingID] = h
	return h
}

func (h *hub) broadcast(evt wsEvent) {
	payload, _ := json.Marshal(evt)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, tc := range h.clients {
		_ = tc.write(payload)
	}
}

func (h *hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = &trackClient{conn: c}
	h.mu.Unlock()
}

func (h *hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// positionUpdate is what the assigned rider pushes over the socket.
type positionUpdate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TrackWS - websocket for realtime rider position on a rescue.
// The donor, claiming NGO and assigned rider may connect; only the
// rider's messages are treated as position updates and fanned out.
func TrackWS(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	listingID := c.Param("id")
	if listingID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing listing id"})
	}

	// Verify participation
	var donorID, ngoID, riderID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT donor_id, ngo_id, rider_id FROM listings WHERE id = $1`, listingID,
	).Scan(&donorID, &ngoID, &riderID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found or inaccessible"})
	}
	isRider := riderID != "" && riderID == userID
	isParticipant := userID == donorID || (ngoID != "" && ngoID == userID) || isRider
	if !isParticipant {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this rescue"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h := getHub(listingID)
	h.register(ws)
	h.broadcast(wsEvent{Type: "presence_join", Data: echo.Map{"user_id": userID}})

	// Read loop. Rider frames carry positions; anything else is discarded.
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			h.unregister(ws)
			_ = ws.Close()
			h.broadcast(wsEvent{Type: "presence_leave", Data: echo.Map{"user_id": userID}})
			break
		}
		if !isRider {
			continue
		}
		var pos positionUpdate
		if err := json.Unmarshal(raw, &pos); err != nil {
			continue
		}
		h.broadcast(wsEvent{Type: "rider_position", Data: echo.Map{
			"listing_id": listingID,
			"rider_id":   userID,
			"lat":        pos.Lat,
			"lng":        pos.Lng,
			"at":         time.Now().UTC().Format(time.RFC3339),
		}})
	}
	return nil
}

// BroadcastStatus - publish a lifecycle status change to the listing hub.
func BroadcastStatus(listingID, status string) {
	h := getHub(listingID)
	h.broadcast(wsEvent{Type: "status_change", Data: echo.Map{
		"listing_id": listingID,
		"status":     status,
	}})
}
