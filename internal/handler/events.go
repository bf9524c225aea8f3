package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"magadrive/internal/domain"
	"magadrive/internal/service"
)

const (
	// writeWait is the timeout on a single WebSocket write.
	writeWait = 10 * time.Second
	// pongWait is how long the connection survives without a pong.
	pongWait = 60 * time.Second
	// pingInterval must be shorter than pongWait.
	pingInterval = 30 * time.Second
	// maxMessageSize bounds inbound frames; clients only pong.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventHandler streams ride lifecycle events over WebSocket.
type EventHandler struct {
	rideService *service.RideService
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(rideService *service.RideService) *EventHandler {
	return &EventHandler{rideService: rideService}
}

// EventMessage is the wire shape of one ride event.
type EventMessage struct {
	Type      string              `json:"type"`
	EventID   string              `json:"eventId"`
	RideID    string              `json:"rideId"`
	Seq       int64               `json:"seq"`
	Data      domain.EventPayload `json:"data"`
	Timestamp string              `json:"timestamp"`
}

func toEventMessage(event *domain.RideEvent) EventMessage {
	return EventMessage{
		Type:      string(event.Type),
		EventID:   event.ID,
		RideID:    event.RideID,
		Seq:       event.Seq,
		Data:      event.Payload,
		Timestamp: event.CreatedAt.Format(time.RFC3339),
	}
}

// Stream handles GET /v1/rides/:id/events. It replays the ride's full event
// history, then forwards live events until the client disconnects.
func (h *EventHandler) Stream(c *gin.Context) {
	rideID := c.Param("id")

	backlog, sub, err := h.rideService.SubscribeEvents(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.rideService.Unsubscribe(sub)
		log.Printf("events: upgrade failed ride_id=%s err=%v", rideID, err)
		return
	}

	defer func() {
		h.rideService.Unsubscribe(sub)
		_ = conn.Close()
	}()

	done := make(chan struct{})
	go readPump(conn, done)

	// Backlog first, then live. Overlap between the two is skipped by
	// sequence number, so the client sees each event exactly once and in
	// log order.
	var lastSeq int64
	for _, event := range backlog {
		if !writeEvent(conn, event) {
			return
		}
		lastSeq = event.Seq
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				// Dropped by the registry or server shutdown.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			if event.Seq <= lastSeq {
				continue
			}
			if !writeEvent(conn, event) {
				return
			}
			lastSeq = event.Seq
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event *domain.RideEvent) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(toEventMessage(event)); err != nil {
		log.Printf("events: write failed ride_id=%s err=%v", event.RideID, err)
		return false
	}
	return true
}

// readPump drains the connection to detect disconnects and keep pongs
// flowing. Clients are not expected to send anything else.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
