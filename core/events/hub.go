package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"transform-orchestrator/core/models"

	"github.com/gorilla/websocket"
)

// Hub broadcasts job status events to websocket subscribers (the UI's
// external observers). Subscribers that fall behind or disconnect are
// dropped; the hub never blocks the orchestrator.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*subscriber]bool
	upgrader    websocket.Upgrader
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an event hub
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// wireEvent is the JSON shape pushed to subscribers
type wireEvent struct {
	SessionID  string    `json:"sessionId,omitempty"`
	JobID      string    `json:"jobId,omitempty"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus"`
	Reason     string    `json:"reason,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	At         time.Time `json:"at"`
}

// Publish broadcasts a status event to all subscribers
func (h *Hub) Publish(event models.StatusEvent) {
	we := wireEvent{
		SessionID: event.SessionID,
		JobID:     event.JobID,
		ToStatus:  string(event.ToStatus),
		Reason:    event.Reason,
		RequestID: event.RequestID,
		At:        event.At,
	}
	if event.FromStatus != nil {
		we.FromStatus = string(*event.FromStatus)
	}
	data, err := json.Marshal(we)
	if err != nil {
		log.Printf("Failed to encode status event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			// Slow subscriber; drop it rather than stall the pipeline.
			delete(h.subscribers, sub)
			close(sub.send)
		}
	}
}

// ServeHTTP upgrades the request to a websocket subscription
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.subscribers[sub] = true
	h.mu.Unlock()

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

func (h *Hub) writeLoop(sub *subscriber) {
	for data := range sub.send {
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(sub)
			return
		}
	}
	sub.conn.Close()
}

// readLoop drains control frames and detects disconnects
func (h *Hub) readLoop(sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.drop(sub)
			return
		}
	}
}

func (h *Hub) drop(sub *subscriber) {
	h.mu.Lock()
	if h.subscribers[sub] {
		delete(h.subscribers, sub)
		close(sub.send)
	}
	h.mu.Unlock()
	sub.conn.Close()
}
