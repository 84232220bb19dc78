package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bingx-market-analyzer/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans stored signals out to live websocket subscribers. Delivery
// is fire and forget: a slow or dead client is dropped, never waited on.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan []byte),
		logger:  logger,
	}
}

type signalEvent struct {
	Type    string `json:"type"`
	Payload struct {
		ID         string   `json:"id"`
		Symbol     string   `json:"symbol"`
		SignalType string   `json:"signal_type"`
		Confidence float64  `json:"confidence"`
		Rules      []string `json:"rules_triggered"`
		CreatedAt  string   `json:"created_at"`
	} `json:"payload"`
}

// BroadcastSignal implements domain.Broadcaster.
func (h *Hub) BroadcastSignal(rec *domain.SignalRecord) {
	event := signalEvent{Type: "new_signal"}
	event.Payload.ID = rec.ID
	event.Payload.Symbol = rec.Symbol
	event.Payload.SignalType = string(rec.Type)
	event.Payload.Confidence = rec.Confidence
	event.Payload.Rules = rec.Rules
	event.Payload.CreatedAt = rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00")

	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode signal event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.clients {
		select {
		case send <- msg:
		default:
			// Client cannot keep up; cut it loose.
			h.dropLocked(conn)
		}
	}
}

// HandleWS upgrades the connection and registers the subscriber.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[conn] = send
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket subscriber connected", zap.Int("subscribers", count))

	go h.writeLoop(conn, send)
	go h.readLoop(conn)
}

func (h *Hub) writeLoop(conn *websocket.Conn, send chan []byte) {
	for msg := range send {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.mu.Lock()
			h.dropLocked(conn)
			h.mu.Unlock()
			return
		}
	}
}

// readLoop exists to notice disconnects; inbound messages are ignored.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.mu.Lock()
			h.dropLocked(conn)
			h.mu.Unlock()
			return
		}
	}
}

// dropLocked removes a client. Caller holds mu.
func (h *Hub) dropLocked(conn *websocket.Conn) {
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
		conn.Close()
	}
}

// Subscribers reports the live connection count for the status surface.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
