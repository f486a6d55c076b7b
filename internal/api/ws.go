package api

import (
	"log"
	"net/http"
	"sync"

	"dealwatch/internal/services/monitor"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventHub fans drop events out to connected websocket clients. Dead
// connections are dropped on the first failed write.
type EventHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *EventHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *EventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

func (h *EventHub) Broadcast(event monitor.DropEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// HandleWS upgrades the request and keeps the connection registered until
// the client goes away. Clients only receive; inbound frames are discarded.
func (h *APIHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	h.hub.add(conn)
	defer func() {
		h.hub.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
