package stream

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sendTimeout = 10 * time.Second

// wsConn adapts a websocket connection to the hub's Conn interface. The
// write mutex serializes broadcast sends with control frames.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Handler upgrades observer requests and registers them with the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHandler constructs the observer endpoint handler.
func NewHandler(hub *Hub, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Observers are dashboards on other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP handles GET /ws/observer. The channel is push-only: inbound text
// is logged and ignored; a read error means the client went away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.hub == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("stream: upgrade failed: %v", err)
		return
	}

	conn := &wsConn{conn: socket}
	h.hub.Connect(conn)
	defer func() {
		h.hub.Disconnect(conn)
		_ = socket.Close()
	}()

	for {
		msgType, message, err := socket.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.TextMessage && len(message) > 0 {
			h.logger.Printf("stream: ignoring inbound message from observer: %q", message)
		}
	}
}
