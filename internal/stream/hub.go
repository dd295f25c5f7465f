package stream

import (
	"encoding/json"
	"log"
	"sync"

	"stancesense-cloud/internal/observability/metrics"
)

// Envelope types observers discriminate on.
const (
	TypeProcessedData = "processed_data"
	TypeAlert         = "alert"
)

// Envelope is the wire format pushed to observers.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Conn is one live observer connection.
type Conn interface {
	Send(payload []byte) error
}

// Hub owns the set of live observer connections and fans payloads out to all
// of them. The set is mutated only by Connect/Disconnect; broadcast iterates
// a snapshot so a disconnect during an in-flight broadcast cannot corrupt
// iteration.
type Hub struct {
	mu     sync.Mutex
	conns  map[Conn]struct{}
	logger *log.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{conns: make(map[Conn]struct{}), logger: logger}
}

// Connect adds a connection to the live set.
func (h *Hub) Connect(conn Conn) {
	if h == nil || conn == nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	count := len(h.conns)
	h.mu.Unlock()
	metrics.SetStreamClients(count)
	h.logger.Printf("stream: observer connected, total=%d", count)
}

// Disconnect removes a connection from the live set. Removing an absent
// connection is a no-op.
func (h *Hub) Disconnect(conn Conn) {
	if h == nil || conn == nil {
		return
	}
	h.mu.Lock()
	_, present := h.conns[conn]
	delete(h.conns, conn)
	count := len(h.conns)
	h.mu.Unlock()
	if !present {
		return
	}
	metrics.SetStreamClients(count)
	h.logger.Printf("stream: observer disconnected, total=%d", count)
}

// Broadcast pushes one envelope to every live connection. A failed send is
// logged and does not interrupt delivery to the others; the connection stays
// in the set until an explicit disconnect.
func (h *Hub) Broadcast(envelopeType string, data any) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(Envelope{Type: envelopeType, Data: data})
	if err != nil {
		h.logger.Printf("stream: marshal envelope %s: %v", envelopeType, err)
		return
	}

	h.mu.Lock()
	conns := make([]Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	if len(conns) == 0 {
		h.logger.Printf("stream: broadcast %s with no observers connected", envelopeType)
		return
	}

	metrics.IncBroadcastEnvelope(envelopeType)
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			metrics.IncBroadcastFailure()
			h.logger.Printf("stream: send failed for one observer: %v", err)
		}
	}
}
