package memory

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/application/metric"
)

// ConnectionRepository stores the live relay connections keyed by the
// ephemeral connection id minted at upgrade time. Writes through a single
// repository entry are serialized, which gives FIFO delivery per
// sender-to-receiver pair.
type ConnectionRepository interface {
	Add(uuid.UUID, *websocket.Conn)
	Remove(uuid.UUID)

	// Write marshals the payload to the named connection. It reports whether
	// the connection was present; a missing connection is not an error (the
	// relay is at-most-once).
	Write(uuid.UUID, any) bool
}

type safeWS struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type connectionRepository struct {
	conns map[uuid.UUID]*safeWS

	mu sync.RWMutex
}

func NewConnectionRepository() ConnectionRepository {
	return &connectionRepository{
		conns: make(map[uuid.UUID]*safeWS, 16),
	}
}

func (r *connectionRepository) Add(connID uuid.UUID, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = &safeWS{conn: conn}

	metric.IncrementWSActiveConnections()
}

func (r *connectionRepository) Remove(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; exists {
		delete(r.conns, connID)

		metric.DecrementWSActiveConnections()
	}
}

func (r *connectionRepository) Write(connID uuid.UUID, payload any) bool {
	safews, ok := r.getSafeWS(connID)
	if !ok {
		return false
	}

	safews.mu.Lock()
	defer safews.mu.Unlock()

	if err := safews.conn.WriteJSON(payload); err != nil {
		slog.Error(
			"write to websocket",
			slog.Any(constant.Error, err),
			slog.Any(constant.ConnectionID, connID),
		)
	}

	return true
}

func (r *connectionRepository) getSafeWS(connID uuid.UUID) (*safeWS, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	return conn, ok
}
