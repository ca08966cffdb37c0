package events

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"alivecheck-backend/internal/logging"
)

const maxConnsPerSubject = 10

// Hub fans alert lifecycle events out to WebSocket watchers, keyed by the
// subject being watched.
type Hub struct {
	connections map[string]map[*websocket.Conn]bool // subjectID -> set of connections
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers a watcher for a subject.
func (h *Hub) AddConnection(subjectID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[subjectID]; !exists {
		h.connections[subjectID] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[subjectID]) >= maxConnsPerSubject {
		h.logger.Warnf("Max connections reached for subject %s", subjectID)
		return
	}
	h.connections[subjectID][conn] = true
	h.logger.Infof("Added WebSocket connection for subject %s (total: %d)", subjectID, len(h.connections[subjectID]))
}

// RemoveConnection unregisters a watcher.
func (h *Hub) RemoveConnection(subjectID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, exists := h.connections[subjectID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, subjectID)
		}
		h.logger.Infof("Removed WebSocket connection for subject %s (remaining: %d)", subjectID, len(conns))
	}
}

// Publish sends an event to every watcher of a subject. Connections that
// fail a write are dropped.
func (h *Hub) Publish(subjectID string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("Failed to encode event for subject %s: %v", subjectID, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	conns, exists := h.connections[subjectID]
	if !exists {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Failed to send WebSocket message for subject %s: %v", subjectID, err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.connections, subjectID)
	}
}
