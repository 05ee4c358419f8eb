// Package websocket pushes live updates to connected classroom dashboards
// so balances, collections, and rankings refresh without polling.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event is one live update broadcast after a ledger mutation. SubjectID
// identifies the student or homework the event is about; Data carries
// event-specific details.
type Event struct {
	Type      string         `json:"type"`
	SubjectID int64          `json:"subject_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

// NewEvent creates an Event with Type derived from entity and action, e.g.
// NewEvent("balance", "updated", ...) gets type "balance_updated".
func NewEvent(entity, action string, subjectID int64, data map[string]any) Event {
	return Event{
		Type:      fmt.Sprintf("%s_%s", entity, action),
		SubjectID: subjectID,
		Data:      data,
		At:        time.Now().UTC(),
	}
}

// Hub tracks the connected clients and fans events out to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast fans the event out to every connected client. A client whose
// send buffer is full misses the event rather than blocking the caller; a
// dashboard recovers on its next full refresh.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dropping event for slow client", "type", ev.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
