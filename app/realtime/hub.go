// Package realtime keeps the websocket connection registry and pushes lead events
// to identity, company and admin rooms.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const adminRoom = "admins"

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Number of registered websocket connections",
	})

	droppedClientsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_dropped_clients_total",
		Help: "Connections dropped because their send buffer was full",
	})
)

func identityRoom(id uuid.UUID) string {
	return "user:" + id.String()
}

func companyRoom(companyID uint) string {
	return fmt.Sprintf("company:%d", companyID)
}

// Hub is the connection registry. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closed  bool
	logger  *logrus.Logger
}

// NewHub creates an empty registry
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds the client and joins it to the given rooms
func (h *Hub) Register(c *Client, rooms ...string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	if _, ok := h.clients[c]; ok {
		return true
	}
	h.clients[c] = struct{}{}
	c.rooms = rooms
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
	}
	connectionsGauge.Inc()
	h.logger.WithFields(logrus.Fields{"principal": c.principalID, "rooms": rooms}).Debug("websocket client registered")
	return true
}

// Unregister removes the client from every room and closes its send channel.
// Calling it more than once is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for _, room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.send)
	connectionsGauge.Dec()
}

// Lookup returns the clients registered for an identity
func (h *Hub) Lookup(id uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[identityRoom(id)]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EmitToIdentity queues the event for every connection of the identity
func (h *Hub) EmitToIdentity(id uuid.UUID, event string, payload any) int {
	return h.emit(identityRoom(id), uuid.Nil, event, payload, false)
}

// EmitToCompany queues the event for every connection in the company room
func (h *Hub) EmitToCompany(companyID uint, event string, payload any) int {
	return h.emit(companyRoom(companyID), uuid.Nil, event, payload, false)
}

// EmitToCompanyExcept queues the event for the company room, skipping every
// connection of the excluded identity
func (h *Hub) EmitToCompanyExcept(companyID uint, except uuid.UUID, event string, payload any) int {
	return h.emit(companyRoom(companyID), except, event, payload, false)
}

// EmitToAdmins queues the event for every admin connection
func (h *Hub) EmitToAdmins(event string, payload any) int {
	return h.emit(adminRoom, uuid.Nil, event, payload, false)
}

// ForceDisconnect sends a last frame to every connection of the identity and
// unregisters them. The write pump closes the socket once the frame is flushed.
func (h *Hub) ForceDisconnect(id uuid.UUID, event string, payload any) int {
	return h.emit(identityRoom(id), uuid.Nil, event, payload, true)
}

func (h *Hub) emit(room string, except uuid.UUID, event string, payload any, disconnect bool) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Error("failed to encode websocket frame")
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[room]
	if len(members) == 0 {
		return 0
	}
	targets := make([]*Client, 0, len(members))
	for c := range members {
		if except != uuid.Nil && c.principalID == except {
			continue
		}
		targets = append(targets, c)
	}

	sent := 0
	for _, c := range targets {
		select {
		case c.send <- frame:
			sent++
			if disconnect {
				h.removeLocked(c)
			}
		default:
			droppedClientsTotal.Inc()
			h.logger.WithFields(logrus.Fields{"principal": c.principalID, "event": event}).Warn("websocket send buffer full, dropping client")
			h.removeLocked(c)
		}
	}
	return sent
}

// Close unregisters every client. Later registrations are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	return json.Marshal(dto.Envelope{Event: event, Payload: payload})
}
