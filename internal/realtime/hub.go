package realtime

import (
	"log/slog"

	"github.com/SAP-F-2025/learning-service/internal/metrics"
	"github.com/SAP-F-2025/learning-service/internal/services"
)

// Hub owns the registry and the rooms and fans events out to room members
type Hub struct {
	registry *Registry
	rooms    *Rooms
	logger   *slog.Logger
}

var _ services.Broadcaster = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		rooms:    NewRooms(),
		logger:   logger,
	}
}

func (h *Hub) Register(p Peer) {
	if h.registry.Add(p) {
		h.logger.Debug("Connection registered", "conn_id", p.ID(), "user_id", p.User().ID)
	}
	h.publishStats()
}

// Unregister removes the peer from the registry and every room
func (h *Hub) Unregister(p Peer) {
	h.rooms.LeaveAll(p.ID())
	if h.registry.Remove(p.ID()) {
		h.logger.Debug("Connection unregistered", "conn_id", p.ID(), "user_id", p.User().ID)
	}
	h.publishStats()
}

func (h *Hub) Join(room string, p Peer) bool {
	joined := h.rooms.Join(room, p)
	if joined {
		h.publishStats()
	}
	return joined
}

// JoinConnection joins a registered connection by id
func (h *Hub) JoinConnection(room, connID string) bool {
	p, ok := h.registry.Get(connID)
	if !ok {
		return false
	}
	return h.Join(room, p)
}

func (h *Hub) Leave(room string, p Peer) bool {
	left := h.rooms.Leave(room, p.ID())
	if left {
		h.publishStats()
	}
	return left
}

// EmitToRoom encodes the frame once and queues it on every member except exceptConnID
func (h *Hub) EmitToRoom(room, event string, data interface{}, exceptConnID string) {
	members := h.rooms.Members(room)
	if len(members) == 0 {
		return
	}

	payload, err := encodeFrame(event, data, "")
	if err != nil {
		h.logger.Error("Failed to encode broadcast", "event", event, "room", room, "error", err)
		return
	}

	for _, p := range members {
		if p.ID() == exceptConnID {
			continue
		}
		if !p.Deliver(payload) {
			h.logger.Warn("Dropped broadcast", "event", event, "room", room, "conn_id", p.ID())
		}
	}
}

// Stats returns the live connection and room counts
func (h *Hub) Stats() (connections, rooms int) {
	return h.registry.Count(), h.rooms.Count()
}

func (h *Hub) publishStats() {
	metrics.SetRegistryStats(h.Stats())
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) Rooms() *Rooms {
	return h.rooms
}
