// Package net exposes the game world over HTTP and WebSocket. The hub
// serializes every world mutation behind one mutex, matching the
// world's single-writer contract, and fans state broadcasts out to all
// connected subscribers.
package net

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"geocoin-carrier/server/internal/grid"
	"geocoin-carrier/server/internal/save"
	"geocoin-carrier/server/internal/state"
	"geocoin-carrier/server/internal/telemetry"
	"geocoin-carrier/server/internal/world"
)

// ProtocolVersion tags every server-to-client message.
const ProtocolVersion = 1

// Command reject reasons shared with clients.
const (
	RejectUnknownCache = "unknown_cache"
	RejectEmptyCache   = "empty_cache"
	RejectNoCoinsHeld  = "no_coins_held"
	RejectUnknownActor = "unknown_actor"
)

type subscriber struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	if s == nil || s.conn == nil {
		return websocket.ErrCloseSent
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

// Hub owns the world and the subscriber registry for one session.
type Hub struct {
	mu          sync.Mutex
	world       *world.World
	subscribers map[string]*subscriber
	logger      telemetry.Logger
}

// NewHub wraps a world for network access.
func NewHub(w *world.World, logger telemetry.Logger) *Hub {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Hub{
		world:       w,
		subscribers: make(map[string]*subscriber),
		logger:      logger,
	}
}

type joinResponse struct {
	Ver    int          `json:"ver"`
	ID     string       `json:"id"`
	Seed   string       `json:"seed"`
	Config world.Config `json:"config"`
	State  stateMessage `json:"state"`
}

type stateMessage struct {
	Ver    int                   `json:"ver"`
	Type   string                `json:"type"`
	Seq    uint64                `json:"seq"`
	Player state.Player          `json:"player"`
	Caches []world.CacheSnapshot `json:"caches"`
}

// Join mints a subscriber id and returns the current world view. The
// id becomes valid for the websocket endpoint immediately.
func (h *Hub) Join() joinResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	h.subscribers[id] = &subscriber{id: id}

	return joinResponse{
		Ver:    ProtocolVersion,
		ID:     id,
		Seed:   h.world.Seed(),
		Config: h.world.Config(),
		State:  h.stateLocked(),
	}
}

// Subscribe attaches a websocket connection to a previously joined id.
func (h *Hub) Subscribe(id string, conn *websocket.Conn) (*subscriber, stateMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscribers[id]
	if !ok {
		return nil, stateMessage{}, false
	}
	if sub.conn != nil && sub.conn != conn {
		sub.conn.Close()
	}
	sub.conn = conn
	return sub, h.stateLocked(), true
}

// Disconnect removes a subscriber and closes its connection.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok && sub.conn != nil {
		sub.conn.Close()
	}
}

// Known reports whether an id has joined.
func (h *Hub) Known(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.subscribers[id]
	return ok
}

// HandleMove teleports the player and returns the resulting state.
func (h *Hub) HandleMove(id string, lat, lng float64) (stateMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[id]; !ok {
		return stateMessage{}, false
	}
	h.world.MovePlayer(grid.LatLng{Lat: lat, Lng: lng})
	return h.stateLocked(), true
}

// HandleStep moves the player by whole cells.
func (h *Hub) HandleStep(id string, di, dj int) (stateMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[id]; !ok {
		return stateMessage{}, false
	}
	h.world.MoveBy(di, dj)
	return h.stateLocked(), true
}

// HandleCollect takes one coin from the cache into the purse.
func (h *Hub) HandleCollect(id, cacheID string) (stateMessage, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[id]; !ok {
		return stateMessage{}, RejectUnknownActor
	}
	if _, err := h.world.Collect(cacheID); err != nil {
		return stateMessage{}, err.Error()
	}
	return h.stateLocked(), ""
}

// HandleDeposit drops the most recently held coin into the cache.
func (h *Hub) HandleDeposit(id, cacheID string) (stateMessage, string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[id]; !ok {
		return stateMessage{}, RejectUnknownActor
	}
	if _, err := h.world.Deposit(cacheID); err != nil {
		return stateMessage{}, err.Error()
	}
	return h.stateLocked(), ""
}

// HandleReset wipes the session back to its deterministic initial state.
func (h *Hub) HandleReset(id string) (stateMessage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[id]; !ok {
		return stateMessage{}, false
	}
	h.world.Reset()
	return h.stateLocked(), true
}

// CachesNearby answers the radius query against materialized caches.
func (h *Hub) CachesNearby(lat, lng, meters float64) []world.CacheSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.CachesWithin(grid.LatLng{Lat: lat, Lng: lng}, meters)
}

// StateSnapshot returns the current broadcast view.
func (h *Hub) StateSnapshot() stateMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked()
}

// ExportSave captures a durable save document under the hub lock.
func (h *Hub) ExportSave() save.Document {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.ExportSave()
}

// ImportSave restores a durable save document under the hub lock.
func (h *Hub) ImportSave(doc save.Document) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.ImportSave(doc)
}

func (h *Hub) stateLocked() stateMessage {
	return stateMessage{
		Ver:    ProtocolVersion,
		Type:   "state",
		Seq:    h.world.EventSeq(),
		Player: h.world.Player(),
		Caches: h.world.MaterializedCaches(),
	}
}

// BroadcastState sends the current state to every connected subscriber.
// Slow or dead connections are dropped.
func (h *Hub) BroadcastState() {
	h.mu.Lock()
	msg := h.stateLocked()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if sub.conn != nil {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	data, err := encodeMessage(msg)
	if err != nil {
		h.logger.Printf("failed to marshal broadcast state: %v", err)
		return
	}
	for _, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("dropping subscriber %s: %v", sub.id, err)
			h.Disconnect(sub.id)
		}
	}
}
