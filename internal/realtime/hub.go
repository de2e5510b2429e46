// Package realtime implements the room/poll coordination core: the WebSocket
// transport, the broadcast-group hub and the event coordinator.
package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/models"
)

// Session is one authenticated realtime connection. The coordinator replies
// to the requester and the hub fans out to groups through this interface.
type Session interface {
	ID() string
	User() models.UserPublic
	Emit(event string, payload interface{})
}

// Publisher publishes room events to other instances.
type Publisher interface {
	PublishRoomEvent(origin, roomCode, event string, payload []byte) error
}

// Subscriber subscribes to a room's channel and invokes handler for incoming
// events. Returns a cancel function to stop the subscription.
type Subscriber interface {
	SubscribeRoom(roomCode string, handler func(origin, event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains the broadcast groups: an explicit roomCode -> set of live
// sessions mapping, mutated only by join/leave and disconnect cleanup, read
// by every emit. Optionally bridges events across instances via pub/sub.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Session  // roomCode -> sessionID -> session
	joined map[string]map[string]struct{} // sessionID -> roomCodes, for disconnect cleanup
	subs   map[string]func()              // cancel pub/sub subscription per room
	id     string                         // instance identity, skips self-published events
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a hub. pub and sub may be nil; the hub is then local-only.
func NewHub(instanceID string, logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]Session),
		joined: make(map[string]map[string]struct{}),
		subs:   make(map[string]func()),
		id:     instanceID,
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Join adds a session to a room's broadcast group. Joining twice is a no-op.
// The first member of a room starts the cross-instance subscription.
func (h *Hub) Join(roomCode string, s Session) {
	h.mu.Lock()
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[string]Session)
		if h.sub != nil {
			cancel, err := h.sub.SubscribeRoom(roomCode, func(origin, event string, payload []byte) {
				if origin == h.id {
					return
				}
				h.broadcastLocal(roomCode, "", event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[roomCode] = cancel
			}
		}
	}
	h.rooms[roomCode][s.ID()] = s
	if h.joined[s.ID()] == nil {
		h.joined[s.ID()] = make(map[string]struct{})
	}
	h.joined[s.ID()][roomCode] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("session joined group", zap.String("session_id", s.ID()), zap.String("room_code", roomCode))
}

// Leave removes a session from a room's broadcast group. The last member
// leaving cancels the cross-instance subscription.
func (h *Hub) Leave(roomCode string, s Session) {
	h.mu.Lock()
	h.leaveLocked(roomCode, s.ID())
	h.mu.Unlock()
	h.logger.Debug("session left group", zap.String("session_id", s.ID()), zap.String("room_code", roomCode))
}

// RemoveSession drops a disconnected session from every group it joined.
func (h *Hub) RemoveSession(s Session) {
	h.mu.Lock()
	for roomCode := range h.joined[s.ID()] {
		h.leaveLocked(roomCode, s.ID())
	}
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(roomCode, sessionID string) {
	if m, ok := h.rooms[roomCode]; ok {
		delete(m, sessionID)
		if len(m) == 0 {
			delete(h.rooms, roomCode)
			if cancel, ok := h.subs[roomCode]; ok {
				cancel()
				delete(h.subs, roomCode)
			}
		}
	}
	if codes, ok := h.joined[sessionID]; ok {
		delete(codes, roomCode)
		if len(codes) == 0 {
			delete(h.joined, sessionID)
		}
	}
}

// BroadcastExcept sends an event to every group member except the given
// session, locally and to other instances.
func (h *Hub) BroadcastExcept(roomCode, exceptID, event string, payload interface{}) {
	h.broadcastLocal(roomCode, exceptID, event, payload)
	h.publish(roomCode, event, payload)
}

// Broadcast sends an event to every group member, locally and to other
// instances.
func (h *Hub) Broadcast(roomCode, event string, payload interface{}) {
	h.broadcastLocal(roomCode, "", event, payload)
	h.publish(roomCode, event, payload)
}

// GroupSize returns the number of live sessions in a room's group.
func (h *Hub) GroupSize(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

func (h *Hub) broadcastLocal(roomCode, exceptID, event string, payload interface{}) {
	h.mu.RLock()
	sessions := make([]Session, 0, len(h.rooms[roomCode]))
	for id, s := range h.rooms[roomCode] {
		if id != exceptID {
			sessions = append(sessions, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.Emit(event, payload)
	}
}

func (h *Hub) publish(roomCode, event string, payload interface{}) {
	if h.pub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.pub.PublishRoomEvent(h.id, roomCode, event, data); err != nil {
		h.logger.Warn("publish room event", zap.String("room_code", roomCode), zap.Error(err))
	}
}
