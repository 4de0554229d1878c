package http

import (
	"encoding/json"
	"log"
	"sync"
)

const memberBuffer = 32

// Member is one connection's mailbox in the hub. Events are pre-marshaled so
// a room-wide broadcast serializes its payload exactly once.
type Member struct {
	events chan []byte
}

func NewMember() *Member {
	return &Member{events: make(chan []byte, memberBuffer)}
}

// Events is consumed by the connection's write pump. The channel is never
// closed; the pump stops when the connection tears down.
func (m *Member) Events() <-chan []byte {
	return m.events
}

// Hub groups live connections by room code and fans server events out to
// them. It implements app.Broadcaster. Join and Leave are idempotent, and
// delivery never blocks: when a member's buffer is full the oldest pending
// event is dropped in favor of the new one, so a stalled client can never
// stall the room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Member]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Member]struct{})}
}

// Join adds a member to a room's broadcast group.
func (h *Hub) Join(roomCode string, m *Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[*Member]struct{})
	}
	h.rooms[roomCode][m] = struct{}{}
}

// Leave removes a member from a room's broadcast group.
func (h *Hub) Leave(roomCode string, m *Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	delete(members, m)
	if len(members) == 0 {
		delete(h.rooms, roomCode)
	}
}

// Broadcast delivers an event to every member of a room.
func (h *Hub) Broadcast(roomCode string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("hub: marshal event for room %s: %v", roomCode, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for m := range h.rooms[roomCode] {
		m.push(data)
	}
}

// Send queues an event for a single member, bypassing room fan-out. Used for
// errors that only the acting connection should observe.
func (h *Hub) Send(m *Member, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("hub: marshal direct event: %v", err)
		return
	}
	m.push(data)
}

func (m *Member) push(data []byte) {
	select {
	case m.events <- data:
	default:
		// Full buffer: sacrifice the oldest pending event.
		select {
		case <-m.events:
		default:
		}
		select {
		case m.events <- data:
		default:
		}
	}
}
