package memory

import (
	"sync"

	"github.com/gitucha/BrainFuel/internal/app"
)

// RoomRegistry is the in-memory implementation of app.RoomRegistry. One map
// mutex makes first-join creation exactly-once under concurrency.
type RoomRegistry struct {
	deps  app.Deps
	mu    sync.RWMutex
	rooms map[string]*app.RoomSession
}

func NewRoomRegistry(deps app.Deps) *RoomRegistry {
	return &RoomRegistry{
		deps:  deps,
		rooms: make(map[string]*app.RoomSession),
	}
}

func (r *RoomRegistry) GetOrCreate(code string) *app.RoomSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.rooms[code]; ok {
		return session
	}
	session := app.NewRoomSession(code, r.deps)
	r.rooms[code] = session
	return session
}

func (r *RoomRegistry) Get(code string) (*app.RoomSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.rooms[code]
	return session, ok
}

// DeleteIfEmpty reaps an empty session. Tombstoning and removal happen under
// the map lock, so a join that already resolved this session is refused and
// retries against a fresh one instead of mutating an unreachable roster.
func (r *RoomRegistry) DeleteIfEmpty(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.rooms[code]
	if !ok {
		return
	}
	if session.CloseIfEmpty() {
		delete(r.rooms, code)
	}
}
