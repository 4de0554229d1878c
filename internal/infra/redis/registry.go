package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gitucha/BrainFuel/internal/app"
)

// RoomRegistry is a Redis-aware implementation of app.RoomRegistry.
// Notes:
//   - Sessions themselves stay in a local map; the engine assumes one
//     authoritative process per room.
//   - Redis marks room liveness so operational tooling (and a future
//     cross-instance router) can see which codes are active.
type RoomRegistry struct {
	client *redis.Client
	ttl    time.Duration
	deps   app.Deps

	mu    sync.RWMutex
	rooms map[string]*app.RoomSession
}

func NewRoomRegistry(client *redis.Client, ttl time.Duration, deps app.Deps) *RoomRegistry {
	return &RoomRegistry{
		client: client,
		ttl:    ttl,
		deps:   deps,
		rooms:  make(map[string]*app.RoomSession),
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
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(code), "1", r.ttl).Err()
	return session
}

func (r *RoomRegistry) Get(code string) (*app.RoomSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.rooms[code]
	return session, ok
}

func (r *RoomRegistry) DeleteIfEmpty(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.rooms[code]
	if !ok {
		return
	}
	if session.CloseIfEmpty() {
		delete(r.rooms, code)
		_ = r.client.Del(context.Background(), r.key(code)).Err()
	}
}

func (r *RoomRegistry) key(code string) string {
	return "arena:room:" + code
}
