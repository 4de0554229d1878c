package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gitucha/BrainFuel/internal/auth"
	"github.com/gitucha/BrainFuel/internal/domain"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomStore persists room-provisioning metadata. The engine never reads game
// state from here; sessions are created lazily from codes alone.
type RoomStore interface {
	Create(ctx context.Context, room *domain.Room) error
	ByCode(ctx context.Context, code string) (domain.Room, error)
	PublicLobby(ctx context.Context) ([]domain.Room, error)
}

// RoomsHandler is the room-provisioning surface: it mints shareable codes and
// lists joinable rooms. The live engine consumes those codes verbatim.
type RoomsHandler struct {
	store    RoomStore
	verifier *auth.Verifier
}

func NewRoomsHandler(store RoomStore, verifier *auth.Verifier) *RoomsHandler {
	return &RoomsHandler{store: store, verifier: verifier}
}

type createRoomRequest struct {
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count"`
	IsPublic      *bool  `json:"is_public"`
	MaxPlayers    int    `json:"max_players"`
}

// Create handles POST /api/rooms.
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = "easy"
	}
	if req.QuestionCount <= 0 {
		req.QuestionCount = 5
	}
	if req.MaxPlayers <= 0 {
		req.MaxPlayers = 8
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	room := domain.Room{
		ID:            uuid.NewString(),
		HostID:        identity.UserID,
		HostUsername:  identity.Username,
		IsPublic:      isPublic,
		Difficulty:    strings.ToLower(req.Difficulty),
		QuestionCount: req.QuestionCount,
		MaxPlayers:    req.MaxPlayers,
		Status:        domain.RoomWaiting,
	}

	// Regenerate on the rare code collision.
	for attempt := 0; ; attempt++ {
		room.Code = generateRoomCode()
		err := h.store.Create(r.Context(), &room)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrRoomCodeTaken) && attempt < 5 {
			continue
		}
		log.Printf("rooms: create: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

// Detail handles GET /api/rooms/{code}.
func (h *RoomsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}
	code := mux.Vars(r)["code"]
	room, err := h.store.ByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSONError(w, http.StatusNotFound, "room not found")
			return
		}
		log.Printf("rooms: detail %s: %v", code, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Lobby handles GET /api/lobby: public rooms that are still joinable.
func (h *RoomsHandler) Lobby(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}
	rooms, err := h.store.PublicLobby(r.Context())
	if err != nil {
		log.Printf("rooms: lobby: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to load lobby")
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomsHandler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	token := extractBearerToken(r)
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing authorization")
		return auth.Identity{}, false
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return auth.Identity{}, false
	}
	return identity, true
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func generateRoomCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
