package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gitucha/BrainFuel/internal/app"
	"github.com/gitucha/BrainFuel/internal/auth"
	"github.com/gitucha/BrainFuel/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WSHandler bridges authenticated websocket connections to the room service
// and the broadcast hub.
type WSHandler struct {
	service  *app.RoomService
	hub      *Hub
	verifier *auth.Verifier
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService, hub *Hub, verifier *auth.Verifier) *WSHandler {
	return &WSHandler{
		service:  service,
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// inbound is the closed set of client message kinds. Unknown fields are
// ignored; unknown types get an error event.
type inbound struct {
	Type       string `json:"type"`
	Room       string `json:"room,omitempty"`
	Role       string `json:"role,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Count      int    `json:"count,omitempty"`
	OptionID   int64  `json:"option_id,omitempty"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServeWS authenticates and upgrades a connection, then translates its
// messages into room operations until it closes. There is no anonymous mode:
// a missing or invalid token is refused before the upgrade.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	identity, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := &client{
		handler:  h,
		conn:     conn,
		identity: identity,
		member:   NewMember(),
		done:     make(chan struct{}),
	}
	go c.writePump()
	c.readLoop(r)
}

// client is the per-connection state. leaveOnce guarantees an abrupt
// disconnect and an explicit leave collapse to exactly one departure.
type client struct {
	handler  *WSHandler
	conn     *websocket.Conn
	identity auth.Identity
	member   *Member
	done     chan struct{}

	room      string
	leaveOnce *sync.Once
}

func (c *client) readLoop(r *http.Request) {
	defer func() {
		c.leaveRoom()
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error for user %d: %v", c.identity.UserID, err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}

		switch msg.Type {
		case "join":
			c.handleJoin(msg)
		case "start":
			c.handleStart(r, msg)
		case "answer":
			c.handleAnswer(r, msg)
		case "leave":
			c.leaveRoom()
		default:
			c.sendError("unsupported message type")
		}
	}
}

func (c *client) handleJoin(msg inbound) {
	if msg.Room == "" {
		c.sendError("missing room code")
		return
	}
	if c.room != "" {
		c.sendError("already in a room")
		return
	}
	c.room = msg.Room
	c.leaveOnce = &sync.Once{}
	// Membership first, so this connection sees the state_update produced by
	// its own join.
	c.handler.hub.Join(c.room, c.member)
	c.handler.service.Join(c.room, c.identity.UserID, c.identity.Username, domain.ParseRole(msg.Role), msg.Difficulty, msg.Count)
}

func (c *client) handleStart(r *http.Request, msg inbound) {
	if c.room == "" {
		return
	}
	err := c.handler.service.Start(r.Context(), c.room, c.identity.UserID, msg.Difficulty, msg.Count)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotHost):
		// Unauthorized starts are ignored without an event.
	case errors.Is(err, domain.ErrNoQuestions):
		c.sendError("no questions available for the requested filters")
	default:
		log.Printf("ws: start room %s: %v", c.room, err)
		c.sendError("failed to start the game")
	}
}

func (c *client) handleAnswer(r *http.Request, msg inbound) {
	if c.room == "" {
		return
	}
	// Out-of-window and unauthorized answers are silent no-ops; they must not
	// desynchronize the rest of the room.
	_ = c.handler.service.Answer(r.Context(), c.room, c.identity.UserID, msg.OptionID)
}

// leaveRoom detaches the client from its room exactly once per membership,
// for explicit leave messages and abrupt disconnects alike.
func (c *client) leaveRoom() {
	if c.room == "" || c.leaveOnce == nil {
		return
	}
	room, once := c.room, c.leaveOnce
	c.room = ""
	c.leaveOnce = nil
	once.Do(func() {
		c.handler.hub.Leave(room, c.member)
		c.handler.service.Leave(room, c.identity.UserID)
	})
}

func (c *client) sendError(message string) {
	c.handler.hub.Send(c.member, errorEvent{Type: "error", Message: message})
}

// writePump forwards hub events to the socket and keeps the connection alive
// with pings. A write failure ends the pump; the read loop notices the broken
// connection and tears the client down.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.member.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
