// Package realtime pushes transaction and balance events to connected
// websocket clients. The hub is created and torn down with the server; there
// is no package-level singleton.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/security"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

type event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  int32
	isAdmin bool
}

type Hub struct {
	upgrader websocket.Upgrader
	tokens   security.TokenManager

	mu      sync.RWMutex
	byUser  map[int32]map[*client]struct{}
	admins  map[*client]struct{}
	closed  bool
}

func NewHub(tokens security.TokenManager) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the frontend origin; auth is the
			// token, not the origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		tokens: tokens,
		byUser: make(map[int32]map[*client]struct{}),
		admins: make(map[*client]struct{}),
	}
}

// HandleWS upgrades an authenticated HTTP request to a websocket session.
// The token comes from the query string because browsers cannot set headers
// on websocket handshakes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	identity := h.tokens.VerifyCredential(token)
	if identity == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		userID:  identity.ID,
		isAdmin: identity.IsAdmin(),
	}
	if !h.register(c) {
		conn.Close()
		return
	}

	logger.Debug("websocket client connected", "user_id", c.userID, "admin", c.isAdmin)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	clients, ok := h.byUser[c.userID]
	if !ok {
		clients = make(map[*client]struct{})
		h.byUser[c.userID] = clients
	}
	clients[c] = struct{}{}
	if c.isAdmin {
		h.admins[c] = struct{}{}
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.byUser[c.userID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	delete(h.admins, c)
}

// EmitToUser sends an event to every open socket of one user. Dropped
// silently when the user has no sockets or a socket's buffer is full.
func (h *Hub) EmitToUser(userID int32, eventName string, payload any) {
	data, err := json.Marshal(event{Event: eventName, Payload: payload})
	if err != nil {
		logger.Warn("failed to marshal realtime event", "event", eventName, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

// EmitToAdmins broadcasts an event to every connected admin socket.
func (h *Hub) EmitToAdmins(eventName string, payload any) {
	data, err := json.Marshal(event{Event: eventName, Payload: payload})
	if err != nil {
		logger.Warn("failed to marshal realtime event", "event", eventName, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.admins {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Close disconnects every client and refuses new registrations. Called once
// during server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, clients := range h.byUser {
		for c := range clients {
			close(c.send)
		}
	}
	h.byUser = make(map[int32]map[*client]struct{})
	h.admins = make(map[*client]struct{})
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Inbound messages are ignored; the socket is push-only.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
