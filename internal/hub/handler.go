package hub

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// DefaultRoom is used when the handshake names no room.
const DefaultRoom = "default"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins in development (tighten in production)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket upgrade requests.
type Handler struct {
	hub    *Hub
	logger *slog.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(h *Hub, logger *slog.Logger) *Handler {
	return &Handler{hub: h, logger: logger}
}

// ServeHTTP authenticates the handshake, upgrades it, and hands the
// connection to the hub. Invalid sessions are refused before the upgrade,
// with no registry or history side effects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	room := q.Get("room")
	if room == "" {
		room = DefaultRoom
	}
	token := q.Get("session_id")
	if token == "" {
		token = q.Get("session") // legacy alias
	}

	user, err := h.hub.sessions.Resolve(r.Context(), token)
	if err != nil {
		h.logger.Warn("handshake refused", "room", room, "error", err)
		http.Error(w, `{"error":"invalid session"}`, http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(ws, user, room, token, h.hub.opts.SendBuffer, h.logger)
	c.setState(StateAuthenticating)

	// Block here until the client disconnects
	h.hub.run(c)
}
