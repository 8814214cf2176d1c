package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gsalazar/workchat/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer; chat frames are small
	maxMessageSize = 4096
)

// State tracks a connection through its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateReplaying
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReplaying:
		return "replaying"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is one authenticated, room-scoped live session. It is owned by the
// hub and never shared across rooms; switching rooms means a new connection.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	user        domain.Identity
	room        string
	sessionID   string
	connectedAt time.Time

	state    atomic.Int32
	joined   atomic.Bool // true once registered in the room
	downOnce sync.Once

	logger *slog.Logger
}

func newConn(ws *websocket.Conn, user domain.Identity, room, sessionID string, buffer int, logger *slog.Logger) *Conn {
	return &Conn{
		ws:          ws,
		send:        make(chan []byte, buffer),
		user:        user,
		room:        room,
		sessionID:   sessionID,
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// User returns the immutable identity behind the connection.
func (c *Conn) User() domain.Identity { return c.user }

// Room returns the room this connection is scoped to.
func (c *Conn) Room() string { return c.room }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// State returns the connection's lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// enqueue queues an encoded frame without blocking. A false return means the
// outbound buffer is saturated and the connection must be closed rather than
// letting it stall the room.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump pumps frames from the socket into the hub. It runs in the
// connection's own goroutine and triggers teardown when the transport drops.
func (c *Conn) readPump(h *Hub) {
	defer h.teardown(c)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "error", err, "room", c.room)
			}
			return
		}
		h.handleInbound(c, raw)
	}
}

// writePump drains the outbound queue onto the socket and keeps the
// connection alive with pings. Exits when the queue is closed by teardown.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
