// Package hub owns the room-scoped connection lifecycle: authentication of
// the handshake, history replay, live fan-out, and teardown.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gsalazar/workchat/internal/domain"
	"github.com/gsalazar/workchat/internal/history"
	"github.com/gsalazar/workchat/internal/middleware"
)

// SessionValidator resolves a handshake token to an identity. It must be
// safe for concurrent use and bound its own lookup time.
type SessionValidator interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// Options tunes a Hub. Zero values fall back to sensible defaults.
type Options struct {
	HistoryTail    int // lines replayed on join
	SendBuffer     int // per-connection outbound queue size
	MessagesPerMin int // per-session inbound rate limit
}

func (o Options) withDefaults() Options {
	if o.HistoryTail <= 0 {
		o.HistoryTail = 100
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MessagesPerMin <= 0 {
		o.MessagesPerMin = 300
	}
	return o
}

// Hub coordinates all live connections. Cross-connection state is limited to
// the registry and the history store, both synchronized per room.
type Hub struct {
	registry *Registry
	history  *history.Store
	sessions SessionValidator
	limiter  *middleware.RateLimiter
	opts     Options
	logger   *slog.Logger

	// live connections by session token, for logout disconnects
	mu        sync.Mutex
	bySession map[string]map[*Conn]struct{}
}

// New creates a hub. The validator is consumed, never owned: rejection must
// leave no trace in the registry or the history store.
func New(store *history.Store, sessions SessionValidator, opts Options, logger *slog.Logger) *Hub {
	return &Hub{
		registry:  NewRegistry(),
		history:   store,
		sessions:  sessions,
		limiter:   middleware.NewRateLimiter(opts.withDefaults().MessagesPerMin),
		opts:      opts.withDefaults(),
		logger:    logger.With("component", "hub"),
		bySession: make(map[string]map[*Conn]struct{}),
	}
}

// run attaches an authenticated connection to its room, replays history,
// and services it until the transport drops. Blocks until teardown.
func (h *Hub) run(c *Conn) {
	c.setState(StateReplaying)
	h.trackSession(c)

	room := h.registry.Room(c.room)
	slow := room.Join(c, func() Event {
		lines, err := h.history.ReadTail(c.room, h.opts.HistoryTail)
		if err != nil {
			// Replay degrades to empty; the connection still comes up.
			h.logger.Error("history read failed", "room", c.room, "error", err)
		}
		return NewHistoryEvent(lines)
	}, NewJoinEvent(c.user, time.Now()))
	h.closeSlow(slow)

	c.setState(StateActive)
	h.logger.Info("connection active", "room", c.room, "user", c.user.Label())

	go c.writePump()
	c.readPump(h) // blocks until the client disconnects
}

// handleInbound processes one client frame. Malformed and empty frames are
// dropped without a reply; the client contract is fire-and-forget.
func (h *Hub) handleInbound(c *Conn, raw []byte) {
	if c.State() != StateActive {
		return
	}

	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return
	}
	if !h.limiter.Allow(c.sessionID) {
		h.logger.Warn("rate limited", "room", c.room, "user", c.user.Label())
		return
	}

	// Server clock, not the client's, so history ordering can't be spoofed.
	ts := time.Now()
	line := history.FormatLine(ts, c.user.Label(), c.user.Email, text)

	room := h.registry.Room(c.room)
	slow := room.Publish(NewMessageEvent(c.user, text, ts), func() {
		if err := h.history.Append(c.room, line); err != nil {
			// Persistence and live delivery are independent: the message may
			// be missing from replay but still reaches connected peers.
			h.logger.Error("history append failed", "room", c.room, "error", err)
		}
	})
	h.closeSlow(slow)
}

// teardown releases everything a connection holds. Safe to invoke from any
// goroutine and any number of times; only the first call does work, so a
// connection produces at most one leave broadcast and one registry removal.
func (h *Hub) teardown(c *Conn) {
	c.downOnce.Do(func() {
		c.setState(StateClosing)
		h.untrackSession(c)

		if c.joined.Load() {
			room := h.registry.Room(c.room)
			if removed, slow := room.Leave(c, NewLeaveEvent(c.user, time.Now())); removed {
				h.closeSlow(slow)
			}
		}

		close(c.send)
		if c.ws != nil {
			_ = c.ws.Close()
		}
		c.setState(StateClosed)
		h.logger.Info("connection closed", "room", c.room, "user", c.user.Label())
	})
}

// closeSlow tears down connections whose outbound buffers overflowed during
// a fan-out. Runs after the room lock is released.
func (h *Hub) closeSlow(slow []*Conn) {
	for _, c := range slow {
		h.logger.Warn("outbound buffer full, closing connection", "room", c.room, "user", c.user.Label())
		h.teardown(c)
	}
}

// DisconnectSession closes every live connection opened with the given
// session token. Called by the auth layer on logout.
func (h *Hub) DisconnectSession(sessionID string) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.bySession[sessionID]))
	for c := range h.bySession[sessionID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.teardown(c)
	}
}

func (h *Hub) trackSession(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bySession[c.sessionID] == nil {
		h.bySession[c.sessionID] = make(map[*Conn]struct{})
	}
	h.bySession[c.sessionID][c] = struct{}{}
}

func (h *Hub) untrackSession(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.bySession[c.sessionID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.bySession, c.sessionID)
		}
	}
}

// Registry exposes the room registry, mainly for tests and health checks.
func (h *Hub) Registry() *Registry {
	return h.registry
}
