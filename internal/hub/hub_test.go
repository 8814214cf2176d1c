package hub

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsalazar/workchat/internal/domain"
	"github.com/gsalazar/workchat/internal/history"
)

// stubValidator resolves fixed tokens to fixed identities.
type stubValidator struct {
	sessions map[string]domain.Identity
}

func (s *stubValidator) Resolve(_ context.Context, token string) (domain.Identity, error) {
	user, ok := s.sessions[token]
	if !ok {
		return domain.Identity{}, domain.ErrInvalidSession
	}
	return user, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	store, err := history.NewStore(t.TempDir())
	require.NoError(t, err)

	validator := &stubValidator{sessions: map[string]domain.Identity{
		"tok-alice": {Name: "alice", Email: "alice@example.com"},
		"tok-bob":   {Name: "bob", Email: "bob@example.com"},
	}}
	return New(store, validator, opts, testLogger())
}

// attach registers a transport-less connection with the hub the way run
// does, minus the pumps.
func attach(h *Hub, c *Conn) {
	h.trackSession(c)
	room := h.registry.Room(c.room)
	room.Join(c, func() Event { return NewHistoryEvent(nil) }, NewJoinEvent(c.user, time.Now()))
	c.setState(StateActive)
}

func hubConn(name, sessionID string, buffer int) *Conn {
	c := testConn(name, buffer)
	c.sessionID = sessionID
	c.logger = testLogger()
	return c
}

func TestHub_InboundBroadcastAndPersist(t *testing.T) {
	h := newTestHub(t, Options{})
	a := hubConn("alice", "tok-alice", 8)
	b := hubConn("bob", "tok-bob", 8)
	attach(h, a)
	attach(h, b)
	drain(t, a)
	drain(t, b)

	h.handleInbound(a, []byte(`{"text":"  hola  "}`))

	aEvents := drain(t, a)
	require.Len(t, aEvents, 1)
	assert.Equal(t, EventMessage, aEvents[0].Type)
	assert.Equal(t, "hola", aEvents[0].Text)
	assert.Equal(t, "alice", aEvents[0].User.Name)

	bEvents := drain(t, b)
	require.Len(t, bEvents, 1)
	assert.Equal(t, aEvents[0], bEvents[0])

	lines, err := h.history.ReadTail("default", 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "alice|alice@example.com: hola")
}

func TestHub_InboundDropsMalformedAndEmpty(t *testing.T) {
	h := newTestHub(t, Options{})
	a := hubConn("alice", "tok-alice", 8)
	attach(h, a)
	drain(t, a)

	h.handleInbound(a, []byte(`not json`))
	h.handleInbound(a, []byte(`{"text":""}`))
	h.handleInbound(a, []byte(`{"text":"   "}`))
	h.handleInbound(a, []byte(`{"other":"field"}`))

	assert.Empty(t, drain(t, a))
	lines, err := h.history.ReadTail("default", 10)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestHub_InboundIgnoredBeforeActive(t *testing.T) {
	h := newTestHub(t, Options{})
	a := hubConn("alice", "tok-alice", 8)
	attach(h, a)
	drain(t, a)
	a.setState(StateReplaying)

	h.handleInbound(a, []byte(`{"text":"too early"}`))

	assert.Empty(t, drain(t, a))
}

func TestHub_InboundRateLimited(t *testing.T) {
	// 6/min means a burst of 5; everything past that is dropped
	h := newTestHub(t, Options{MessagesPerMin: 6})
	a := hubConn("alice", "tok-alice", 32)
	attach(h, a)
	drain(t, a)

	for i := 0; i < 8; i++ {
		h.handleInbound(a, []byte(`{"text":"spam"}`))
	}

	assert.Len(t, drain(t, a), 5)
}

func TestHub_BroadcastSurvivesPersistFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := history.NewStore(dir)
	require.NoError(t, err)
	// A directory where the room log should be makes every append fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "default.log"), 0o755))

	validator := &stubValidator{sessions: map[string]domain.Identity{
		"tok-alice": {Name: "alice", Email: "alice@example.com"},
	}}
	h := New(store, validator, Options{}, testLogger())

	a := hubConn("alice", "tok-alice", 8)
	attach(h, a)
	drain(t, a)

	h.handleInbound(a, []byte(`{"text":"still delivered"}`))

	events := drain(t, a)
	require.Len(t, events, 1)
	assert.Equal(t, "still delivered", events[0].Text)
}

func TestHub_TeardownBroadcastsLeaveOnce(t *testing.T) {
	h := newTestHub(t, Options{})
	a := hubConn("alice", "tok-alice", 8)
	b := hubConn("bob", "tok-bob", 8)
	attach(h, a)
	attach(h, b)
	drain(t, a)
	drain(t, b)

	h.teardown(b)
	h.teardown(b)

	aEvents := drain(t, a)
	require.Len(t, aEvents, 1)
	assert.Equal(t, EventLeave, aEvents[0].Type)
	assert.Equal(t, "bob", aEvents[0].User.Name)
	assert.Equal(t, StateClosed, b.State())
	assert.ElementsMatch(t, []*Conn{a}, h.registry.Room("default").Members())
}

func TestHub_TeardownWithoutJoinIsSilent(t *testing.T) {
	h := newTestHub(t, Options{})
	a := hubConn("alice", "tok-alice", 8)
	b := hubConn("bob", "tok-bob", 8)
	attach(h, a)
	drain(t, a)

	// b was never registered in the room (e.g. rejected before join)
	h.teardown(b)

	assert.Empty(t, drain(t, a))
	assert.Equal(t, StateClosed, b.State())
}

func TestHub_DisconnectSession(t *testing.T) {
	h := newTestHub(t, Options{})
	a := hubConn("alice", "tok-alice", 8)
	b := hubConn("bob", "tok-bob", 8)
	attach(h, a)
	attach(h, b)
	drain(t, a)
	drain(t, b)

	h.DisconnectSession("tok-bob")

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, StateActive, a.State())

	aEvents := drain(t, a)
	require.Len(t, aEvents, 1)
	assert.Equal(t, EventLeave, aEvents[0].Type)
}

func TestHub_OptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, 100, opts.HistoryTail)
	assert.Equal(t, 256, opts.SendBuffer)
	assert.Equal(t, 300, opts.MessagesPerMin)

	opts = Options{HistoryTail: 10, SendBuffer: 4, MessagesPerMin: 60}.withDefaults()
	assert.Equal(t, 10, opts.HistoryTail)
	assert.Equal(t, 4, opts.SendBuffer)
	assert.Equal(t, 60, opts.MessagesPerMin)
}
