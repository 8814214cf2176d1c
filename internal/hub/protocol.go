package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gsalazar/workchat/internal/domain"
)

// EventType discriminates the closed set of outbound events. Nothing else
// ever reaches the wire.
type EventType string

const (
	EventHistory EventType = "history"
	EventJoin    EventType = "join"
	EventLeave   EventType = "leave"
	EventMessage EventType = "message"
)

// Participant is the wire form of a connected user.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// participantFor maps an identity to its wire form, applying the
// display-name fallback.
func participantFor(user domain.Identity) Participant {
	return Participant{Name: user.Label(), Email: user.Email}
}

// Event is the tagged variant delivered to clients. Use the constructors;
// Encode is the only place the wire shapes are produced.
type Event struct {
	Type  EventType
	Lines []string    // history
	User  Participant // join, leave, message
	Text  string      // message
	TS    int64       // join, leave, message; unix seconds, server clock
}

// NewHistoryEvent carries the replayed tail of a room's log.
func NewHistoryEvent(lines []string) Event {
	if lines == nil {
		lines = []string{}
	}
	return Event{Type: EventHistory, Lines: lines}
}

func NewJoinEvent(user domain.Identity, ts time.Time) Event {
	return Event{Type: EventJoin, User: participantFor(user), TS: ts.Unix()}
}

func NewLeaveEvent(user domain.Identity, ts time.Time) Event {
	return Event{Type: EventLeave, User: participantFor(user), TS: ts.Unix()}
}

func NewMessageEvent(user domain.Identity, text string, ts time.Time) Event {
	return Event{Type: EventMessage, User: participantFor(user), Text: text, TS: ts.Unix()}
}

type historyFrame struct {
	Type  EventType `json:"type"`
	Lines []string  `json:"lines"`
}

type presenceFrame struct {
	Type EventType   `json:"type"`
	User Participant `json:"user"`
	TS   int64       `json:"ts"`
}

type messageFrame struct {
	Type EventType   `json:"type"`
	User Participant `json:"user"`
	Text string      `json:"text"`
	TS   int64       `json:"ts"`
}

// Encode renders the wire JSON for each variant. The switch is exhaustive
// over the event types above.
func (e Event) Encode() ([]byte, error) {
	switch e.Type {
	case EventHistory:
		return json.Marshal(historyFrame{Type: e.Type, Lines: e.Lines})
	case EventJoin, EventLeave:
		return json.Marshal(presenceFrame{Type: e.Type, User: e.User, TS: e.TS})
	case EventMessage:
		return json.Marshal(messageFrame{Type: e.Type, User: e.User, Text: e.Text, TS: e.TS})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// Inbound is the single client -> hub frame shape.
type Inbound struct {
	Text string `json:"text"`
}
