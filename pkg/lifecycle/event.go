package lifecycle

import "time"

// EventType names a room lifecycle change.
type EventType string

const (
	RoomOpened        EventType = "room.opened"
	RoomClosed        EventType = "room.closed"
	ParticipantJoined EventType = "participant.joined"
	ParticipantLeft   EventType = "participant.left"
)

// Event is published by the signaling hub whenever room membership changes.
type Event struct {
	Type         EventType `json:"type"`
	Room         string    `json:"room"`
	Connection   string    `json:"connection,omitempty"`
	Participants int       `json:"participants"`
	Reason       string    `json:"reason,omitempty"`
	Instance     string    `json:"instance,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}
