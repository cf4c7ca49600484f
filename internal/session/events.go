// Package session implements the session transport: the hub that fans
// state snapshots out to connected observers over SSE, the typed command
// set observers send back, and the client connector.
package session

import (
	"time"

	"github.com/tartilapp/tartil-server/internal/domain"
)

// In Tartil the server-to-client direction is SSE only; observers push
// commands back over plain HTTP POSTs. Full bidirectional streaming
// (e.g. WebSockets) has not been needed so far.

// EventType represents the type of session event.
type EventType string

const (
	// EventSnapshot carries the full session state after any change.
	EventSnapshot EventType = "session.snapshot"
	// EventVerseChanged fires when the tracked verse number changes.
	EventVerseChanged EventType = "verse.changed"
	// EventReciterSelected fires when the active reciter changes.
	EventReciterSelected EventType = "reciter.selected"
	// EventSettingsChanged fires when persisted preferences change.
	EventSettingsChanged EventType = "settings.changed"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is the envelope broadcast to observers.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSnapshotEvent wraps a session snapshot for broadcast.
func NewSnapshotEvent(snap domain.SessionSnapshot) Event {
	return Event{
		Type:      EventSnapshot,
		Data:      snap,
		Timestamp: time.Now(),
	}
}

// VerseChange is the payload of EventVerseChanged.
type VerseChange struct {
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

// NewVerseChangedEvent wraps a verse change for broadcast.
func NewVerseChangedEvent(chapter, verse int) Event {
	return Event{
		Type:      EventVerseChanged,
		Data:      VerseChange{Chapter: chapter, Verse: verse},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
	}
}
