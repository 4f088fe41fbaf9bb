package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a point in a conversation's lifecycle.
type EventType string

const (
	// EventAny is only used to register callbacks for every event type.
	EventAny EventType = "*"

	EventSessionStarted    EventType = "session_started"
	EventTurn              EventType = "turn"
	EventParticipantJoined EventType = "participant_joined"
	EventAwkwardSilence    EventType = "awkward_silence"
	EventSessionEnding     EventType = "session_ending"
	EventSessionEnded      EventType = "session_ended"
	EventTranscriptHidden  EventType = "transcript_hidden"
	EventParticipantsReset EventType = "participants_reset"
)

// Event is emitted by the engine for renderers and observers. After emission
// it should be treated as immutable. Turn is set for turn, join and silence
// events; Reason is set when a session ends.
type Event struct {
	ID           string            `json:"id"`
	Type         EventType         `json:"type"`
	SessionID    string            `json:"sessionId,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Participants []string          `json:"participants,omitempty"`
	Turn         *DialogueTurn     `json:"turn,omitempty"`
	Color        string            `json:"color,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates a bare event of type t bound to a session.
func NewEvent(t EventType, sessionID string) Event {
	return Event{
		ID:        NewID(),
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}

// NewTurnEvent creates an event carrying a displayed turn.
func NewTurnEvent(t EventType, sessionID string, turn DialogueTurn, color string) Event {
	e := NewEvent(t, sessionID)
	e.Turn = &turn
	e.Color = color
	return e
}

// NewID generates a new unique identifier for sessions and events.
func NewID() string { return uuid.NewString() }

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
