package core

import (
	"testing"
)

func TestEvent_Constructors(t *testing.T) {
	e := NewEvent(EventSessionStarted, "sess-1")
	if e.Type != EventSessionStarted || e.SessionID != "sess-1" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	turn := NewTurnEvent(EventTurn, "sess-1", DialogueTurn{SpeakerID: "naval", Text: "hi"}, "#3399ff")
	if turn.Turn == nil || turn.Turn.SpeakerID != "naval" || turn.Color != "#3399ff" {
		t.Fatalf("NewTurnEvent malformed: %+v", turn)
	}

	if NewID() == NewID() {
		t.Fatal("expected unique ids")
	}

	if e.UnixSeconds() <= 0 {
		t.Fatal("expected positive unix seconds")
	}
}
