package core

import (
	"context"
	"time"
)

// Transcript is the finished conversation handed to the notification relay.
type Transcript struct {
	SessionID    string         `json:"sessionId"`
	Participants []Participant  `json:"participants"`
	Turns        []DialogueTurn `json:"turns"`
	Reason       string         `json:"reason"`
	StartedAt    time.Time      `json:"startedAt"`
	EndedAt      time.Time      `json:"endedAt"`
}

// Speaker resolves a turn's speaker within the transcript.
func (t Transcript) Speaker(id string) (Participant, bool) {
	for _, p := range t.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Notifier delivers a transcript to an external sink. Callers treat delivery
// as best-effort.
type Notifier interface {
	Notify(ctx context.Context, t Transcript) error
}
