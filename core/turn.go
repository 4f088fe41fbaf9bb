package core

import (
	"strings"
	"time"
)

// DialogueTurn is a single spoken line. It is immutable once generated.
type DialogueTurn struct {
	SpeakerID string `json:"speaker"`
	Text      string `json:"text"`
}

// Valid reports whether both speaker and text are present.
func (t DialogueTurn) Valid() bool {
	return strings.TrimSpace(t.SpeakerID) != "" && strings.TrimSpace(t.Text) != ""
}

const (
	// DefaultMemoryCap is the number of records kept per pair; the oldest is
	// evicted first.
	DefaultMemoryCap = 5
	// DefaultRecordTurns is how many turns of a conversation are remembered.
	DefaultRecordTurns = 4
)

// ConversationRecord is the unit of pair memory.
type ConversationRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	ParticipantIDs []string       `json:"participantIds"`
	Turns          []DialogueTurn `json:"turns"`
}

// NewConversationRecord keeps at most maxTurns turns (DefaultRecordTurns when
// maxTurns <= 0).
func NewConversationRecord(ids []string, turns []DialogueTurn, now time.Time, maxTurns int) ConversationRecord {
	if maxTurns <= 0 {
		maxTurns = DefaultRecordTurns
	}
	if len(turns) > maxTurns {
		turns = turns[:maxTurns]
	}
	rec := ConversationRecord{
		Timestamp:      now.UTC(),
		ParticipantIDs: append([]string(nil), ids...),
		Turns:          append([]DialogueTurn(nil), turns...),
	}
	return rec
}

// Key returns the PairKey of the record's participants.
func (r ConversationRecord) Key() PairKey { return NewPairKey(r.ParticipantIDs...) }

// TrimRecords drops the oldest records so that at most limit remain.
func TrimRecords(recs []ConversationRecord, limit int) []ConversationRecord {
	if limit <= 0 {
		limit = DefaultMemoryCap
	}
	if len(recs) <= limit {
		return recs
	}
	return recs[len(recs)-limit:]
}
