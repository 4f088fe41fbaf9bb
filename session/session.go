package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/encounter/core"
)

// Reason explains why a session ended.
type Reason string

const (
	ReasonCompleted      Reason = "completed"
	ReasonTimeout        Reason = "timeout"
	ReasonAwkwardSilence Reason = "awkward_silence"
	ReasonForced         Reason = "forced"
	ReasonStuck          Reason = "stuck"
	ReasonFailure        Reason = "failure"
)

// Session is the live conversation aggregate. Participants only grow and
// turns are append-only.
type Session struct {
	id           string
	epoch        uint64
	phase        Phase
	participants []core.Participant
	initial      int
	turns        []core.DialogueTurn
	startedAt    time.Time
	firstTurnAt  time.Time
	reason       Reason
}

// New creates an Idle session for the given participants. Duplicate ids are
// dropped, keeping the first occurrence.
func New(id string, epoch uint64, participants []core.Participant) *Session {
	s := &Session{id: id, epoch: epoch}
	for _, p := range participants {
		if !s.Has(p.ID) {
			s.participants = append(s.participants, p)
		}
	}
	s.initial = len(s.participants)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Epoch returns the acquisition counter value this session was created under.
func (s *Session) Epoch() uint64 { return s.epoch }

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Reason returns why the session ended, if it has.
func (s *Session) Reason() Reason { return s.reason }

// StartedAt returns when the session left Idle.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// FirstTurnAt returns when the first turn was displayed, zero if none yet.
func (s *Session) FirstTurnAt() time.Time { return s.firstTurnAt }

// Talking reports whether dialogue has actually started.
func (s *Session) Talking() bool { return s.phase == Playing && !s.firstTurnAt.IsZero() }

// Transition moves the session to the next phase.
func (s *Session) Transition(to Phase, now time.Time) error {
	if !CanTransition(s.phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.phase, to)
	}
	if s.phase == Idle && to == AwaitingContent {
		s.startedAt = now
	}
	s.phase = to
	return nil
}

// End moves the session into Ending and records the reason. Ending an already
// ending session keeps the first reason.
func (s *Session) End(reason Reason, now time.Time) error {
	if s.phase == Ending {
		return nil
	}
	if err := s.Transition(Ending, now); err != nil {
		return err
	}
	s.reason = reason
	return nil
}

// Abort drops the session back to Idle from any phase. Used by cleanup, which
// must succeed regardless of where the session got stuck.
func (s *Session) Abort(reason Reason) {
	if s.reason == "" {
		s.reason = reason
	}
	s.phase = Idle
}

// AppendTurn adds a displayed turn to the log. The first turn appended while
// Playing marks the session as talking.
func (s *Session) AppendTurn(turn core.DialogueTurn, now time.Time) error {
	if s.phase == Idle {
		return fmt.Errorf("%w: append turn while %s", ErrInvalidTransition, s.phase)
	}
	s.turns = append(s.turns, turn)
	if s.phase == Playing && s.firstTurnAt.IsZero() {
		s.firstTurnAt = now
	}
	return nil
}

// Has reports whether id is a participant.
func (s *Session) Has(id string) bool {
	return slices.ContainsFunc(s.participants, func(p core.Participant) bool { return p.ID == id })
}

// Participant returns the participant with the given id.
func (s *Session) Participant(id string) (core.Participant, bool) {
	for _, p := range s.participants {
		if p.ID == id {
			return p, true
		}
	}
	return core.Participant{}, false
}

// Participants returns a copy of the participant list in join order.
func (s *Session) Participants() []core.Participant { return slices.Clone(s.participants) }

// ParticipantIDs returns the participant ids in join order.
func (s *Session) ParticipantIDs() []string { return core.IDs(s.participants) }

// Turns returns a copy of the turn log.
func (s *Session) Turns() []core.DialogueTurn { return slices.Clone(s.turns) }

// Len returns the number of participants.
func (s *Session) Len() int { return len(s.participants) }

// Key is the key of the current participant set.
func (s *Session) Key() core.PairKey { return core.KeyOf(s.participants...) }

// Enlarged reports whether anyone joined after the start.
func (s *Session) Enlarged() bool { return len(s.participants) > s.initial }

func (s *Session) addParticipant(p core.Participant) {
	s.participants = append(s.participants, p)
}

// Transcript builds the notification payload for the session.
func (s *Session) Transcript(endedAt time.Time) core.Transcript {
	return core.Transcript{
		SessionID:    s.id,
		Participants: s.Participants(),
		Turns:        s.Turns(),
		Reason:       string(s.reason),
		StartedAt:    s.startedAt,
		EndedAt:      endedAt,
	}
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID           string              `json:"id,omitempty"`
	Phase        Phase               `json:"phase"`
	Participants []core.Participant  `json:"participants,omitempty"`
	Turns        []core.DialogueTurn `json:"turns,omitempty"`
	StartedAt    *time.Time          `json:"startedAt,omitempty"`
	FirstTurnAt  *time.Time          `json:"firstTurnAt,omitempty"`
	Reason       Reason              `json:"reason,omitempty"`
}

// Talking reports whether the snapshot was taken after the first turn was
// displayed, which is when late arrivals may join.
func (s Snapshot) Talking() bool { return s.Phase == Playing && s.FirstTurnAt != nil }

// Snapshot copies the session state. A nil session snapshots as Idle.
func (s *Session) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{Phase: Idle}
	}
	snap := Snapshot{
		ID:           s.id,
		Phase:        s.phase,
		Participants: s.Participants(),
		Turns:        s.Turns(),
		Reason:       s.reason,
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.firstTurnAt.IsZero() {
		t := s.firstTurnAt
		snap.FirstTurnAt = &t
	}
	return snap
}
