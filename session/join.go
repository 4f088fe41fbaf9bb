package session

import (
	"errors"

	"github.com/hupe1980/encounter/core"
)

var (
	// ErrNotPlaying means the session has not displayed any dialogue yet.
	ErrNotPlaying = errors.New("session: not playing")
	// ErrAlreadyParticipant means the candidate is already in the session.
	ErrAlreadyParticipant = errors.New("session: already a participant")
	// ErrSessionFull means the participant cap has been reached.
	ErrSessionFull = errors.New("session: full")
	// ErrWalkedPast means the candidate lost the coin flip.
	ErrWalkedPast = errors.New("session: walked past")
)

const (
	// DefaultJoinChance is the probability that an eligible candidate joins.
	DefaultJoinChance = 0.4
	// DefaultMaxParticipants caps a session's size.
	DefaultMaxParticipants = 4
)

// JoinOptions configure a JoinCoordinator.
type JoinOptions struct {
	Chance          float64
	MaxParticipants int
	Random          core.Random
}

// JoinCoordinator admits late arrivals into a running session.
type JoinCoordinator struct {
	chance float64
	max    int
	rnd    core.Random
}

// NewJoinCoordinator creates a coordinator with defaults applied.
func NewJoinCoordinator(optFns ...func(o *JoinOptions)) *JoinCoordinator {
	opts := JoinOptions{
		Chance:          DefaultJoinChance,
		MaxParticipants: DefaultMaxParticipants,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Random == nil {
		opts.Random = core.NewRandom()
	}
	if opts.MaxParticipants < 2 {
		opts.MaxParticipants = 2
	}
	return &JoinCoordinator{chance: opts.Chance, max: opts.MaxParticipants, rnd: opts.Random}
}

// MaxParticipants returns the configured cap.
func (j *JoinCoordinator) MaxParticipants() int { return j.max }

// Check validates the preconditions without rolling the dice.
func (j *JoinCoordinator) Check(candidate core.Participant, s *Session) error {
	if s == nil || !s.Talking() {
		return ErrNotPlaying
	}
	if s.Has(candidate.ID) {
		return ErrAlreadyParticipant
	}
	if s.Len() >= j.max {
		return ErrSessionFull
	}
	return nil
}

// TryJoin admits candidate into s if the preconditions hold and the coin flip
// succeeds. Randomness is only consumed for eligible candidates.
func (j *JoinCoordinator) TryJoin(candidate core.Participant, s *Session) error {
	if err := j.Check(candidate, s); err != nil {
		return err
	}
	if !core.Chance(j.rnd, j.chance) {
		return ErrWalkedPast
	}
	s.addParticipant(candidate)
	return nil
}
