package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encounter/core"
)

type stubRandom struct {
	f     float64
	calls int
}

func (r *stubRandom) Float64() float64 { r.calls++; return r.f }
func (r *stubRandom) IntN(int) int     { return 0 }

func playingSession(t *testing.T, displayed bool) *Session {
	t.Helper()
	s := New("s1", 1, pair())
	require.NoError(t, s.Transition(AwaitingContent, t0))
	require.NoError(t, s.Transition(Playing, t0))
	if displayed {
		require.NoError(t, s.AppendTurn(core.DialogueTurn{SpeakerID: "naval", Text: "Hi"}, t0))
	}
	return s
}

func TestJoinCoordinator_RejectsBeforeFirstTurn(t *testing.T) {
	rnd := &stubRandom{f: 0}
	j := NewJoinCoordinator(func(o *JoinOptions) { o.Random = rnd })

	assert.ErrorIs(t, j.TryJoin(core.Participant{ID: "dalio"}, nil), ErrNotPlaying)
	assert.ErrorIs(t, j.TryJoin(core.Participant{ID: "dalio"}, playingSession(t, false)), ErrNotPlaying)

	s := New("s2", 1, pair())
	require.NoError(t, s.Transition(AwaitingContent, t0))
	assert.ErrorIs(t, j.TryJoin(core.Participant{ID: "dalio"}, s), ErrNotPlaying)
	assert.Zero(t, rnd.calls)
}

func TestJoinCoordinator_AcceptsAfterFirstTurn(t *testing.T) {
	j := NewJoinCoordinator(func(o *JoinOptions) {
		o.Chance = 1
	})
	s := playingSession(t, true)
	require.NoError(t, j.TryJoin(core.Participant{ID: "dalio"}, s))
	assert.Equal(t, 3, s.Len())
	assert.ErrorIs(t, j.TryJoin(core.Participant{ID: "dalio"}, s), ErrAlreadyParticipant)
}

func TestJoinCoordinator_WalksPast(t *testing.T) {
	rnd := &stubRandom{f: 0.9}
	j := NewJoinCoordinator(func(o *JoinOptions) { o.Random = rnd })
	s := playingSession(t, true)
	assert.ErrorIs(t, j.TryJoin(core.Participant{ID: "dalio"}, s), ErrWalkedPast)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, rnd.calls)

	rnd.f = 0.1
	require.NoError(t, j.TryJoin(core.Participant{ID: "dalio"}, s))
}

func TestJoinCoordinator_Cap(t *testing.T) {
	j := NewJoinCoordinator(func(o *JoinOptions) {
		o.Chance = 1
		o.MaxParticipants = 3
	})
	assert.Equal(t, 3, j.MaxParticipants())
	s := playingSession(t, true)
	require.NoError(t, j.TryJoin(core.Participant{ID: "dalio"}, s))
	assert.ErrorIs(t, j.TryJoin(core.Participant{ID: "munger"}, s), ErrSessionFull)
	assert.ErrorIs(t, j.Check(core.Participant{ID: "naval"}, s), ErrAlreadyParticipant)
}

func TestJoinCoordinator_Defaults(t *testing.T) {
	j := NewJoinCoordinator(func(o *JoinOptions) { o.MaxParticipants = 0 })
	assert.Equal(t, 2, j.MaxParticipants())
	assert.Equal(t, DefaultMaxParticipants, NewJoinCoordinator().MaxParticipants())
}
