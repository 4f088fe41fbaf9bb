package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a phase change is not permitted.
var ErrInvalidTransition = errors.New("session: invalid phase transition")

// Phase is the lifecycle position of a Session.
type Phase int

const (
	// Idle means no conversation is in progress.
	Idle Phase = iota
	// AwaitingContent means participants are engaged but no dialogue arrived yet.
	AwaitingContent
	// Playing means turns are being displayed.
	Playing
	// Ending means the session is being torn down.
	Ending
)

var phaseNames = map[Phase]string{
	Idle:            "idle",
	AwaitingContent: "awaiting_content",
	Playing:         "playing",
	Ending:          "ending",
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for ph, name := range phaseNames {
		if name == string(b) {
			*p = ph
			return nil
		}
	}
	return fmt.Errorf("session: unknown phase %q", string(b))
}

// Active reports whether the phase holds the conversation slot.
func (p Phase) Active() bool { return p != Idle }

// transitions lists the permitted next phases. AwaitingContent may drop
// straight back to Idle when content never arrives.
var transitions = map[Phase][]Phase{
	Idle:            {AwaitingContent},
	AwaitingContent: {Playing, Ending, Idle},
	Playing:         {Ending},
	Ending:          {Idle},
}

// CanTransition reports whether from → to is permitted.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
