package testutil

import (
	"strings"
	"sync"

	"github.com/hupe1980/encounter/core"
)

// ParticipantBuilder provides a fluent helper for constructing participants.
// Example:
//
//	p := NewParticipantBuilder("jobs").Name("Steve Jobs").Color("#ff0000").Build()
//
// The display name defaults to the capitalized id.
type ParticipantBuilder struct {
	p core.Participant
}

// NewParticipantBuilder creates a builder for the given id.
func NewParticipantBuilder(id string) *ParticipantBuilder {
	name := id
	if id != "" {
		name = strings.ToUpper(id[:1]) + id[1:]
	}
	return &ParticipantBuilder{p: core.Participant{ID: id, DisplayName: name, Color: "#888888"}}
}

// Name sets the display name (chainable).
func (b *ParticipantBuilder) Name(n string) *ParticipantBuilder { b.p.DisplayName = n; return b }

// Role sets the role (chainable).
func (b *ParticipantBuilder) Role(r string) *ParticipantBuilder { b.p.Role = r; return b }

// Color sets the display color (chainable).
func (b *ParticipantBuilder) Color(c string) *ParticipantBuilder { b.p.Color = c; return b }

// Insights sets the canned insight phrases (chainable).
func (b *ParticipantBuilder) Insights(in ...string) *ParticipantBuilder {
	b.p.Insights = append([]string(nil), in...)
	return b
}

// Build returns the participant.
func (b *ParticipantBuilder) Build() core.Participant { return b.p }

// Participants builds default participants for ids.
func Participants(ids ...string) []core.Participant {
	out := make([]core.Participant, 0, len(ids))
	for _, id := range ids {
		out = append(out, NewParticipantBuilder(id).Build())
	}
	return out
}

// Turns builds dialogue from alternating speaker/text pairs. A trailing odd
// argument is ignored.
func Turns(speakerText ...string) []core.DialogueTurn {
	var out []core.DialogueTurn
	for i := 0; i+1 < len(speakerText); i += 2 {
		out = append(out, core.DialogueTurn{SpeakerID: speakerText[i], Text: speakerText[i+1]})
	}
	return out
}

// Registry is a map-backed core.Registry.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]core.Participant
}

// NewRegistry creates a registry holding ps.
func NewRegistry(ps ...core.Participant) *Registry {
	r := &Registry{byID: make(map[string]core.Participant)}
	for _, p := range ps {
		r.Add(p)
	}
	return r
}

// Add registers or replaces p.
func (r *Registry) Add(p core.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

// Lookup implements core.Registry.
func (r *Registry) Lookup(id string) (core.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// List implements core.Registry.
func (r *Registry) List() []core.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
