// Package persona provides the static persona registry.
package persona

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/internal/util"
)

// Persona is a participant descriptor plus the system prompt used when
// generating dialogue in its voice.
type Persona struct {
	core.Participant
	Prompt string `json:"prompt,omitempty"`
}

// SystemPrompt returns the persona's prompt or a generic one. The prompt may
// reference {{ .name }}, {{ .role }} and {{ .greeting }}; a prompt that fails
// to render is returned as written.
func (p Persona) SystemPrompt() string {
	if p.Prompt == "" {
		return fmt.Sprintf("You are %s. Respond in character.", p.Name())
	}
	out, err := util.RenderTemplate(p.Prompt, map[string]any{
		"name":     p.Name(),
		"role":     p.Role,
		"greeting": p.Greeting,
	})
	if err != nil {
		return p.Prompt
	}
	return out
}

// Registry is an in-memory persona lookup. It implements core.Registry.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	personas map[string]Persona
}

// NewRegistry creates a registry holding ps. Later duplicates replace
// earlier ones.
func NewRegistry(ps ...Persona) *Registry {
	r := &Registry{personas: make(map[string]Persona, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Default returns a registry with the built-in roster.
func Default() *Registry { return NewRegistry(Roster()...) }

// Register adds or replaces a persona.
func (r *Registry) Register(p Persona) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.personas[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.personas[p.ID] = p
}

// Persona returns the full persona for id.
func (r *Registry) Persona(id string) (Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	return p, ok
}

// Lookup implements core.Registry.
func (r *Registry) Lookup(id string) (core.Participant, bool) {
	p, ok := r.Persona(id)
	return p.Participant, ok
}

// List implements core.Registry, returning participants in registration order.
func (r *Registry) List() []core.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.personas[id].Participant)
	}
	return out
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}

// Len returns the number of personas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Instructions returns the system prompt for p, using the registered
// persona's prompt when p is known. It satisfies content.Instructions.
func (r *Registry) Instructions(p core.Participant) string {
	if ps, ok := r.Persona(p.ID); ok {
		return ps.SystemPrompt()
	}
	return Persona{Participant: p}.SystemPrompt()
}
