// Package bubble schedules the visible lifetime of speech bubbles. Each
// participant has at most one bubble; showing a new one replaces the old one
// immediately. A bubble expires after a read time derived from its text
// length, unless the pointer is hovering over it.
package bubble

import (
	"sort"
	"sync"
	"time"
	"unicode/utf8"
)

// Timing controls how long a bubble stays visible.
type Timing struct {
	// Base is added to every read time before clamping.
	Base time.Duration
	// PerChar is added per rune of text.
	PerChar time.Duration
	// Min and Max clamp the read time.
	Min time.Duration
	Max time.Duration
	// HoverLinger postpones removal after the pointer leaves a bubble.
	HoverLinger time.Duration
}

// DefaultTiming keeps short lines up for 2.5s and long ones for at most 8s.
var DefaultTiming = Timing{
	Base:        1500 * time.Millisecond,
	PerChar:     45 * time.Millisecond,
	Min:         2500 * time.Millisecond,
	Max:         8 * time.Second,
	HoverLinger: 300 * time.Millisecond,
}

// ReadTime returns how long text should stay on screen. It is monotonically
// non-decreasing in the rune count of text and always within [t.Min, t.Max].
func ReadTime(text string, t Timing) time.Duration {
	lo, hi := t.Min, t.Max
	if hi < lo {
		hi = lo
	}
	d := t.Base + time.Duration(utf8.RuneCountInString(text))*t.PerChar
	switch {
	case d < lo:
		return lo
	case d > hi:
		return hi
	}
	return d
}

// Bubble is a transient speech bubble keyed by participant id.
type Bubble struct {
	ParticipantID string    `json:"participantId"`
	Text          string    `json:"text"`
	Color         string    `json:"color"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Hovered       bool      `json:"hovered"`

	// lingerUntil holds removal back after a hover ends.
	lingerUntil time.Time
}

// Options configure a Scheduler.
type Options struct {
	Timing Timing
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Scheduler owns the bubble table. It is safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	timing  Timing
	now     func() time.Time
	bubbles map[string]*Bubble
}

// New creates an empty Scheduler.
func New(optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		Timing: DefaultTiming,
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		timing:  opts.Timing,
		now:     opts.Now,
		bubbles: make(map[string]*Bubble),
	}
}

// Timing returns the scheduler's timing configuration.
func (s *Scheduler) Timing() Timing { return s.timing }

// ReadTime is ReadTime with the scheduler's timing.
func (s *Scheduler) ReadTime(text string) time.Duration { return ReadTime(text, s.timing) }

// Show creates or replaces the bubble of participantID.
func (s *Scheduler) Show(participantID, text, color string) Bubble {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &Bubble{
		ParticipantID: participantID,
		Text:          text,
		Color:         color,
		ExpiresAt:     s.now().Add(ReadTime(text, s.timing)),
	}
	s.bubbles[participantID] = b
	return *b
}

// Tick removes every bubble whose expiry has passed and that is neither
// hovered nor lingering. It returns the removed participant ids, sorted.
func (s *Scheduler) Tick(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, b := range s.bubbles {
		if b.Hovered || now.Before(b.lingerUntil) {
			continue
		}
		if now.After(b.ExpiresAt) {
			delete(s.bubbles, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// SetHovered suppresses expiry of id's bubble. It reports whether a bubble
// exists.
func (s *Scheduler) SetHovered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bubbles[id]
	if !ok {
		return false
	}
	b.Hovered = true
	return true
}

// ClearHovered ends the hover on id's bubble; removal stays suppressed for
// delay afterwards to avoid flicker. A negative delay uses the configured
// HoverLinger.
func (s *Scheduler) ClearHovered(id string, delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bubbles[id]
	if !ok {
		return false
	}
	if delay < 0 {
		delay = s.timing.HoverLinger
	}
	b.Hovered = false
	b.lingerUntil = s.now().Add(delay)
	return true
}

// Get returns id's bubble, if any.
func (s *Scheduler) Get(id string) (Bubble, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bubbles[id]
	if !ok {
		return Bubble{}, false
	}
	return *b, true
}

// Active returns a snapshot of all bubbles ordered by participant id.
func (s *Scheduler) Active() []Bubble {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Bubble, 0, len(s.bubbles))
	for _, b := range s.bubbles {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}

// Remove drops id's bubble regardless of hover state.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bubbles, id)
}

// Clear drops the bubbles of all given ids.
func (s *Scheduler) Clear(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.bubbles, id)
	}
}
