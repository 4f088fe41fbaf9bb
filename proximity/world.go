// Package proximity tracks participant positions on the grid and raises
// bumps when two of them come close. It also serves as the movement status
// board shared between pathing and the conversation engine.
package proximity

import (
	"math"
	"sort"
	"sync"

	"github.com/hupe1980/encounter/core"
)

// DefaultThreshold is the grid distance under which two participants bump.
const DefaultThreshold = 2.0

// Position is a point on the grid.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Bump is an unordered pair of participants within the threshold. A is the
// lexically smaller id.
type Bump struct {
	A, B     string
	Distance float64
}

// Key returns the bump's pair key.
func (b Bump) Key() core.PairKey { return core.NewPairKey(b.A, b.B) }

// Bounds limits where Wander may move participants.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Options configure a World.
type Options struct {
	Threshold float64
	Bounds    Bounds
}

// World holds positions and movement statuses. It is safe for concurrent
// use and implements core.StatusBoard.
type World struct {
	mu        sync.RWMutex
	threshold float64
	bounds    Bounds
	positions map[string]Position
	statuses  map[string]core.Status
}

// NewWorld creates an empty world.
func NewWorld(optFns ...func(o *Options)) *World {
	opts := Options{
		Threshold: DefaultThreshold,
		Bounds:    Bounds{MaxX: 20, MaxY: 20},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	return &World{
		threshold: opts.Threshold,
		bounds:    opts.Bounds,
		positions: make(map[string]Position),
		statuses:  make(map[string]core.Status),
	}
}

// Threshold returns the bump distance.
func (w *World) Threshold() float64 { return w.threshold }

// Move records a position update. Unknown participants start idle.
func (w *World) Move(id string, pos Position) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.positions[id] = pos
	if _, ok := w.statuses[id]; !ok {
		w.statuses[id] = core.StatusIdle
	}
}

// Remove forgets a participant.
func (w *World) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.positions, id)
	delete(w.statuses, id)
}

// Position returns id's last known position.
func (w *World) Position(id string) (Position, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.positions[id]
	return p, ok
}

// IDs returns all tracked participant ids, sorted.
func (w *World) IDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sortedIDsLocked()
}

func (w *World) sortedIDsLocked() []string {
	ids := make([]string, 0, len(w.positions))
	for id := range w.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Bumps returns every pair closer than the threshold, closest first.
func (w *World) Bumps() []Bump {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := w.sortedIDsLocked()
	var out []Bump
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			d := w.positions[ids[i]].Distance(w.positions[ids[j]])
			if d < w.threshold {
				out = append(out, Bump{A: ids[i], B: ids[j], Distance: d})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Nearby returns the ids within the threshold of any of the given ids,
// excluding those ids themselves.
func (w *World) Nearby(ids ...string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	self := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		self[id] = struct{}{}
	}
	var out []string
	for _, cand := range w.sortedIDsLocked() {
		if _, ok := self[cand]; ok {
			continue
		}
		cp := w.positions[cand]
		for _, id := range ids {
			p, ok := w.positions[id]
			if ok && p.Distance(cp) < w.threshold {
				out = append(out, cand)
				break
			}
		}
	}
	return out
}

// SetStatus implements core.StatusBoard.
func (w *World) SetStatus(id string, s core.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statuses[id] = s
}

// Status implements core.StatusBoard. Unknown ids are idle.
func (w *World) Status(id string) core.Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if s, ok := w.statuses[id]; ok {
		return s
	}
	return core.StatusIdle
}

// Statuses implements core.StatusBoard.
func (w *World) Statuses() map[string]core.Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]core.Status, len(w.statuses))
	for id, s := range w.statuses {
		out[id] = s
	}
	return out
}

// Wander moves every non-busy participant by up to step in each axis,
// clamped to the bounds. It stands in for pathing in simulations.
func (w *World) Wander(rnd core.Random, step float64) {
	if rnd == nil {
		rnd = core.NewRandom()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range w.sortedIDsLocked() {
		if w.statuses[id].Busy() {
			continue
		}
		p := w.positions[id]
		p.X = clamp(p.X+(rnd.Float64()*2-1)*step, w.bounds.MinX, w.bounds.MaxX)
		p.Y = clamp(p.Y+(rnd.Float64()*2-1)*step, w.bounds.MinY, w.bounds.MaxY)
		w.positions[id] = p
		w.statuses[id] = core.StatusWalking
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi <= lo {
		return v
	}
	return math.Max(lo, math.Min(hi, v))
}
