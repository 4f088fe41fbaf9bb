package runner

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/engine"
	"github.com/hupe1980/encounter/logging"
	"github.com/hupe1980/encounter/proximity"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// TickInterval is the period of Run. Defaults to 250ms.
	TickInterval time.Duration
	// HealthInterval is how often the engine's health check runs.
	// Defaults to 5s.
	HealthInterval time.Duration
	// WanderStep moves idle participants randomly each tick. Zero leaves
	// movement to an external feed.
	WanderStep float64
	// Random drives wandering. Defaults to core.NewRandom().
	Random core.Random
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// StepResult describes what a single tick did.
type StepResult struct {
	Started bool
	Joined  []string
	Expired []string
	Stuck   bool
}

// Runner drives the engine from the world: bumps become encounters, nearby
// participants try to join, bubbles expire and stuck sessions are reaped.
// Public methods are safe for concurrent use.
type Runner struct {
	engine *engine.Engine
	world  *proximity.World

	tickInterval   time.Duration
	healthInterval time.Duration
	wanderStep     float64
	rnd            core.Random
	logger         logging.Logger

	mu         sync.Mutex
	lastHealth time.Time
	touching   map[core.PairKey]struct{}
	tried      map[string]string // candidate id -> session id
}

// New constructs a Runner with optional overrides.
func New(e *engine.Engine, world *proximity.World, optFns ...func(o *Options)) *Runner {
	opts := Options{
		TickInterval:   250 * time.Millisecond,
		HealthInterval: 5 * time.Second,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Random == nil {
		opts.Random = core.NewRandom()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 250 * time.Millisecond
	}

	return &Runner{
		engine:         e,
		world:          world,
		tickInterval:   opts.TickInterval,
		healthInterval: opts.HealthInterval,
		wanderStep:     opts.WanderStep,
		rnd:            opts.Random,
		logger:         opts.Logger,
		touching:       make(map[core.PairKey]struct{}),
		tried:          make(map[string]string),
	}
}

// Step runs one deterministic tick at now.
//
// Only pairs that were not already touching on the previous tick count as
// bumps, so standing next to each other does not re-roll the engagement gate.
// Likewise a candidate gets one join attempt per session, made only once the
// first turn is on screen.
func (r *Runner) Step(now time.Time) StepResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res StepResult
	if r.wanderStep > 0 {
		r.world.Wander(r.rnd, r.wanderStep)
	}
	res.Expired = r.engine.Bubbles().Tick(now)

	bumps := r.world.Bumps()
	current := make(map[core.PairKey]struct{}, len(bumps))
	for _, b := range bumps {
		key := b.Key()
		current[key] = struct{}{}
		if _, seen := r.touching[key]; seen || res.Started {
			continue
		}
		if r.engine.Encounter(b.A, b.B) {
			r.logger.Info("encounter started", "a", b.A, "b", b.B, "distance", b.Distance)
			res.Started = true
		}
	}
	r.touching = current

	snap := r.engine.Snapshot()
	if snap.Talking() {
		for _, id := range r.world.Nearby(core.IDs(snap.Participants)...) {
			if r.tried[id] == snap.ID {
				continue
			}
			r.tried[id] = snap.ID
			if r.engine.TryJoin(id) {
				res.Joined = append(res.Joined, id)
			}
		}
	} else if !snap.Phase.Active() {
		clear(r.tried)
	}

	if r.healthInterval > 0 && now.Sub(r.lastHealth) >= r.healthInterval {
		r.lastHealth = now
		res.Stuck = r.engine.HealthCheck(now)
	}
	return res
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	r.logger.Info("runner starting", "interval", r.tickInterval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping")
			return ctx.Err()
		case now := <-ticker.C:
			res := r.Step(now)
			if res.Stuck {
				r.logger.Warn("health check released a stuck session")
			}
		}
	}
}
