// Package encounter provides a high-level façade over the encounter engine.
// A Town wires a proximity world, a persona registry, the engine and the
// tick runner together with in-memory defaults, so most applications:
//  1. Create a Town via New() (optionally supplying a backend, memory store
//     or notifier)
//  2. Place participants with Place
//  3. Drive it with Run, or Step for deterministic tests
//
// Lifecycle events are observed through RegisterCallback.
package encounter

import (
	"context"
	"time"

	"github.com/hupe1980/encounter/bubble"
	"github.com/hupe1980/encounter/content"
	"github.com/hupe1980/encounter/cooldown"
	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/engine"
	"github.com/hupe1980/encounter/logging"
	"github.com/hupe1980/encounter/memory"
	"github.com/hupe1980/encounter/persona"
	"github.com/hupe1980/encounter/proximity"
	"github.com/hupe1980/encounter/runner"
	"github.com/hupe1980/encounter/session"
)

// Options configures the Town.
type Options struct {
	// EngineConfig holds session timing and probabilities.
	EngineConfig engine.Config

	// Cooldown is the re-engagement window per participant set.
	Cooldown time.Duration

	// JoinChance and MaxParticipants govern late joiners.
	JoinChance      float64
	MaxParticipants int

	// Timing controls bubble read times.
	Timing bubble.Timing

	// Threshold is the bump distance; Bounds limit wandering.
	Threshold float64
	Bounds    proximity.Bounds

	// TickInterval, HealthInterval and WanderStep configure the runner.
	TickInterval   time.Duration
	HealthInterval time.Duration
	WanderStep     float64

	// Registry resolves participants. Defaults to the built-in roster.
	Registry core.Registry

	// Backend generates dialogue. Nil means fallback templates only.
	Backend content.Backend

	// GenerationTimeout bounds memory lookup plus generation.
	GenerationTimeout time.Duration

	// MemoryStore defaults to an in-memory store.
	MemoryStore core.MemoryStore

	// Notifier receives transcripts. Nil disables delivery.
	Notifier core.Notifier

	// Random drives every chance gate. Defaults to core.NewRandom().
	Random core.Random

	// Logger defaults to NoOp logger if nil.
	Logger logging.Logger
}

// Town is the façade aggregating world, engine and runner.
type Town struct {
	opts   Options
	world  *proximity.World
	engine *engine.Engine
	runner *runner.Runner
}

// New creates a Town. Any unset collaborator gets an in-memory default.
func New(optFns ...func(o *Options)) *Town {
	opts := Options{
		EngineConfig:      engine.DefaultConfig,
		Cooldown:          cooldown.DefaultWindow,
		JoinChance:        session.DefaultJoinChance,
		MaxParticipants:   session.DefaultMaxParticipants,
		Timing:            bubble.DefaultTiming,
		Threshold:         proximity.DefaultThreshold,
		Bounds:            proximity.Bounds{MaxX: 20, MaxY: 15},
		TickInterval:      250 * time.Millisecond,
		HealthInterval:    5 * time.Second,
		GenerationTimeout: content.DefaultTimeout,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = persona.Default()
	}
	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}
	if opts.Random == nil {
		opts.Random = core.NewRandom()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	world := proximity.NewWorld(func(o *proximity.Options) {
		o.Threshold = opts.Threshold
		o.Bounds = opts.Bounds
	})

	gen := content.NewGenerator(func(o *content.Options) {
		o.Backend = opts.Backend
		o.Memory = opts.MemoryStore
		o.Timeout = opts.GenerationTimeout
		o.Random = opts.Random
		o.Logger = logging.ForComponent(opts.Logger, "content")
	})

	eng := engine.New(opts.Registry, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Statuses = world
		o.Ledger = cooldown.New(func(o *cooldown.Options) { o.Window = opts.Cooldown })
		o.Generator = gen
		o.Joins = session.NewJoinCoordinator(func(o *session.JoinOptions) {
			o.Chance = opts.JoinChance
			o.MaxParticipants = opts.MaxParticipants
			o.Random = opts.Random
		})
		o.Bubbles = bubble.New(func(o *bubble.Options) { o.Timing = opts.Timing })
		o.Notifier = opts.Notifier
		o.Random = opts.Random
		o.Logger = logging.ForComponent(opts.Logger, "engine")
	})

	r := runner.New(eng, world, func(o *runner.Options) {
		o.TickInterval = opts.TickInterval
		o.HealthInterval = opts.HealthInterval
		o.WanderStep = opts.WanderStep
		o.Random = opts.Random
		o.Logger = logging.ForComponent(opts.Logger, "runner")
	})

	return &Town{opts: opts, world: world, engine: eng, runner: r}
}

// Engine returns the underlying engine.
func (t *Town) Engine() *engine.Engine { return t.engine }

// World returns the position and status board.
func (t *Town) World() *proximity.World { return t.world }

// Runner returns the tick runner.
func (t *Town) Runner() *runner.Runner { return t.runner }

// Registry returns the participant registry.
func (t *Town) Registry() core.Registry { return t.opts.Registry }

// RegisterCallback adds a lifecycle observer.
func (t *Town) RegisterCallback(cb engine.Callback) { t.engine.RegisterCallback(cb) }

// Place puts a registered participant at pos. Unknown ids are ignored and
// reported as false.
func (t *Town) Place(id string, pos proximity.Position) bool {
	if _, ok := t.opts.Registry.Lookup(id); !ok {
		t.opts.Logger.Debug("ignoring unknown participant", "participant", id)
		return false
	}
	t.world.Move(id, pos)
	return true
}

// Scatter places every registered participant at a random position within
// the bounds.
func (t *Town) Scatter() {
	b := t.opts.Bounds
	for _, p := range t.opts.Registry.List() {
		t.world.Move(p.ID, proximity.Position{
			X: b.MinX + t.opts.Random.Float64()*(b.MaxX-b.MinX),
			Y: b.MinY + t.opts.Random.Float64()*(b.MaxY-b.MinY),
		})
	}
}

// Step runs one tick at now.
func (t *Town) Step(now time.Time) runner.StepResult { return t.runner.Step(now) }

// Run ticks until ctx is cancelled.
func (t *Town) Run(ctx context.Context) error { return t.runner.Run(ctx) }

// Close ends any active session and stops event delivery.
func (t *Town) Close() { t.engine.Close() }
