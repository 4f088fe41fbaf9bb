package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/logging"
)

// DefaultTimeout bounds memory lookup plus backend generation.
const DefaultTimeout = 8 * time.Second

// ErrNoBackend is reported as the fallback cause when no backend is set.
var ErrNoBackend = errors.New("content: no backend configured")

// Source tells where a Result's turns came from.
type Source string

const (
	SourceBackend  Source = "backend"
	SourceFallback Source = "fallback"
)

// Result is the outcome of a generation. Turns is never empty.
type Result struct {
	Turns    []core.DialogueTurn
	Source   Source
	Err      error // why the fallback was used
	Duration time.Duration
	// Persisted is closed once the memory write finished. It is nil when
	// nothing was persisted.
	Persisted <-chan struct{}
}

// Options configure a Generator.
type Options struct {
	Backend     Backend
	Memory      core.MemoryStore
	Timeout     time.Duration
	RecordTurns int
	Random      core.Random
	Logger      logging.Logger
	Now         func() time.Time
}

// Generator produces dialogue for a pair of participants.
type Generator struct {
	backend     Backend
	memory      core.MemoryStore
	timeout     time.Duration
	recordTurns int
	rnd         core.Random
	logger      logging.Logger
	now         func() time.Time
}

// NewGenerator creates a Generator. Without a backend it always falls back.
func NewGenerator(optFns ...func(o *Options)) *Generator {
	opts := Options{
		Timeout:     DefaultTimeout,
		RecordTurns: core.DefaultRecordTurns,
		Logger:      logging.NoOpLogger{},
		Now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Random == nil {
		opts.Random = core.NewRandom()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{
		backend:     opts.Backend,
		memory:      opts.Memory,
		timeout:     opts.Timeout,
		recordTurns: opts.RecordTurns,
		rnd:         opts.Random,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// Timeout returns the generation deadline.
func (g *Generator) Timeout() time.Duration { return g.timeout }

// Generate returns dialogue between a and b. It never fails: any problem
// with memory, the backend or its output degrades to Fallback. It returns
// within the configured timeout even if the backend ignores cancellation.
func (g *Generator) Generate(ctx context.Context, a, b core.Participant) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := Request{Participant1: a, Participant2: b, Memory: g.recall(ctx, a, b)}

	turns, err := g.fromBackend(ctx, req)
	dur := time.Since(start)
	g.logGeneration(len(turns), dur, err)
	if err != nil {
		return Result{
			Turns:    Fallback(a, b, g.rnd),
			Source:   SourceFallback,
			Err:      err,
			Duration: dur,
		}
	}
	return Result{
		Turns:     turns,
		Source:    SourceBackend,
		Duration:  dur,
		Persisted: g.remember(a, b, turns),
	}
}

func (g *Generator) recall(ctx context.Context, a, b core.Participant) []core.ConversationRecord {
	if g.memory == nil {
		return nil
	}
	key := core.KeyOf(a, b)
	start := time.Now()
	recs, err := await(ctx, func(ctx context.Context) ([]core.ConversationRecord, error) {
		return g.memory.Recent(ctx, key)
	})
	if err != nil {
		g.logger.Debug("memory lookup failed, continuing without context", "pair", key.String(), "error", err)
		return nil
	}
	if pl, ok := g.logger.(performanceLogger); ok {
		pl.LogPerformance("memory.recent", time.Since(start), map[string]any{"pair": key.String(), "records": len(recs)})
	}
	return recs
}

func (g *Generator) fromBackend(ctx context.Context, req Request) ([]core.DialogueTurn, error) {
	if g.backend == nil {
		return nil, ErrNoBackend
	}
	raw, err := await(ctx, func(ctx context.Context) (string, error) {
		return g.backend.Generate(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	turns, err := ParseTurns(raw)
	if err != nil {
		return nil, err
	}
	turns = ResolveSpeakers(turns, req.Participants())
	if len(turns) == 0 {
		return nil, ErrNoTurns
	}
	return turns, nil
}

func (g *Generator) remember(a, b core.Participant, turns []core.DialogueTurn) <-chan struct{} {
	if g.memory == nil {
		return nil
	}
	rec := core.NewConversationRecord([]string{a.ID, b.ID}, turns, g.now(), g.recordTurns)
	return core.BestEffort(g.logger, "memory.append", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		return g.memory.Append(ctx, rec)
	})
}

type performanceLogger interface {
	LogPerformance(op string, dur time.Duration, metrics map[string]any)
}

type generationLogger interface {
	LogGeneration(model string, turns int, dur time.Duration, success bool, err error)
}

func (g *Generator) logGeneration(turns int, dur time.Duration, err error) {
	if gl, ok := g.logger.(generationLogger); ok {
		gl.LogGeneration(backendName(g.backend), turns, dur, err == nil, err)
		return
	}
	if err != nil {
		g.logger.Info("dialogue generation failed, using fallback", "duration", dur, "error", err)
		return
	}
	g.logger.Debug("dialogue generated", "turns", turns, "duration", dur)
}

func backendName(b Backend) string {
	switch v := b.(type) {
	case nil:
		return "none"
	case *ModelBackend:
		return v.Model().Info().Name
	case *HTTPBackend:
		return v.url
	default:
		return fmt.Sprintf("%T", b)
	}
}

// ResolveSpeakers maps each turn's speaker onto a participant id. Speakers
// may be given by id or display name, case-insensitively; turns by anyone
// else are dropped.
func ResolveSpeakers(turns []core.DialogueTurn, participants []core.Participant) []core.DialogueTurn {
	out := make([]core.DialogueTurn, 0, len(turns))
	for _, t := range turns {
		for _, p := range participants {
			if t.SpeakerID == p.ID || strings.EqualFold(t.SpeakerID, p.ID) || strings.EqualFold(t.SpeakerID, p.DisplayName) {
				out = append(out, core.DialogueTurn{SpeakerID: p.ID, Text: t.Text})
				break
			}
		}
	}
	return out
}

// await runs fn and returns early when ctx is done, so a backend that
// ignores cancellation cannot hold the caller past its deadline.
func await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
