package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/encounter/bubble"
	"github.com/hupe1980/encounter/content"
	"github.com/hupe1980/encounter/cooldown"
	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/logging"
	"github.com/hupe1980/encounter/proximity"
	"github.com/hupe1980/encounter/session"
)

const (
	// SilenceText is displayed when no dialogue arrived in time.
	SilenceText = "..."

	// JoinText is displayed for a participant joining mid-conversation.
	JoinText = "*joins the conversation*"
)

// Config defines the timing and probability parameters of the engine.
//
// Example:
//
//	cfg := DefaultConfig
//	cfg.EngagementChance = 1
//	cfg.MaxConversationTime = 30 * time.Second
type Config struct {
	// EngagementChance is the probability that an eligible bump becomes a
	// conversation.
	EngagementChance float64

	// MaxConversationTime is the hard ceiling for a session from acquisition
	// to release.
	MaxConversationTime time.Duration

	// AwkwardSilence is how long the session waits for content before it
	// gives up.
	AwkwardSilence time.Duration

	// SilenceGrace keeps the silence marker visible before release.
	SilenceGrace time.Duration

	// TranscriptGrace keeps the last transcript visible after release.
	TranscriptGrace time.Duration

	// TurnGap is the pause between one bubble's read time and the next turn.
	TurnGap time.Duration

	// NotifyTimeout bounds transcript delivery.
	NotifyTimeout time.Duration
}

// DefaultConfig provides the default configuration values:
//   - EngagementChance: 0.4
//   - MaxConversationTime: 60s
//   - AwkwardSilence: 10s
//   - SilenceGrace: 2s
//   - TranscriptGrace: 5s
//   - TurnGap: 500ms
//   - NotifyTimeout: 10s
var DefaultConfig = Config{
	EngagementChance:    0.4,
	MaxConversationTime: 60 * time.Second,
	AwkwardSilence:      10 * time.Second,
	SilenceGrace:        2 * time.Second,
	TranscriptGrace:     5 * time.Second,
	TurnGap:             500 * time.Millisecond,
	NotifyTimeout:       10 * time.Second,
}

// Generator produces the dialogue for a pair. It must always return at least
// one turn and honor ctx. *content.Generator implements it.
type Generator interface {
	Generate(ctx context.Context, a, b core.Participant) content.Result
}

// Options configures an Engine using the functional options pattern. Every
// collaborator has an in-memory default.
type Options struct {
	// Config contains timing and probability parameters.
	// Defaults to DefaultConfig.
	Config Config

	// Statuses is the movement status table shared with pathing.
	// Defaults to an empty proximity.World.
	Statuses core.StatusBoard

	// Ledger gates re-engagement. Defaults to cooldown.New().
	Ledger *cooldown.Ledger

	// Generator produces dialogue. Defaults to a fallback-only
	// content.Generator.
	Generator Generator

	// Joins decides late arrivals. Defaults to session.NewJoinCoordinator().
	Joins *session.JoinCoordinator

	// Bubbles schedules visible speech. Defaults to bubble.New().
	Bubbles *bubble.Scheduler

	// Notifier receives transcripts of conversations that took place:
	// completed ones, and ones cut short after a turn was displayed. A
	// notifier with a Post method (notify.Relay) delivers on its own;
	// others are called in the background under NotifyTimeout. Nil disables
	// delivery.
	Notifier core.Notifier

	// Random drives the engagement gate. Defaults to core.NewRandom().
	Random core.Random

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Now is the clock for session timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Engine owns every piece of mutable conversation state: the single active
// session, its timers, the cooldown ledger and the movement statuses it
// writes. At most one session is outside Idle at any time.
//
// Pending timers carry the epoch of the session they were started for; a
// timer firing after its session was released is a no-op.
//
// Example:
//
//	e := engine.New(persona.Default(), func(o *engine.Options) {
//	    o.Notifier = relay
//	})
//	defer e.Close()
//	e.RegisterCallback(engine.NewFunctionCallback(core.EventTurn, onTurn))
//	e.Encounter("jobs", "musk")
type Engine struct {
	cfg       Config
	registry  core.Registry
	statuses  core.StatusBoard
	ledger    *cooldown.Ledger
	generator Generator
	joins     *session.JoinCoordinator
	bubbles   *bubble.Scheduler
	notifier  core.Notifier
	rnd       core.Random
	logger    logging.Logger
	now       func() time.Time

	callbacks *CallbackManager
	events    *dispatcher

	mu         sync.Mutex // protects the fields below
	epoch      uint64
	active     *run
	transcript *core.Transcript
	hideTimer  *time.Timer
	closed     bool
}

// run is the engine's bookkeeping for the active session.
type run struct {
	session *session.Session
	log     logging.Logger
	cancel  context.CancelFunc
	silence *time.Timer
	timers  []*time.Timer
}

// New creates an Engine resolving participants through registry.
func New(registry core.Registry, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Statuses == nil {
		opts.Statuses = proximity.NewWorld()
	}
	if opts.Ledger == nil {
		opts.Ledger = cooldown.New()
	}
	if opts.Generator == nil {
		opts.Generator = content.NewGenerator(func(o *content.Options) { o.Logger = opts.Logger })
	}
	if opts.Joins == nil {
		opts.Joins = session.NewJoinCoordinator()
	}
	if opts.Bubbles == nil {
		opts.Bubbles = bubble.New()
	}
	if opts.Random == nil {
		opts.Random = core.NewRandom()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if t, ok := opts.Generator.(interface{ Timeout() time.Duration }); ok && t.Timeout() >= opts.Config.AwkwardSilence {
		opts.Logger.Warn("generation timeout does not fit the awkward silence budget",
			"generation_timeout", t.Timeout(), "awkward_silence", opts.Config.AwkwardSilence)
	}

	cm := NewCallbackManager()
	return &Engine{
		cfg:       opts.Config,
		registry:  registry,
		statuses:  opts.Statuses,
		ledger:    opts.Ledger,
		generator: opts.Generator,
		joins:     opts.Joins,
		bubbles:   opts.Bubbles,
		notifier:  opts.Notifier,
		rnd:       opts.Random,
		logger:    opts.Logger,
		now:       opts.Now,
		callbacks: cm,
		events:    newDispatcher(cm, opts.Logger),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Registry returns the participant registry.
func (e *Engine) Registry() core.Registry { return e.registry }

// Statuses returns the movement status table.
func (e *Engine) Statuses() core.StatusBoard { return e.statuses }

// Ledger returns the cooldown ledger.
func (e *Engine) Ledger() *cooldown.Ledger { return e.ledger }

// Bubbles returns the bubble scheduler.
func (e *Engine) Bubbles() *bubble.Scheduler { return e.bubbles }

// RegisterCallback subscribes cb to engine events.
func (e *Engine) RegisterCallback(cb Callback) { e.callbacks.RegisterCallback(cb) }

// Flush blocks until every event emitted so far was delivered to callbacks.
// It must not be called from a callback.
func (e *Engine) Flush() { e.events.flush() }

// Encounter handles a bump between two participants. It starts a session
// and returns true only if no session is active, both participants are known
// and idle, the pair is out of cooldown and the engagement gate passes.
// Every other outcome is a silent no-op.
func (e *Engine) Encounter(aID, bID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || aID == bID {
		return false
	}
	if e.active != nil {
		e.logger.Debug("encounter ignored, session active", "a", aID, "b", bID, "session", e.active.session.ID())
		return false
	}
	a, okA := e.registry.Lookup(aID)
	b, okB := e.registry.Lookup(bID)
	if !okA || !okB {
		e.logger.Debug("encounter ignored, unknown participant", "a", aID, "b", bID)
		return false
	}
	if e.statuses.Status(aID).Busy() || e.statuses.Status(bID).Busy() {
		e.logger.Debug("encounter ignored, participant busy", "a", aID, "b", bID)
		return false
	}
	if !e.ledger.CanEngage(aID, bID) {
		return false
	}
	if !core.Chance(e.rnd, e.cfg.EngagementChance) {
		e.logger.Debug("participants walked past each other", "a", aID, "b", bID)
		return false
	}

	e.epoch++
	epoch := e.epoch
	s := session.New(core.NewID(), epoch, []core.Participant{a, b})
	if err := s.Transition(session.AwaitingContent, e.now()); err != nil {
		e.logger.Error("failed to start session", "error", err)
		return false
	}

	e.statuses.SetStatus(aID, core.StatusTalking)
	e.statuses.SetStatus(bID, core.StatusTalking)
	e.ledger.RecordEngagement(aID, bID)

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{session: s, log: logging.ForSession(e.logger, s.ID()), cancel: cancel}
	r.silence = time.AfterFunc(e.cfg.AwkwardSilence, func() { e.onSilence(epoch) })
	r.timers = append(r.timers, r.silence, time.AfterFunc(e.cfg.MaxConversationTime, func() { e.onTimeout(epoch) }))
	e.active = r

	e.logSession(s.ID(), session.Idle, session.AwaitingContent, "")
	e.events.enqueue(sessionEvent(core.EventSessionStarted, s))

	go e.play(ctx, r.log, epoch, a, b)
	return true
}

// play generates the dialogue and displays it one turn at a time.
func (e *Engine) play(ctx context.Context, log logging.Logger, epoch uint64, a, b core.Participant) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			if sl, ok := log.(stackLogger); ok {
				sl.ErrorWithStack(err, "conversation panicked")
			} else {
				log.Error("conversation panicked", "error", err)
			}
			e.fail(epoch)
		}
	}()

	res := e.generator.Generate(ctx, a, b)
	turns, ok := e.beginPlayback(epoch, res)
	if !ok {
		return
	}
	for _, turn := range turns {
		wait, ok := e.display(epoch, turn)
		if !ok {
			return
		}
		if !sleep(ctx, wait) {
			return
		}
	}
	e.finish(epoch, session.ReasonCompleted)
}

func (e *Engine) beginPlayback(epoch uint64, res content.Result) ([]core.DialogueTurn, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.current(epoch)
	if r == nil || r.session.Phase() != session.AwaitingContent {
		return nil, false
	}
	if len(res.Turns) == 0 {
		e.silenceLocked(r, session.ReasonFailure)
		return nil, false
	}
	r.silence.Stop()
	if err := r.session.Transition(session.Playing, e.now()); err != nil {
		e.cleanupLocked(session.ReasonFailure)
		return nil, false
	}
	if res.Source == content.SourceFallback {
		r.log.Info("using fallback dialogue", "cause", res.Err)
	}
	e.logSession(r.session.ID(), session.AwaitingContent, session.Playing, "")
	return res.Turns, true
}

// display shows one turn and returns how long to wait before the next.
func (e *Engine) display(epoch uint64, turn core.DialogueTurn) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.current(epoch)
	if r == nil || r.session.Phase() != session.Playing {
		return 0, false
	}
	s := r.session
	speaker, _ := s.Participant(turn.SpeakerID)
	if err := s.AppendTurn(turn, e.now()); err != nil {
		return 0, false
	}
	e.bubbles.Show(turn.SpeakerID, turn.Text, speaker.Color)

	ev := core.NewTurnEvent(core.EventTurn, s.ID(), turn, speaker.Color)
	ev.Participants = s.ParticipantIDs()
	e.events.enqueue(ev)

	return e.bubbles.ReadTime(turn.Text) + e.cfg.TurnGap, true
}

func (e *Engine) finish(epoch uint64, reason session.Reason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current(epoch) == nil {
		return
	}
	e.cleanupLocked(reason)
}

// fail routes an unexpected failure: a session still waiting for content gets
// the silence marker, anything later is released at once.
func (e *Engine) fail(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.current(epoch)
	if r == nil {
		return
	}
	if r.session.Phase() == session.AwaitingContent {
		e.silenceLocked(r, session.ReasonFailure)
		return
	}
	e.cleanupLocked(session.ReasonFailure)
}

func (e *Engine) onSilence(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.current(epoch)
	if r == nil || r.session.Phase() != session.AwaitingContent {
		return
	}
	e.silenceLocked(r, session.ReasonAwkwardSilence)
}

func (e *Engine) onTimeout(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.current(epoch)
	if r == nil {
		return
	}
	r.log.Warn("session reached max conversation time", "phase", r.session.Phase(), "limit", e.cfg.MaxConversationTime)
	e.cleanupLocked(session.ReasonTimeout)
}

// silenceLocked abandons generation, shows the silence marker and schedules
// release after the grace delay.
func (e *Engine) silenceLocked(r *run, reason session.Reason) {
	s := r.session
	r.cancel()
	r.silence.Stop()

	now := e.now()
	from := s.Phase()
	if err := s.End(reason, now); err != nil {
		e.cleanupLocked(reason)
		return
	}
	first := s.Participants()[0]
	turn := core.DialogueTurn{SpeakerID: first.ID, Text: SilenceText}
	_ = s.AppendTurn(turn, now)
	e.bubbles.Show(first.ID, SilenceText, first.Color)

	marker := core.NewTurnEvent(core.EventAwkwardSilence, s.ID(), turn, first.Color)
	marker.Participants = s.ParticipantIDs()
	marker.Reason = string(reason)
	e.events.enqueue(marker, sessionEvent(core.EventSessionEnding, s))

	r.log.Info("awkward silence", "reason", reason)
	e.logSession(s.ID(), from, session.Ending, string(reason))

	epoch := s.Epoch()
	r.timers = append(r.timers, time.AfterFunc(e.cfg.SilenceGrace, func() { e.finish(epoch, reason) }))
}

// cleanupLocked is the single release path. It unconditionally returns the
// engine to Idle: generation and timers are cancelled, statuses reset,
// bubbles cleared, the transcript kept visible for the grace window and
// handed to the notifier.
func (e *Engine) cleanupLocked(reason session.Reason) {
	r := e.active
	if r == nil {
		return
	}
	e.active = nil
	r.cancel()
	for _, t := range r.timers {
		t.Stop()
	}

	s := r.session
	now := e.now()
	from := s.Phase()

	var evs []core.Event
	if from != session.Ending {
		_ = s.End(reason, now)
		evs = append(evs, sessionEvent(core.EventSessionEnding, s))
	}

	ids := s.ParticipantIDs()
	for _, id := range ids {
		e.statuses.SetStatus(id, core.StatusIdle)
	}
	e.bubbles.Clear(ids...)
	if s.Enlarged() {
		e.ledger.RecordEngagement(ids...)
	}
	s.Abort(reason)

	t := s.Transcript(now)
	e.showTranscriptLocked(t)
	if reportable(s) {
		e.notify(t)
	} else {
		r.log.Debug("transcript not posted", "reason", s.Reason())
	}

	evs = append(evs, sessionEvent(core.EventSessionEnded, s))
	e.events.enqueue(evs...)
	e.logSession(s.ID(), from, session.Idle, string(s.Reason()))
}

func (e *Engine) showTranscriptLocked(t core.Transcript) {
	e.transcript = &t
	if e.hideTimer != nil {
		e.hideTimer.Stop()
	}
	sid := t.SessionID
	e.hideTimer = time.AfterFunc(e.cfg.TranscriptGrace, func() { e.hideTranscript(sid) })
}

func (e *Engine) hideTranscript(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transcript == nil || e.transcript.SessionID != sessionID {
		return
	}
	e.transcript = nil
	e.events.enqueue(core.NewEvent(core.EventTranscriptHidden, sessionID))
}

// reportable reports whether a released session was a real conversation:
// it completed, or it was cut short after a generated turn was displayed.
// Silence and failures never happened as far as the audience is concerned.
func reportable(s *session.Session) bool {
	switch s.Reason() {
	case session.ReasonCompleted:
		return true
	case session.ReasonTimeout, session.ReasonForced, session.ReasonStuck:
		return !s.FirstTurnAt().IsZero()
	default:
		return false
	}
}

// poster is implemented by notifiers that deliver in the background under
// their own timeout, such as notify.Relay.
type poster interface {
	Post(t core.Transcript) <-chan struct{}
}

func (e *Engine) notify(t core.Transcript) {
	if e.notifier == nil {
		return
	}
	if p, ok := e.notifier.(poster); ok {
		p.Post(t)
		return
	}
	timeout := e.cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultConfig.NotifyTimeout
	}
	core.BestEffort(e.logger, "notify transcript", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return e.notifier.Notify(ctx, t)
	})
}

// current returns the active run if it belongs to epoch.
func (e *Engine) current(epoch uint64) *run {
	if e.active == nil || e.active.session.Epoch() != epoch {
		return nil
	}
	return e.active
}

// ForceEnd abandons the active session unconditionally. It reports whether
// there was one. No turn is displayed after ForceEnd returns.
func (e *Engine) ForceEnd() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return false
	}
	e.logger.Info("force-ending session", "session", e.active.session.ID(), "phase", e.active.session.Phase())
	e.cleanupLocked(session.ReasonForced)
	return true
}

// HealthCheck force-ends the active session if it has been running longer
// than MaxConversationTime at now. It reports whether it did.
func (e *Engine) HealthCheck(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return false
	}
	s := e.active.session
	age := now.Sub(s.StartedAt())
	if age <= e.cfg.MaxConversationTime {
		return false
	}
	e.logger.Warn("force-ending stuck session", "session", s.ID(), "phase", s.Phase(), "age", age)
	e.cleanupLocked(session.ReasonStuck)
	return true
}

// ResetStuck sets every participant that is talking or chatting outside the
// active session back to idle. It returns the reset ids, sorted.
func (e *Engine) ResetStuck() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var reset []string
	for id, st := range e.statuses.Statuses() {
		if !st.Busy() {
			continue
		}
		if e.active != nil && e.active.session.Has(id) {
			continue
		}
		e.statuses.SetStatus(id, core.StatusIdle)
		reset = append(reset, id)
	}
	slices.Sort(reset)
	if len(reset) > 0 {
		e.logger.Info("reset stuck participants", "participants", reset)
		ev := core.NewEvent(core.EventParticipantsReset, "")
		ev.Participants = reset
		e.events.enqueue(ev)
	}
	return reset
}

// TryJoin lets candidate attach to the active session. It returns false when
// there is no talking session, the candidate is unknown, busy or already in
// it, the session is full, or the candidate walks past.
func (e *Engine) TryJoin(candidateID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return false
	}
	s := e.active.session
	p, ok := e.registry.Lookup(candidateID)
	if !ok {
		return false
	}
	if !s.Has(candidateID) && e.statuses.Status(candidateID).Busy() {
		e.logger.Debug("join rejected, participant busy", "participant", candidateID)
		return false
	}
	if err := e.joins.TryJoin(p, s); err != nil {
		e.logger.Debug("join rejected", "participant", candidateID, "session", s.ID(), "reason", err)
		return false
	}

	e.statuses.SetStatus(candidateID, core.StatusTalking)
	turn := core.DialogueTurn{SpeakerID: candidateID, Text: JoinText}
	_ = s.AppendTurn(turn, e.now())
	e.bubbles.Show(candidateID, JoinText, p.Color)

	ev := core.NewTurnEvent(core.EventParticipantJoined, s.ID(), turn, p.Color)
	ev.Participants = s.ParticipantIDs()
	e.events.enqueue(ev)
	e.logger.Info("participant joined", "participant", candidateID, "session", s.ID(), "size", s.Len())
	return true
}

// Snapshot returns a copy of the active session, or an Idle snapshot.
func (e *Engine) Snapshot() session.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return session.Snapshot{Phase: session.Idle}
	}
	return e.active.session.Snapshot()
}

// Active reports whether a session is outside Idle.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// Transcript returns the last finished transcript while it is inside its
// grace window.
func (e *Engine) Transcript() (core.Transcript, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transcript == nil {
		return core.Transcript{}, false
	}
	return *e.transcript, true
}

// Close force-ends any active session, stops accepting encounters and
// delivers the remaining events.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.cleanupLocked(session.ReasonForced)
	if e.hideTimer != nil {
		e.hideTimer.Stop()
	}
	e.mu.Unlock()
	e.events.close()
}

type sessionLogger interface {
	LogSession(sessionID, from, to, reason string)
}

type stackLogger interface {
	ErrorWithStack(err error, msg string, args ...any)
}

func (e *Engine) logSession(id string, from, to session.Phase, reason string) {
	if sl, ok := e.logger.(sessionLogger); ok {
		sl.LogSession(id, from.String(), to.String(), reason)
		return
	}
	e.logger.Debug("session transition", "session", id, "from", from, "to", to, "reason", reason)
}

func sessionEvent(t core.EventType, s *session.Session) core.Event {
	ev := core.NewEvent(t, s.ID())
	ev.Participants = s.ParticipantIDs()
	ev.Reason = string(s.Reason())
	return ev
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
