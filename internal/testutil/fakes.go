package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/encounter/content"
	"github.com/hupe1980/encounter/core"
)

// FixedRandom always returns the same values. Value must be in [0, 1).
type FixedRandom struct {
	Value float64
	N     int
}

// Float64 implements core.Random.
func (r FixedRandom) Float64() float64 { return r.Value }

// IntN implements core.Random.
func (r FixedRandom) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return r.N % n
}

// Always returns a Random that passes every Chance gate with p > 0.
func Always() FixedRandom { return FixedRandom{Value: 0} }

// Never returns a Random that fails every Chance gate with p < 1.
func Never() FixedRandom { return FixedRandom{Value: 0.999999} }

// ScriptedBackend is a content.Backend returning canned raw output. When
// Block is set, Generate waits for it to close or for ctx to end.
type ScriptedBackend struct {
	mu       sync.Mutex
	Raw      string
	Err      error
	Block    chan struct{}
	requests []content.Request
}

// NewScriptedBackend returns a backend answering with raw.
func NewScriptedBackend(raw string) *ScriptedBackend { return &ScriptedBackend{Raw: raw} }

// Generate implements content.Backend.
func (b *ScriptedBackend) Generate(ctx context.Context, req content.Request) (string, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	block, raw, err := b.Block, b.Raw, b.Err
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return raw, err
}

// Requests returns the requests seen so far.
func (b *ScriptedBackend) Requests() []content.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]content.Request(nil), b.requests...)
}

// RecordingNotifier captures delivered transcripts.
type RecordingNotifier struct {
	mu          sync.Mutex
	Err         error
	transcripts []core.Transcript
}

// Notify implements core.Notifier.
func (n *RecordingNotifier) Notify(_ context.Context, t core.Transcript) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transcripts = append(n.transcripts, t)
	return n.Err
}

// Transcripts returns the transcripts delivered so far.
func (n *RecordingNotifier) Transcripts() []core.Transcript {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.Transcript(nil), n.transcripts...)
}

// Len returns the number of delivered transcripts.
func (n *RecordingNotifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transcripts)
}

// StatusBoard is a map-backed core.StatusBoard. Unknown ids are idle.
type StatusBoard struct {
	mu       sync.Mutex
	statuses map[string]core.Status
}

// NewStatusBoard creates a board with ids set to idle.
func NewStatusBoard(ids ...string) *StatusBoard {
	b := &StatusBoard{statuses: make(map[string]core.Status)}
	for _, id := range ids {
		b.statuses[id] = core.StatusIdle
	}
	return b
}

// SetStatus implements core.StatusBoard.
func (b *StatusBoard) SetStatus(id string, s core.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[id] = s
}

// Status implements core.StatusBoard.
func (b *StatusBoard) Status(id string) core.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.statuses[id]; ok {
		return s
	}
	return core.StatusIdle
}

// Statuses implements core.StatusBoard.
func (b *StatusBoard) Statuses() map[string]core.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]core.Status, len(b.statuses))
	for id, s := range b.statuses {
		out[id] = s
	}
	return out
}
