// Package cooldown implements the ledger that gates re-engagement of the same
// participant set. Entries never expire; the key space is bounded by the
// number of distinct persona sets, which is small.
package cooldown

import (
	"sync"
	"time"

	"github.com/hupe1980/encounter/core"
)

// DefaultWindow is the minimum time between two conversations of the same
// participant set.
const DefaultWindow = 5 * time.Minute

// Options configure a Ledger.
type Options struct {
	// Window is the cooldown duration. Defaults to DefaultWindow.
	Window time.Duration
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Ledger maps a PairKey to the time of its last engagement.
// It is safe for concurrent use.
type Ledger struct {
	mu     sync.RWMutex
	window time.Duration
	now    func() time.Time
	last   map[core.PairKey]time.Time
}

// New creates an empty Ledger.
func New(optFns ...func(o *Options)) *Ledger {
	opts := Options{
		Window: DefaultWindow,
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Window < 0 {
		opts.Window = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		window: opts.Window,
		now:    opts.Now,
		last:   make(map[core.PairKey]time.Time),
	}
}

// Window returns the configured cooldown window.
func (l *Ledger) Window() time.Duration { return l.window }

// CanEngage reports whether the set ids may converse now: true when no
// engagement was recorded or the last one is strictly older than the window.
func (l *Ledger) CanEngage(ids ...string) bool {
	return l.canEngageAt(core.NewPairKey(ids...), l.now())
}

// canEngageAt is the time-injectable core of CanEngage.
func (l *Ledger) canEngageAt(key core.PairKey, now time.Time) bool {
	l.mu.RLock()
	last, ok := l.last[key]
	l.mu.RUnlock()
	if !ok {
		return true
	}
	return now.Sub(last) > l.window
}

// RecordEngagement stamps the set ids with the current time.
func (l *Ledger) RecordEngagement(ids ...string) {
	l.recordAt(core.NewPairKey(ids...), l.now())
}

func (l *Ledger) recordAt(key core.PairKey, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[key] = now
}

// LastEngagement returns when the set last engaged, if ever.
func (l *Ledger) LastEngagement(ids ...string) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.last[core.NewPairKey(ids...)]
	return t, ok
}

// Remaining returns how long until the set may engage again (zero when it
// already can).
func (l *Ledger) Remaining(ids ...string) time.Duration {
	last, ok := l.LastEngagement(ids...)
	if !ok {
		return 0
	}
	rem := l.window - l.now().Sub(last)
	if rem < 0 {
		return 0
	}
	return rem
}

// Len returns the number of tracked keys.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.last)
}
