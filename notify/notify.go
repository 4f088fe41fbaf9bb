// Package notify relays finished conversations to external sinks such as a
// chat webhook. Delivery is best-effort: the engine never waits for it and
// failures are only logged.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/logging"
)

// FormatTranscript renders t as a chat message:
//
//	🗣️ **A** and **B** crossed paths...
//
//	**A:** text
func FormatTranscript(t core.Transcript) string {
	names := make([]string, len(t.Participants))
	for i, p := range t.Participants {
		names[i] = "**" + p.Name() + "**"
	}

	var b strings.Builder
	b.WriteString("🗣️ ")
	b.WriteString(joinNames(names))
	b.WriteString(" crossed paths...")
	for _, turn := range t.Turns {
		name := turn.SpeakerID
		if p, ok := t.Speaker(turn.SpeakerID); ok {
			name = p.Name()
		}
		fmt.Fprintf(&b, "\n\n**%s:** %s", name, turn.Text)
	}
	return b.String()
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "Somebody"
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

// Options configure a Relay.
type Options struct {
	// Timeout bounds a single asynchronous delivery.
	Timeout time.Duration
	Logger  logging.Logger
}

// Relay fans a transcript out to every sink. It implements core.Notifier.
type Relay struct {
	sinks   []core.Notifier
	timeout time.Duration
	logger  logging.Logger
}

// NewRelay creates a relay over sinks.
func NewRelay(sinks []core.Notifier, optFns ...func(o *Options)) *Relay {
	opts := Options{Timeout: 10 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Relay{sinks: append([]core.Notifier(nil), sinks...), timeout: opts.Timeout, logger: opts.Logger}
}

// Notify delivers t to all sinks synchronously and joins their errors.
// Transcripts without turns are skipped.
func (r *Relay) Notify(ctx context.Context, t core.Transcript) error {
	if len(t.Turns) == 0 {
		r.logger.Debug("skipping empty transcript", "session", t.SessionID)
		return nil
	}
	var errs []error
	for _, s := range r.sinks {
		if err := s.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Post delivers t in the background. The returned channel is closed once
// delivery finished.
func (r *Relay) Post(t core.Transcript) <-chan struct{} {
	return core.BestEffort(r.logger, "notify", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		return r.Notify(ctx, t)
	})
}

// LogSink writes transcripts to a logger.
type LogSink struct {
	Logger logging.Logger
}

// Notify implements core.Notifier.
func (s LogSink) Notify(_ context.Context, t core.Transcript) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info("conversation transcript",
		"session", t.SessionID,
		"participants", core.IDs(t.Participants),
		"turns", len(t.Turns),
		"reason", t.Reason,
		"message", FormatTranscript(t))
	return nil
}

// NotifierFunc adapts a function to core.Notifier.
type NotifierFunc func(ctx context.Context, t core.Transcript) error

// Notify implements core.Notifier.
func (f NotifierFunc) Notify(ctx context.Context, t core.Transcript) error { return f(ctx, t) }
