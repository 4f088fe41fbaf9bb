package core

import (
	"fmt"

	"github.com/hupe1980/encounter/logging"
)

// loggerAdapter wraps a logging.Logger and guarantees a non-nil logger by
// substituting a NoOpLogger when constructed with nil.
type loggerAdapter struct {
	logger logging.Logger
}

// newLoggerAdapter constructs a loggerAdapter with a non-nil logger.
func newLoggerAdapter(l logging.Logger) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &loggerAdapter{logger: l}
}

// run executes fn, converting a panic into an error.
func (l *loggerAdapter) run(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return fn()
}

// BestEffort runs fn on its own goroutine. Failures and panics are logged at
// WARN and otherwise swallowed; the caller never waits. The returned channel
// is closed once fn has finished, which tests use to synchronize.
func BestEffort(l logging.Logger, op string, fn func() error) <-chan struct{} {
	la := newLoggerAdapter(l)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := la.run(op, fn); err != nil {
			la.logger.Warn("best-effort operation failed", "operation", op, "error", err)
		}
	}()
	return done
}
