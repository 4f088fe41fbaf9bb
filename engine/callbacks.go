package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/encounter/core"
)

// CallbackContext carries the information a callback may inspect.
type CallbackContext struct {
	// Event is the event being dispatched.
	Event core.Event

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback observes engine events of one type.
//
// Callbacks run on the engine's dispatcher goroutine in emission order. They
// may call back into the engine. A callback returning an error or panicking
// is logged and does not stop the remaining callbacks.
type Callback interface {
	// Type returns the event type this callback handles. core.EventAny
	// subscribes to every event.
	Type() core.EventType

	// Execute handles the event.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(core.EventTurn, func(ctx context.Context, cc *CallbackContext) error {
//	    fmt.Println(cc.Event.Turn.Text)
//	    return nil
//	})
type FunctionCallback struct {
	eventType core.EventType
	fn        func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	eventType core.EventType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		eventType: eventType,
		fn:        fn,
	}
}

// Type returns the event type this function handles.
func (c *FunctionCallback) Type() core.EventType {
	return c.eventType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes events to registered callbacks. Registration is
// safe concurrently with execution.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[core.EventType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[core.EventType][]Callback),
	}
}

// RegisterCallback adds a callback. Callbacks for the same type run in
// registration order, type-specific ones before EventAny ones.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	t := callback.Type()
	cm.callbacks[t] = append(cm.callbacks[t], callback)
}

// ExecuteCallbacks runs every callback registered for the event's type and
// for EventAny. All callbacks run; their failures are returned per callback.
func (cm *CallbackManager) ExecuteCallbacks(ctx context.Context, callbackCtx *CallbackContext) []error {
	cm.mu.RLock()
	cbs := append([]Callback(nil), cm.callbacks[callbackCtx.Event.Type]...)
	if callbackCtx.Event.Type != core.EventAny {
		cbs = append(cbs, cm.callbacks[core.EventAny]...)
	}
	cm.mu.RUnlock()

	var errs []error
	for _, cb := range cbs {
		if err := safeExecute(ctx, cb, callbackCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func safeExecute(ctx context.Context, cb Callback, callbackCtx *CallbackContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback for %s panicked: %v", cb.Type(), r)
		}
	}()
	return cb.Execute(ctx, callbackCtx)
}

// LoggingCallback formats events and forwards them to a logging function.
//
// Example:
//
//	cb := NewLoggingCallback(core.EventAny, func(msg string) { log.Print(msg) })
type LoggingCallback struct {
	eventType core.EventType
	logger    func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(eventType core.EventType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		eventType: eventType,
		logger:    logger,
	}
}

// Type returns the event type this logger handles.
func (c *LoggingCallback) Type() core.EventType {
	return c.eventType
}

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	ev := callbackCtx.Event
	msg := fmt.Sprintf("[%s] session=%s participants=%v", ev.Type, ev.SessionID, ev.Participants)
	if ev.Turn != nil {
		msg += fmt.Sprintf(" %s: %s", ev.Turn.SpeakerID, ev.Turn.Text)
	}
	if ev.Reason != "" {
		msg += " reason=" + ev.Reason
	}
	c.logger(msg)
	return nil
}
