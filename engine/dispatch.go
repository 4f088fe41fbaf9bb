package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/logging"
)

// dispatcher delivers events to callbacks on a single goroutine, in the order
// they were enqueued. Enqueue never blocks, so the engine can emit while
// holding its lock and callbacks can call back into the engine.
type dispatcher struct {
	callbacks *CallbackManager
	logger    logging.Logger

	mu     sync.Mutex
	queue  []queued
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// queued is either an event or a flush marker.
type queued struct {
	event core.Event
	ack   chan struct{}
}

func newDispatcher(cm *CallbackManager, logger logging.Logger) *dispatcher {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	d := &dispatcher{
		callbacks: cm,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *dispatcher) enqueue(events ...core.Event) {
	if len(events) == 0 {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	for _, ev := range events {
		d.queue = append(d.queue, queued{event: ev})
	}
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, q := range batch {
			if q.ack != nil {
				close(q.ack)
				continue
			}
			d.deliver(q.event)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.wake
	}
}

func (d *dispatcher) deliver(ev core.Event) {
	cc := &CallbackContext{Event: ev, Metadata: map[string]any{}}
	for _, err := range d.callbacks.ExecuteCallbacks(context.Background(), cc) {
		d.logger.Warn("event callback failed", "event", ev.Type, "session", ev.SessionID, "error", err)
	}
}

// flush waits until every event enqueued so far has been delivered.
func (d *dispatcher) flush() {
	ack := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.queue = append(d.queue, queued{ack: ack})
	d.mu.Unlock()
	d.signal()
	<-ack
}

// close delivers what is queued and stops the goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.signal()
	<-d.done
}
