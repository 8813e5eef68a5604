// Package bus provides an in-process raw event bus.
//
// Local implements engine.Bus. Events can be delivered synchronously with
// Publish, or queued with Enqueue and drained by a single Run goroutine:
//
//	b := bus.NewLocal()
//	reg, _ := engine.New(roster, b, rules)
//	defer reg.Teardown()
//
//	go b.Run(ctx)
//	b.Enqueue(ir.RawEvent{Name: "player_death", Variables: vars})
//
// Every delivered event is stamped with a sequence number from the bus
// clock, so subscribers observe a total order.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/easyevents/internal/engine"
	"github.com/roach88/easyevents/internal/ir"
)

// ErrNilHandler is returned when subscribing a nil handler.
var ErrNilHandler = errors.New("nil handler")

// Local is an in-process bus keyed by raw event name.
//
// Subscribe, Unsubscribe, Publish and Enqueue are safe for concurrent use.
// Run must be called from exactly one goroutine.
type Local struct {
	mu       sync.RWMutex
	handlers map[string][]engine.Handler

	queue  *rawQueue
	clock  engine.Sequencer
	logger *slog.Logger
}

// Option configures a Local bus.
type Option func(*Local)

// WithClock sets the sequencer used to stamp events. Default: engine.NewClock().
func WithClock(c engine.Sequencer) Option {
	return func(b *Local) {
		b.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Local) {
		b.logger = l
	}
}

// NewLocal creates an empty bus.
func NewLocal(opts ...Option) *Local {
	b := &Local{
		handlers: make(map[string][]engine.Handler),
		queue:    newRawQueue(),
		clock:    engine.NewClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds h to the subscribers of name. Subscribing the same handler
// twice is ignored.
func (b *Local) Subscribe(name string, h engine.Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.handlers[name] {
		if existing == h {
			return nil
		}
	}
	b.handlers[name] = append(b.handlers[name], h)
	return nil
}

// Unsubscribe removes h from the subscribers of name. Removing a handler
// that is not subscribed is a no-op.
func (b *Local) Unsubscribe(name string, h engine.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	hs := b.handlers[name]
	for i, existing := range hs {
		if existing != h {
			continue
		}
		// Copy so snapshots held by an in-flight delivery stay valid.
		next := make([]engine.Handler, 0, len(hs)-1)
		next = append(next, hs[:i]...)
		next = append(next, hs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, name)
		} else {
			b.handlers[name] = next
		}
		return nil
	}
	return nil
}

// SubscriberCount returns the number of handlers subscribed to name.
func (b *Local) SubscriberCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// Publish stamps ev with the next sequence number and delivers it to each
// subscriber in subscription order. The first handler error aborts delivery
// and is returned.
func (b *Local) Publish(ev ir.RawEvent) error {
	return b.deliver(b.stamp(ev))
}

// Enqueue stamps ev and queues it for the Run loop.
// Returns false if the bus has been stopped.
func (b *Local) Enqueue(ev ir.RawEvent) bool {
	return b.queue.Enqueue(b.stamp(ev))
}

// Run delivers queued events until the context is cancelled or Stop is
// called and the queue has drained.
//
// A handler error is logged with the event's context and delivery moves on
// to the next event; retrying would reorder the stream.
func (b *Local) Run(ctx context.Context) error {
	b.logger.Info("bus starting")

	for {
		ev, ok := b.queue.TryDequeue()
		if ok {
			if err := b.deliver(ev); err != nil {
				b.logger.Error("raw event delivery failed",
					"event", ev.Name,
					"seq", ev.Seq,
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			b.logger.Info("bus stopping: context cancelled")
			b.queue.Close()
			return ctx.Err()

		case <-b.queue.Wait():
			// The signal channel is closed by Stop, so this fires
			// repeatedly until the queue is empty.
			if b.queue.Len() == 0 && b.stopped() {
				b.logger.Info("bus stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns after delivering what is left.
func (b *Local) Stop() {
	b.queue.Close()
}

func (b *Local) stopped() bool {
	b.queue.mu.Lock()
	defer b.queue.mu.Unlock()
	return b.queue.closed
}

func (b *Local) stamp(ev ir.RawEvent) ir.RawEvent {
	if ev.Seq == 0 {
		ev.Seq = b.clock.Next()
	}
	return ev
}

func (b *Local) deliver(ev ir.RawEvent) error {
	b.mu.RLock()
	hs := b.handlers[ev.Name]
	b.mu.RUnlock()

	for _, h := range hs {
		if err := h.HandleRawEvent(ev); err != nil {
			return fmt.Errorf("deliver %s (seq %d): %w", ev.Name, ev.Seq, err)
		}
	}
	return nil
}
