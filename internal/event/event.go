// Package event implements derived events: named channels with ordered
// listener lists.
//
// A derived event keeps two listener categories. Positional listeners
// receive only the merged arguments; named listeners additionally receive
// the event's name first, so one function can serve several events:
//
//	kill := event.New("kill")
//	kill.AppendNamedListener(func(name string, args ir.Args) error {
//	    fmt.Println(name, args["entity"])
//	    return nil
//	})
//	_ = kill.Notify(ir.Args{"weapon": "awp"}, ir.Args{"entity": player})
//
// Listener failures are not isolated. The first error aborts the notify
// call and is returned to the caller.
package event

import "github.com/roach88/easyevents/internal/ir"

// Listener receives the merged arguments of a notification.
type Listener func(args ir.Args) error

// NamedListener receives the event name followed by the merged arguments.
type NamedListener func(name string, args ir.Args) error

// Event is a derived event and its registered listeners.
//
// Not safe for concurrent use; listeners are appended and notified from the
// goroutine that drives dispatch.
type Event struct {
	name           string
	listeners      []Listener
	namedListeners []NamedListener
}

// New creates an event with no listeners.
func New(name string) *Event {
	return &Event{name: name}
}

// Name returns the event name.
func (e *Event) Name() string {
	return e.name
}

// AppendListener adds a positional listener. Duplicates are allowed and are
// invoked once per registration.
func (e *Event) AppendListener(fn Listener) {
	e.listeners = append(e.listeners, fn)
}

// AppendNamedListener adds a named listener. Duplicates are allowed.
func (e *Event) AppendNamedListener(fn NamedListener) {
	e.namedListeners = append(e.namedListeners, fn)
}

// ListenerCount returns the number of positional and named listeners.
func (e *Event) ListenerCount() (positional, named int) {
	return len(e.listeners), len(e.namedListeners)
}

// Notify merges overrides into args (overrides win) and invokes every
// positional listener, then every named listener, in registration order.
//
// The merged mapping is a fresh map shared by all listeners of this call;
// args and overrides are never modified. The first listener error stops the
// call and is returned as is.
func (e *Event) Notify(args ir.Args, overrides ir.Args) error {
	merged := args.Merge(overrides)

	for _, fn := range e.listeners {
		if err := fn(merged); err != nil {
			return err
		}
	}
	for _, fn := range e.namedListeners {
		if err := fn(e.name, merged); err != nil {
			return err
		}
	}
	return nil
}
