package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/roach88/easyevents/internal/event"
	"github.com/roach88/easyevents/internal/ir"
	"github.com/roach88/easyevents/internal/metrics"
)

// Directory resolves opaque identifiers into entities. Any error, and any
// nil result including a typed nil pointer, is treated as "not found".
type Directory interface {
	Resolve(id any) (any, error)
}

// Handler receives raw events from a Bus.
type Handler interface {
	HandleRawEvent(ev ir.RawEvent) error
}

// Bus is the external raw event source.
type Bus interface {
	Subscribe(name string, h Handler) error
	Unsubscribe(name string, h Handler) error
}

// Registry owns the conversion rules and derived events and dispatches raw
// events through them.
//
// INVARIANTS:
//   - rules[name] order is registration order and is never reordered
//   - the bus subscription for a raw event name is made at most once
//   - a derived event, once created, is never replaced
//
// Not safe for concurrent use: Register, On, OnNamed and HandleRawEvent must
// be called from the goroutine that drives the bus.
type Registry struct {
	dir    Directory
	bus    Bus
	rules  map[string][]ir.ConversionRule
	order  []string // raw event names in first-registration order
	events map[string]*event.Event

	subscribed map[string]bool

	entityKey string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithMetrics enables dispatch counters. A nil value disables them.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithEntityKey changes the argument key the fired entity is bound under.
// Default: ir.EntityKey ("entity").
func WithEntityKey(key string) Option {
	return func(r *Registry) {
		if key != "" {
			r.entityKey = key
		}
	}
}

// New creates a Registry and registers rules in order.
//
// The caller must call Teardown when the registry is discarded; otherwise
// the bus keeps delivering to it.
func New(dir Directory, bus Bus, rules []ir.ConversionRule, opts ...Option) (*Registry, error) {
	r := &Registry{
		dir:        dir,
		bus:        bus,
		rules:      make(map[string][]ir.ConversionRule),
		events:     make(map[string]*event.Event),
		subscribed: make(map[string]bool),
		entityKey:  ir.EntityKey,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	for i, rule := range rules {
		if err := r.Register(rule); err != nil {
			// Do not leave partial subscriptions behind.
			_ = r.Teardown()
			return nil, fmt.Errorf("register rule %d (%s): %w", i, rule.RawEvent, err)
		}
	}

	return r, nil
}

// Register subscribes to the rule's raw event if not yet subscribed, then
// appends the rule and creates any derived events its fires target. A
// failed subscription leaves the registry unchanged.
func (r *Registry) Register(rule ir.ConversionRule) error {
	name := rule.RawEvent
	if name == "" {
		return errors.New("conversion rule has no raw event name")
	}

	if !r.subscribed[name] {
		if err := r.bus.Subscribe(name, r); err != nil {
			return fmt.Errorf("subscribe %s: %w", name, err)
		}
		r.subscribed[name] = true

		r.logger.Debug("subscribed to raw event",
			"raw_event", name,
		)
	}

	if _, seen := r.rules[name]; !seen {
		r.order = append(r.order, name)
	}
	r.rules[name] = append(r.rules[name], rule)

	for _, fire := range rule.Fires {
		r.CreateEvent(fire.TargetEvent)
	}

	return nil
}

// Teardown unsubscribes from every raw event this registry subscribed to.
// Calling it again is a no-op. Unsubscribe errors are joined and returned;
// the registry forgets the subscriptions either way.
func (r *Registry) Teardown() error {
	var errs []error
	for _, name := range r.order {
		if !r.subscribed[name] {
			continue
		}
		if err := r.bus.Unsubscribe(name, r); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", name, err))
		}
		delete(r.subscribed, name)
	}

	if len(errs) == 0 && len(r.order) > 0 {
		r.logger.Debug("registry torn down", "raw_events", len(r.order))
	}

	return errors.Join(errs...)
}

// CreateEvent returns the derived event called name, creating it if absent.
func (r *Registry) CreateEvent(name string) *event.Event {
	if ev, ok := r.events[name]; ok {
		return ev
	}
	ev := event.New(name)
	r.events[name] = ev
	return ev
}

// Event returns the derived event called name.
func (r *Registry) Event(name string) (*event.Event, bool) {
	ev, ok := r.events[name]
	return ev, ok
}

// Events returns all derived event names, sorted.
func (r *Registry) Events() []string {
	names := make([]string, 0, len(r.events))
	for n := range r.events {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RawEvents returns the raw event names with rules, in first-registration order.
func (r *Registry) RawEvents() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Rules returns a copy of the rules registered for a raw event.
func (r *Registry) Rules(rawEvent string) []ir.ConversionRule {
	rules := r.rules[rawEvent]
	out := make([]ir.ConversionRule, len(rules))
	copy(out, rules)
	return out
}

// Subscribed reports whether the registry holds a bus subscription for name.
func (r *Registry) Subscribed(name string) bool {
	return r.subscribed[name]
}

// On appends fn as a positional listener to each named derived event,
// creating events that do not exist yet. It returns fn unchanged.
func (r *Registry) On(fn event.Listener, names ...string) event.Listener {
	for _, name := range names {
		r.CreateEvent(name).AppendListener(fn)
	}
	return fn
}

// OnNamed appends fn as a named listener to each derived event, creating
// events that do not exist yet. It returns fn unchanged.
func (r *Registry) OnNamed(fn event.NamedListener, names ...string) event.NamedListener {
	for _, name := range names {
		r.CreateEvent(name).AppendNamedListener(fn)
	}
	return fn
}

// HandleRawEvent runs every conversion rule registered for ev.Name, in
// registration order, and notifies the derived events they fire.
//
// Identifier resolution failures are not errors: the target field is set to
// nil and fires reading it are skipped. A listener error aborts dispatch of
// this raw event and is returned wrapped in a *DispatchError.
func (r *Registry) HandleRawEvent(ev ir.RawEvent) error {
	rules := r.rules[ev.Name]
	if len(rules) == 0 {
		return nil
	}
	r.metrics.RawEvent(ev.Name)

	// Working copy shared by all rules of this event; ev itself stays intact
	// for guards.
	args := ev.Variables.Clone()

	for _, rule := range rules {
		for _, remap := range rule.Remaps {
			args[remap.TargetField] = r.resolve(ev, args, remap)
		}

		for _, fire := range rule.Fires {
			if fire.Guard != nil && !fire.Guard(ev) {
				r.logger.Debug("fire rejected by guard",
					"raw_event", ev.Name,
					"target_event", fire.TargetEvent,
					"condition", fire.Condition,
				)
				r.metrics.Suppressed(fire.TargetEvent, metrics.ReasonGuard)
				continue
			}

			entity := args[fire.EntityField]
			if isNil(entity) {
				r.logger.Debug("fire suppressed: no entity",
					"raw_event", ev.Name,
					"target_event", fire.TargetEvent,
					"entity_field", fire.EntityField,
				)
				r.metrics.Suppressed(fire.TargetEvent, metrics.ReasonNoEntity)
				continue
			}

			target := r.CreateEvent(fire.TargetEvent)
			r.metrics.Fire(fire.TargetEvent)
			if err := target.Notify(args, ir.Args{r.entityKey: entity}); err != nil {
				return &DispatchError{
					RawEvent:    ev.Name,
					TargetEvent: fire.TargetEvent,
					Seq:         ev.Seq,
					Err:         err,
				}
			}
		}
	}

	return nil
}

// resolve removes the remap's identifier field from args and returns the
// resolved entity, or nil when the field is absent or resolution fails.
func (r *Registry) resolve(ev ir.RawEvent, args ir.Args, remap ir.IdentifierRemap) any {
	id, present := args[remap.SourceField]
	delete(args, remap.SourceField)

	if !present {
		r.logger.Debug("identifier field absent",
			"raw_event", ev.Name,
			"field", remap.SourceField,
		)
		r.metrics.ResolutionFailure(ev.Name, remap.TargetField)
		return nil
	}

	entity, err := r.dir.Resolve(id)
	if err != nil || isNil(entity) {
		r.logger.Debug("identifier did not resolve",
			"raw_event", ev.Name,
			"field", remap.SourceField,
			"identifier", id,
			"error", err,
		)
		r.metrics.ResolutionFailure(ev.Name, remap.TargetField)
		return nil
	}

	return entity
}

// isNil reports whether v is nil, including a typed nil pointer, map,
// slice, func or chan stored in the interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
