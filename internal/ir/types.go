package ir

// EntityKey is the argument key under which a fired entity is bound when a
// derived event is notified.
const EntityKey = "entity"

// Predicate is a pure function of a raw event deciding whether a fire rule
// executes. It always sees the original raw event, never the working
// argument mapping.
type Predicate func(ev RawEvent) bool

// RawEvent is an event delivered by the external event source.
type RawEvent struct {
	Name      string `json:"name"`
	Variables Args   `json:"variables"`
	Seq       int64  `json:"seq,omitempty"` // Stamped by the delivering bus
}

// IdentifierRemap replaces an opaque identifier field with a resolved entity.
type IdentifierRemap struct {
	SourceField string `json:"source_field"` // field holding the identifier, e.g. "attacker"
	TargetField string `json:"target_field"` // field receiving the entity (or nil), e.g. "killer"
}

// FireRule forwards the accumulated arguments to a derived event.
type FireRule struct {
	TargetEvent string    `json:"target_event"`
	EntityField string    `json:"entity_field"`        // populated by a remap of the same rule
	Condition   string    `json:"condition,omitempty"` // normalized predicate name, informational
	Guard       Predicate `json:"-"`                   // nil = always fire
}

// ConversionRule converts one raw event into zero or more derived events.
type ConversionRule struct {
	RawEvent string            `json:"raw_event"`
	Remaps   []IdentifierRemap `json:"remaps"`
	Fires    []FireRule        `json:"fires"`
}

// TargetEvents returns the derived event names referenced by the rule's
// fires, in fire order. Duplicates are kept.
func (r ConversionRule) TargetEvents() []string {
	names := make([]string, 0, len(r.Fires))
	for _, f := range r.Fires {
		names = append(names, f.TargetEvent)
	}
	return names
}

// Produces reports whether one of the rule's remaps writes field.
func (r ConversionRule) Produces(field string) bool {
	for _, m := range r.Remaps {
		if m.TargetField == field {
			return true
		}
	}
	return false
}
