// Package conditions provides the named guard predicates that rule files
// reference through their "condition" field.
package conditions

import (
	"sort"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/roach88/easyevents/internal/ir"
)

// Name is a condition name as written in rule files (snake_case).
type Name string

const (
	// SelfInflicted matches events whose attacker is absent or the victim.
	SelfInflicted Name = "self_inflicted"
	// NotSelfInflicted is the negation of SelfInflicted.
	NotSelfInflicted Name = "not_self_inflicted"
)

// Registry maps condition names to predicates. It is consulted at parse
// time only.
type Registry map[Name]ir.Predicate

// Defaults returns a fresh registry holding the built-in conditions.
func Defaults() Registry {
	return Registry{
		SelfInflicted:    IsSelfInflicted,
		NotSelfInflicted: IsNotSelfInflicted,
	}
}

// Normalize converts a condition name to its registry form, so that
// "NotSelfInflicted", "notSelfInflicted" and "not-self-inflicted" all map
// to "not_self_inflicted".
func Normalize(name string) Name {
	return Name(strcase.ToSnake(strings.TrimSpace(name)))
}

// Lookup resolves a condition name to its predicate. A registered key
// matches when it equals the name as written or when both normalize to the
// same snake_case form; the first such key in sorted order wins. The
// returned Name is the registry key, or the normalized name on a miss.
func (r Registry) Lookup(name string) (ir.Predicate, Name, bool) {
	if key := Name(strings.TrimSpace(name)); hasKey(r, key) {
		return r.found(key)
	}
	norm := Normalize(name)
	if hasKey(r, norm) {
		return r.found(norm)
	}
	for _, k := range r.Names() {
		if Normalize(k) == norm {
			return r.found(Name(k))
		}
	}
	return nil, norm, false
}

func hasKey(r Registry, key Name) bool {
	_, ok := r[key]
	return ok
}

func (r Registry) found(key Name) (ir.Predicate, Name, bool) {
	p := r[key]
	return p, key, p != nil
}

// Names returns the registered names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}

// IsSelfInflicted reports whether the event's attacker is absent, zero, or
// the same player as userid. A missing attacker counts as self-inflicted
// rather than an error, so world and fall damage deaths match.
func IsSelfInflicted(ev ir.RawEvent) bool {
	attacker := ev.Variables["attacker"]
	if isZero(attacker) {
		return true
	}
	return sameIdentifier(attacker, ev.Variables["userid"])
}

// IsNotSelfInflicted is the negation of IsSelfInflicted.
func IsNotSelfInflicted(ev ir.RawEvent) bool {
	return !IsSelfInflicted(ev)
}

// isZero reports whether v is nil or the zero value of a scalar type.
func isZero(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	}
	if n, ok := ir.AsInt64(v); ok {
		return n == 0
	}
	return false
}

// sameIdentifier compares two identifier values numerically when both are
// numeric, and as strings otherwise.
func sameIdentifier(a, b any) bool {
	an, aok := ir.AsInt64(a)
	bn, bok := ir.AsInt64(b)
	if aok && bok {
		return an == bn
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as == bs
}
