package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface representing the recordable value types.
// Only Null, String, Int, Bool, Array, and Object implement this.
//
// Floats are not representable: integral floats become Int and all other
// floats become their shortest decimal String, so recorded arguments are
// byte-stable across platforms.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents a JSON null, e.g. an identifier that did not resolve.
type Null struct{}

func (Null) irValue() {}

// String represents a string value.
type String string

func (String) irValue() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) irValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array represents an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// ToValue converts an argument value to its recordable form.
//
// Entities and other values implementing fmt.Stringer are recorded by their
// string form. Unsupported types return an error naming the type.
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("integer overflows int64: %d", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer overflows int64: %d", val)
		}
		return Int(val), nil
	case float32:
		return floatValue(float64(val)), nil
	case float64:
		return floatValue(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return Int(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return floatValue(f), nil
	case Args:
		return toObject(val)
	case map[string]any:
		return toObject(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case []string:
		arr := make(Array, len(val))
		for i, s := range val {
			arr[i] = String(s)
		}
		return arr, nil
	case fmt.Stringer:
		return String(val.String()), nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func toObject(m map[string]any) (Object, error) {
	obj := make(Object, len(m))
	for k, elem := range m {
		ev, err := ToValue(elem)
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		obj[k] = ev
	}
	return obj, nil
}

// floatValue maps a float onto Int when it is integral and in range,
// otherwise onto its shortest decimal representation.
func floatValue(f float64) Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return Int(int64(f))
	}
	return String(strconv.FormatFloat(f, 'g', -1, 64))
}
