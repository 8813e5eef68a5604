package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/easyevents/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] seq=%d %s %s %s\n", i+1, ev.Seq, ev.Type, ev.Event, ev.Args)
	}

	return buf.String()
}

// assertExpect checks that the fires are exactly the expected ones, in order.
func assertExpect(trace []TraceEvent, expect []Expectation) error {
	got := fires(trace)

	for i, want := range expect {
		if i >= len(got) {
			return &AssertionError{
				Type:     "expect",
				Expected: fmt.Sprintf("fire[%d] %s %s", i, want.Event, formatArgs(want.Args)),
				Actual:   fmt.Sprintf("only %d fires", len(got)),
				Trace:    trace,
			}
		}
		if got[i].Event != want.Event || !matchArgs(got[i].Args, want.Args) {
			return &AssertionError{
				Type:     "expect",
				Expected: fmt.Sprintf("fire[%d] %s %s", i, want.Event, formatArgs(want.Args)),
				Actual:   fmt.Sprintf("fire[%d] %s %s", i, got[i].Event, got[i].Args),
				Trace:    trace,
			}
		}
	}

	if len(got) > len(expect) {
		extra := got[len(expect)]
		return &AssertionError{
			Type:     "expect",
			Expected: fmt.Sprintf("%d fires", len(expect)),
			Actual:   fmt.Sprintf("%d fires, first unexpected: %s %s", len(got), extra.Event, extra.Args),
			Trace:    trace,
		}
	}

	return nil
}

// assertTraceContains checks that some fire matches the event and args
// (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, ev := range fires(trace) {
		if ev.Event == assertion.Event && matchArgs(ev.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s with args %s", assertion.Event, formatArgs(assertion.Args)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events first fire in the specified order.
// Events don't need to be consecutive (intervening fires are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	for i, ev := range fires(trace) {
		for _, want := range assertion.Events {
			if ev.Event == want && positions[want] == 0 {
				positions[want] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, name := range assertion.Events {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events fired: %v", assertion.Events),
				Actual:   fmt.Sprintf("missing event: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev := assertion.Events[i-1]
		curr := assertion.Events[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the event fired exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range fires(trace) {
		if ev.Event == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// matchArgs checks that the canonical args contain every expected key with
// an equal canonical value. Extra keys in actual are ignored.
func matchArgs(actual json.RawMessage, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	decoded, err := decodeArgs(actual)
	if err != nil {
		return false
	}
	obj, ok := decoded.(ir.Object)
	if !ok {
		return false
	}

	for key, want := range expected {
		got, exists := obj[key]
		if !exists {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}

	return true
}

// valuesEqual compares a canonical value with a scenario value by their
// canonical JSON, so 5, 5.0 and json.Number("5") are equal.
func valuesEqual(actual ir.Value, expected any) bool {
	want, err := ir.ToValue(expected)
	if err != nil {
		return false
	}
	a, err := ir.MarshalCanonical(actual)
	if err != nil {
		return false
	}
	b, err := ir.MarshalCanonical(want)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// decodeArgs parses canonical args JSON back into a Value.
func decodeArgs(raw json.RawMessage) (ir.Value, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	return ir.ToValue(v)
}

// formatArgs renders expected args with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// EvaluateAssertions checks the expect list and every assertion against
// the result. Returns a slice of error messages for failures.
func EvaluateAssertions(result *Result, expect []Expectation, assertions []Assertion) []string {
	var errors []string

	if expect != nil {
		if err := assertExpect(result.Trace, expect); err != nil {
			errors = append(errors, err.Error())
		}
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
