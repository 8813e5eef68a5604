package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/easyevents/internal/ir"
)

func fire(event, args string, seq int64) TraceEvent {
	return TraceEvent{Type: TraceFire, Event: event, Args: json.RawMessage(args), Seq: seq}
}

func raw(event, args string, seq int64) TraceEvent {
	return TraceEvent{Type: TraceRaw, Event: event, Args: json.RawMessage(args), Seq: seq}
}

func deathTrace() []TraceEvent {
	return []TraceEvent{
		raw("player_death", `{"attacker":5,"userid":9,"weapon":"awp"}`, 1),
		fire("kill", `{"entity":"Mahi","killer":"Mahi","victim":"Zed","weapon":"awp"}`, 2),
		fire("death", `{"entity":"Zed","killer":"Mahi","victim":"Zed","weapon":"awp"}`, 3),
		raw("player_spawn", `{"userid":9}`, 4),
		fire("spawn", `{"entity":"Zed","player":"Zed"}`, 5),
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(deathTrace(), Assertion{
		Type:  AssertTraceContains,
		Event: "kill",
		Args:  map[string]any{"killer": "Mahi", "victim": "Zed"},
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(deathTrace(), Assertion{Type: AssertTraceContains, Event: "suicide"})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "not found in trace", ae.Actual)
}

func TestAssertTraceContains_WrongArgs(t *testing.T) {
	err := assertTraceContains(deathTrace(), Assertion{
		Type:  AssertTraceContains,
		Event: "kill",
		Args:  map[string]any{"killer": "Zed"},
	})
	assert.Error(t, err)
}

func TestAssertTraceContains_IgnoresRawEvents(t *testing.T) {
	err := assertTraceContains(deathTrace(), Assertion{Type: AssertTraceContains, Event: "player_death"})
	assert.Error(t, err, "raw events are not fires")
}

func TestAssertTraceOrder_Correct(t *testing.T) {
	err := assertTraceOrder(deathTrace(), Assertion{Type: AssertTraceOrder, Events: []string{"kill", "death", "spawn"}})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_InterveningEventsAllowed(t *testing.T) {
	err := assertTraceOrder(deathTrace(), Assertion{Type: AssertTraceOrder, Events: []string{"kill", "spawn"}})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	err := assertTraceOrder(deathTrace(), Assertion{Type: AssertTraceOrder, Events: []string{"death", "kill"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "death (pos 2) should be before kill (pos 1)")
}

func TestAssertTraceOrder_MissingEvent(t *testing.T) {
	err := assertTraceOrder(deathTrace(), Assertion{Type: AssertTraceOrder, Events: []string{"kill", "suicide"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing event: suicide")
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		event   string
		count   int
		wantErr bool
	}{
		{"kill", 1, false},
		{"kill", 2, true},
		{"suicide", 0, false},
		{"suicide", 1, true},
		{"player_death", 0, false},
	}

	for _, tt := range tests {
		err := assertTraceCount(deathTrace(), Assertion{Type: AssertTraceCount, Event: tt.event, Count: tt.count})
		if tt.wantErr {
			assert.Error(t, err, "%s x%d", tt.event, tt.count)
		} else {
			assert.NoError(t, err, "%s x%d", tt.event, tt.count)
		}
	}
}

func TestAssertExpect(t *testing.T) {
	tests := []struct {
		name    string
		expect  []Expectation
		wantErr string
	}{
		{
			name: "exact",
			expect: []Expectation{
				{Event: "kill", Args: map[string]any{"entity": "Mahi"}},
				{Event: "death"},
				{Event: "spawn", Args: map[string]any{"player": "Zed"}},
			},
		},
		{
			name:    "too few expected",
			expect:  []Expectation{{Event: "kill"}, {Event: "death"}},
			wantErr: "first unexpected: spawn",
		},
		{
			name:    "too many expected",
			expect:  []Expectation{{Event: "kill"}, {Event: "death"}, {Event: "spawn"}, {Event: "hurt"}},
			wantErr: "only 3 fires",
		},
		{
			name:    "wrong order",
			expect:  []Expectation{{Event: "death"}, {Event: "kill"}, {Event: "spawn"}},
			wantErr: "fire[0] kill",
		},
		{
			name:    "empty expects silence",
			expect:  []Expectation{},
			wantErr: "0 fires",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertExpect(deathTrace(), tt.expect)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMatchArgs_SubsetSemantics(t *testing.T) {
	actual := json.RawMessage(`{"dmg":30,"entity":"Zed","killer":null,"tags":["a","b"]}`)

	tests := []struct {
		name     string
		expected map[string]any
		want     bool
	}{
		{"nil expected", nil, true},
		{"empty expected", map[string]any{}, true},
		{"single key", map[string]any{"entity": "Zed"}, true},
		{"int vs number", map[string]any{"dmg": 30}, true},
		{"integral float", map[string]any{"dmg": 30.0}, true},
		{"explicit null", map[string]any{"killer": nil}, true},
		{"array", map[string]any{"tags": []any{"a", "b"}}, true},
		{"missing key", map[string]any{"victim": "Zed"}, false},
		{"null vs missing", map[string]any{"victim": nil}, false},
		{"value mismatch", map[string]any{"dmg": 31}, false},
		{"type mismatch", map[string]any{"dmg": "30"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchArgs(actual, tt.expected))
		})
	}
}

func TestMatchArgs_MalformedActual(t *testing.T) {
	assert.False(t, matchArgs(json.RawMessage(`{`), map[string]any{"a": 1}))
	assert.False(t, matchArgs(json.RawMessage(`[1]`), map[string]any{"a": 1}))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(ir.Int(5), 5))
	assert.True(t, valuesEqual(ir.String("Mahi"), "Mahi"))
	assert.True(t, valuesEqual(ir.Null{}, nil))
	assert.False(t, valuesEqual(ir.Int(5), "5"))
	assert.False(t, valuesEqual(ir.Bool(true), 1))
	assert.False(t, valuesEqual(ir.Int(5), struct{}{}), "unsupported expected type never matches")
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := &Result{Trace: deathTrace()}
	errs := EvaluateAssertions(result, nil, []Assertion{
		{Type: AssertTraceContains, Event: "spawn"},
		{Type: AssertTraceOrder, Events: []string{"kill", "death"}},
		{Type: AssertTraceCount, Event: "death", Count: 1},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := &Result{Trace: deathTrace()}
	errs := EvaluateAssertions(result, []Expectation{{Event: "kill"}}, []Assertion{
		{Type: AssertTraceContains, Event: "spawn"},
		{Type: AssertTraceCount, Event: "death", Count: 3},
	})
	assert.Len(t, errs, 2)
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	result := &Result{Trace: deathTrace()}
	errs := EvaluateAssertions(result, nil, []Assertion{{Type: "final_state"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 occurrences of kill",
		Actual:   "0 occurrences",
		Trace:    []TraceEvent{raw("player_death", `{"userid":9}`, 1)},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 1 occurrences of kill")
	assert.Contains(t, msg, "Actual: 0 occurrences")
	assert.Contains(t, msg, `[1] seq=1 raw player_death {"userid":9}`)
}

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, "{}", formatArgs(nil))
	assert.Equal(t, "{a=1 b=x}", formatArgs(map[string]any{"b": "x", "a": 1}))
}
