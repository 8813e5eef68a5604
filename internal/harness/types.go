package harness

import (
	"encoding/json"
	"sort"
)

// Trace event types.
const (
	TraceRaw  = "raw"  // raw event published on the bus
	TraceFire = "fire" // derived event notification read back from the firing log
)

// TraceEvent is one entry of a scenario trace. Args holds canonical JSON.
type TraceEvent struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Args  json.RawMessage `json:"args"`
	Seq   int64           `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Session is the recording session the fires were written under.
	Session string `json:"session"`

	// Trace contains raw events and fires ordered by seq.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddRawTrace adds a published raw event to the trace.
func (r *Result) AddRawTrace(name string, args json.RawMessage, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:  TraceRaw,
		Event: name,
		Args:  args,
		Seq:   seq,
	})
}

// AddFireTrace adds a recorded fire to the trace.
func (r *Result) AddFireTrace(name string, args json.RawMessage, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:  TraceFire,
		Event: name,
		Args:  args,
		Seq:   seq,
	})
}

// Fires returns the fire entries of the trace in order.
func (r *Result) Fires() []TraceEvent {
	return fires(r.Trace)
}

func (r *Result) sortTrace() {
	sort.SliceStable(r.Trace, func(i, j int) bool {
		return r.Trace[i].Seq < r.Trace[j].Seq
	})
}

func fires(trace []TraceEvent) []TraceEvent {
	out := make([]TraceEvent, 0, len(trace))
	for _, ev := range trace {
		if ev.Type == TraceFire {
			out = append(out, ev)
		}
	}
	return out
}
