package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/easyevents/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Session      string       `json:"session"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonical converts the snapshot to an ir.Object for canonical JSON.
func (s *TraceSnapshot) toCanonical() (ir.Object, error) {
	trace := make(ir.Array, len(s.Trace))
	for i, ev := range s.Trace {
		args, err := decodeArgs(ev.Args)
		if err != nil {
			return nil, fmt.Errorf("trace[%d]: %w", i, err)
		}
		trace[i] = ir.Object{
			"type":  ir.String(ev.Type),
			"event": ir.String(ev.Event),
			"args":  args,
			"seq":   ir.Int(ev.Seq),
		}
	}

	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"session":       ir.String(s.Session),
		"trace":         trace,
	}, nil
}

// MarshalSnapshot returns the canonical JSON golden form of a result.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Session:      result.Session,
		Trace:        result.Trace,
	}
	obj, err := snapshot.toCanonical()
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(obj)
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
