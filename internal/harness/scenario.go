package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/easyevents/internal/directory"
)

// Scenario defines a conformance test scenario: a rule file, a roster, a
// sequence of raw events, and the fires they must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the rule file to load. Relative paths are resolved against
	// the scenario file's directory by LoadScenario.
	Rules string `yaml:"rules"`

	// Roster lists the players identifiers resolve to.
	Roster []directory.Player `yaml:"roster,omitempty"`

	// EntityKey overrides the argument key fired entities are bound under.
	EntityKey string `yaml:"entity_key,omitempty"`

	// Session is an optional fixed recording session token.
	// If empty, defaults to "test-session-default".
	Session string `yaml:"session,omitempty"`

	// Events are published on the bus in order.
	Events []RawEventStep `yaml:"events"`

	// Expect lists every fire the events must produce, in order.
	// An explicit empty list asserts that nothing fires.
	Expect []Expectation `yaml:"expect,omitempty"`

	// Assertions validate the trace.
	// Supported types: trace_contains, trace_order, trace_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RawEventStep is one raw event to publish.
type RawEventStep struct {
	Name      string         `yaml:"name"`
	Variables map[string]any `yaml:"variables"`
}

// Expectation matches one fire. Args is a subset match on canonical values.
type Expectation struct {
	Event string         `yaml:"event"`
	Args  map[string]any `yaml:"args,omitempty"`
}

// Assertion validates the fires of a trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check event fired with args
	// - "trace_order": Check events fired in order
	// - "trace_count": Check event fired exactly N times
	Type string `yaml:"type"`

	// Event is the derived event name (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Args are the expected arguments (trace_contains). Subset match.
	Args map[string]any `yaml:"args,omitempty"`

	// Count is the expected number of fires (trace_count). Zero asserts
	// the event never fired.
	Count int `yaml:"count,omitempty"`

	// Events is the expected fire order (trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the rule path relative to the scenario BEFORE validation
	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file
// name. The first invalid scenario stops loading.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Rules == "" {
		return fmt.Errorf("rules is required")
	}

	if _, err := os.Stat(s.Rules); os.IsNotExist(err) {
		return fmt.Errorf("rules file not found: %s", s.Rules)
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}

	seen := make(map[int64]bool, len(s.Roster))
	for i, p := range s.Roster {
		if p.Name == "" {
			return fmt.Errorf("roster[%d]: name is required", i)
		}
		if seen[p.UserID] {
			return fmt.Errorf("roster[%d]: duplicate userid %d", i, p.UserID)
		}
		seen[p.UserID] = true
	}

	for i, ev := range s.Events {
		if ev.Name == "" {
			return fmt.Errorf("events[%d]: name is required", i)
		}
	}

	for i, e := range s.Expect {
		if e.Event == "" {
			return fmt.Errorf("expect[%d]: event is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
