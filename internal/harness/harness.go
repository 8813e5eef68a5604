package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/easyevents/internal/bus"
	"github.com/roach88/easyevents/internal/compiler"
	"github.com/roach88/easyevents/internal/conditions"
	"github.com/roach88/easyevents/internal/directory"
	"github.com/roach88/easyevents/internal/engine"
	"github.com/roach88/easyevents/internal/ir"
	"github.com/roach88/easyevents/internal/store"
	"github.com/roach88/easyevents/internal/testutil"
)

// Harness is the scenario execution environment.
// It wires the real registry to a local bus, a roster and a firing log,
// with a deterministic clock and a fixed session token.
type Harness struct {
	store    *store.Store
	bus      *bus.Local
	registry *engine.Registry
	recorder *store.Recorder
	clock    *testutil.DeterministicClock
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Load and parse the rule file
// 2. Build registry, bus, roster and recorder
// 3. Publish each raw event (stamping seq from the shared clock)
// 4. Read the fires back from the firing log and merge them into the trace
// 5. Evaluate expect and assertions
//
// A listener error is reported as a scenario failure, not a Run error.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	rules, err := compiler.LoadFile(scenario.Rules, conditions.Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(ctx, st, scenario, rules)
	if err != nil {
		return nil, err
	}
	defer h.registry.Teardown()

	result := NewResult()
	result.Session = h.recorder.Session()

	if err := h.publish(scenario.Events, result); err != nil {
		return nil, fmt.Errorf("failed to publish events: %w", err)
	}

	if err := h.collectFires(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to read fires: %w", err)
	}
	result.sortTrace()

	for _, msg := range EvaluateAssertions(result, scenario.Expect, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(ctx context.Context, st *store.Store, scenario *Scenario, rules []ir.ConversionRule) (*Harness, error) {
	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	session := testutil.NewFixedSessionGenerator(scenario.Session).Generate()

	rulesHash, err := ir.RulesHash(rules)
	if err != nil {
		return nil, err
	}
	if err := st.BeginSession(ctx, ir.Session{ID: session, RulesHash: rulesHash, StartedSeq: clock.Current()}); err != nil {
		return nil, err
	}

	b := bus.NewLocal(bus.WithClock(clock), bus.WithLogger(logger))

	reg, err := engine.New(directory.NewRoster(scenario.Roster...), b, rules,
		engine.WithLogger(logger),
		engine.WithEntityKey(scenario.EntityKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	rec := store.NewRecorder(ctx, st, session, clock)
	reg.OnNamed(rec.Record, reg.Events()...)

	return &Harness{
		store:    st,
		bus:      b,
		registry: reg,
		recorder: rec,
		clock:    clock,
		logger:   logger,
	}, nil
}

// publish stamps and delivers each raw event, tracing it before delivery
// so the raw event precedes its fires.
func (h *Harness) publish(events []RawEventStep, result *Result) error {
	for i, step := range events {
		ev := ir.RawEvent{
			Name:      step.Name,
			Variables: ir.Args(step.Variables).Clone(),
			Seq:       h.clock.Next(),
		}

		args, err := ir.MarshalArgs(ev.Variables)
		if err != nil {
			return fmt.Errorf("events[%d] %s: %w", i, step.Name, err)
		}
		result.AddRawTrace(ev.Name, args, ev.Seq)

		if err := h.bus.Publish(ev); err != nil {
			result.AddError(fmt.Sprintf("events[%d] %s: %v", i, step.Name, err))
		}

		h.logger.Info("raw event published",
			"step", i,
			"event", ev.Name,
			"seq", ev.Seq,
		)
	}
	return nil
}

func (h *Harness) collectFires(ctx context.Context, result *Result) error {
	firings, err := h.store.ReadFirings(ctx, h.recorder.Session())
	if err != nil {
		return err
	}
	for _, f := range firings {
		result.AddFireTrace(f.Event, json.RawMessage(f.Args), f.Seq)
	}
	return nil
}
