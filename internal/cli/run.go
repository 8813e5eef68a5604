package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/easyevents/internal/bus"
	"github.com/roach88/easyevents/internal/directory"
	"github.com/roach88/easyevents/internal/engine"
	"github.com/roach88/easyevents/internal/ir"
	"github.com/roach88/easyevents/internal/metrics"
	"github.com/roach88/easyevents/internal/store"
)

// maxEventLine bounds a single JSONL raw event.
const maxEventLine = 1 << 20

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Roster      string
	Database    string
	Events      string // JSONL file, "-" or empty for stdin
	MetricsAddr string
	EntityKey   string
	Session     string

	// SessionGenerator allows overriding the session token generator (for testing).
	// If nil, defaults to UUIDv7Generator. Ignored when Session is set.
	SessionGenerator store.SessionGenerator
}

// runStats counts what a run consumed and produced.
type runStats struct {
	read    atomic.Int64
	skipped atomic.Int64
	fired   atomic.Int64
}

// RunSummary totals a finished run.
type RunSummary struct {
	RawEvents int64
	Skipped   int64
	Fired     int64
	Session   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <rules>",
		Short: "Dispatch a stream of raw events through conversion rules",
		Long: `Read raw events as JSON lines and dispatch them through conversion rules.

Each input line is one raw event:
  {"name": "player_death", "variables": {"userid": 9, "attacker": 5}}

Derived events are printed as they fire. With --db, every firing is also
appended to a SQLite firing log under a new session.

Example:
  easyevents run ./rules.json --roster ./roster.yaml < events.jsonl
  easyevents run ./rules --roster ./roster.yaml --db ./firings.db --events events.jsonl
  easyevents run ./rules.json --roster ./roster.yaml --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Roster, "roster", "", "path to YAML player roster (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite firing log")
	cmd.Flags().StringVar(&opts.Events, "events", "-", "JSONL raw event file (- for stdin)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.EntityKey, "entity-key", ir.EntityKey, "argument key the fired entity is bound under")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token for the firing log (default: generated)")
	_ = cmd.MarkFlagRequired("roster")

	return cmd
}

func runDispatch(opts *RunOptions, rulesPath string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	logger.Debug("loading rules", "path", rulesPath)
	loadResult, loadErrors := LoadRules(rulesPath, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, msg := firstLoadError(loadErrors)
		return formatter.Fail(ExitCommandError, code, msg)
	}
	logger.Info("rules loaded", "rules", len(loadResult.Rules), "files", len(loadResult.Files))

	roster, err := directory.LoadRoster(opts.Roster)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRoster, err.Error())
	}
	logger.Info("roster loaded", "players", roster.Len())

	promReg := prometheus.NewRegistry()
	m, err := metrics.New(promReg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	if opts.MetricsAddr != "" {
		srv := metrics.NewServer(opts.MetricsAddr, promReg)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("metrics server failed", "addr", srv.Addr(), "error", err)
			}
		}()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := srv.Stop(stopCtx); err != nil {
				logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
		logger.Info("metrics server listening", "addr", opts.MetricsAddr)
	}

	clock := engine.NewClock()
	var recorder *store.Recorder
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		recorder, clock, err = beginRecording(ctx, st, opts, loadResult.RulesHash)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		logger.Info("recording firings", "db", opts.Database, "session", recorder.Session(), "seq", clock.Current())
	}

	b := bus.NewLocal(bus.WithClock(clock), bus.WithLogger(logger))

	reg, err := engine.New(roster, b, loadResult.Rules,
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithEntityKey(opts.EntityKey),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build registry", err)
	}
	defer func() {
		if err := reg.Teardown(); err != nil {
			logger.Error("teardown failed", "error", err)
		}
	}()

	stats := &runStats{}
	if recorder != nil {
		reg.OnNamed(recorder.Record, reg.Events()...)
	}
	reg.OnNamed(newFirePrinter(formatter, stats), reg.Events()...)

	input, closeInput, err := openEvents(opts.Events, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error())
	}
	defer closeInput()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	go readRawEvents(input, b, stats, logger)

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "bus error", err)
	}

	summary := RunSummary{
		RawEvents: stats.read.Load(),
		Skipped:   stats.skipped.Load(),
		Fired:     stats.fired.Load(),
	}
	if recorder != nil {
		summary.Session = recorder.Session()
	}
	logger.Info("run complete",
		"raw_events", summary.RawEvents,
		"skipped", summary.Skipped,
		"fired", summary.Fired,
	)

	if !formatter.JSON() {
		fmt.Fprintf(formatter.Writer, "\n✓ %d raw event(s), %d derived event(s) fired", summary.RawEvents, summary.Fired)
		if summary.Skipped > 0 {
			fmt.Fprintf(formatter.Writer, ", %d malformed line(s) skipped", summary.Skipped)
		}
		fmt.Fprintln(formatter.Writer)
		if summary.Session != "" {
			fmt.Fprintf(formatter.Writer, "Session: %s\n", summary.Session)
		}
	}

	return nil
}

// beginRecording starts a firing log session. The clock resumes after the
// highest recorded seq so sequence numbers stay unique across sessions.
func beginRecording(ctx context.Context, st *store.Store, opts *RunOptions, rulesHash string) (*store.Recorder, *engine.Clock, error) {
	maxSeq, err := st.MaxSeq(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read firing log: %w", err)
	}
	clock := engine.NewClockAt(maxSeq)

	session := opts.Session
	if session == "" {
		gen := opts.SessionGenerator
		if gen == nil {
			gen = store.UUIDv7Generator{}
		}
		session = gen.Generate()
	}

	if err := st.BeginSession(ctx, ir.Session{ID: session, RulesHash: rulesHash, StartedSeq: maxSeq}); err != nil {
		return nil, nil, err
	}

	return store.NewRecorder(ctx, st, session, clock), clock, nil
}

// newFirePrinter returns a listener writing each derived event as one line:
// "name {args}" in text mode, {"event":...,"args":...} in JSON mode.
func newFirePrinter(formatter *OutputFormatter, stats *runStats) func(string, ir.Args) error {
	return func(name string, args ir.Args) error {
		obj, err := ir.ToValue(args)
		if err != nil {
			return fmt.Errorf("print %s: %w", name, err)
		}
		stats.fired.Add(1)

		if formatter.JSON() {
			obj = ir.Object{"event": ir.String(name), "args": obj}
		}
		line, err := ir.MarshalCanonical(obj)
		if err != nil {
			return fmt.Errorf("print %s: %w", name, err)
		}

		if formatter.JSON() {
			_, err = fmt.Fprintf(formatter.Writer, "%s\n", line)
			return err
		}
		_, err = fmt.Fprintf(formatter.Writer, "%s %s\n", name, line)
		return err
	}
}

// openEvents opens the raw event source. "-" and "" mean stdin.
func openEvents(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open events: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// readRawEvents decodes one raw event per line and queues it on the bus.
// Blank lines are ignored; malformed lines are logged and skipped. The bus
// is stopped at end of input.
func readRawEvents(r io.Reader, b *bus.Local, stats *runStats, logger *slog.Logger) {
	defer b.Stop()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		ev, err := decodeRawEvent(line)
		if err != nil {
			stats.skipped.Add(1)
			logger.Warn("skipping malformed raw event", "line", lineNo, "error", err)
			continue
		}

		if !b.Enqueue(ev) {
			logger.Debug("bus stopped, discarding remaining input", "line", lineNo)
			return
		}
		stats.read.Add(1)
	}

	if err := scanner.Err(); err != nil {
		logger.Error("reading raw events failed", "line", lineNo, "error", err)
	}
}

// decodeRawEvent parses a JSON raw event. Numbers stay json.Number so
// identifiers compare exactly.
func decodeRawEvent(line []byte) (ir.RawEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var ev ir.RawEvent
	if err := dec.Decode(&ev); err != nil {
		return ir.RawEvent{}, err
	}
	if ev.Name == "" {
		return ir.RawEvent{}, errors.New("missing event name")
	}
	if ev.Variables == nil {
		ev.Variables = ir.Args{}
	}
	// Sequence numbers are assigned by the bus, never taken from input.
	ev.Seq = 0
	return ev, nil
}
