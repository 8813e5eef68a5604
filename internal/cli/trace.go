package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/easyevents/internal/ir"
	"github.com/roach88/easyevents/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database     string
	Session      string // defaults to the latest session
	Event        string // optional - filter to one derived event
	AllSessions  bool   // with Event: search every session
	ListSessions bool
}

// TraceEntry is one recorded firing in the trace timeline.
type TraceEntry struct {
	Seq     int64          `json:"seq"`
	Session string         `json:"session"`
	Event   string         `json:"event"`
	Args    map[string]any `json:"args"`
	Hash    string         `json:"hash"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session   string       `json:"session,omitempty"`
	RulesHash string       `json:"rules_hash,omitempty"`
	Event     string       `json:"event,omitempty"`
	Timeline  []TraceEntry `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalFirings int            `json:"total_firings"`
	ByEvent      map[string]int `json:"by_event"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded firings from a firing log",
		Long: `Show the derived events recorded in a firing log, in sequence order.

By default the most recent session is shown. The output includes:
- Timeline: every firing with its merged arguments
- Stats: firing counts per derived event

Examples:
  easyevents trace --db ./firings.db
  easyevents trace --db ./firings.db --session 0190f3c2-...
  easyevents trace --db ./firings.db --event kill --all-sessions
  easyevents trace --db ./firings.db --sessions --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite firing log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace (default: latest)")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter to one derived event")
	cmd.Flags().BoolVar(&opts.AllSessions, "all-sessions", false, "with --event, search every session")
	cmd.Flags().BoolVar(&opts.ListSessions, "sessions", false, "list recorded sessions")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.AllSessions && opts.Event == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--all-sessions requires --event")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err))
	}
	defer st.Close()

	if opts.ListSessions {
		sessions, err := st.Sessions(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		return outputSessions(formatter, sessions)
	}

	var (
		result  TraceResult
		firings []ir.Firing
	)
	if opts.AllSessions {
		result.Event = opts.Event
		firings, err = st.ReadFiringsByEvent(ctx, opts.Event)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
	} else {
		sess, err := findSession(ctx, st, opts.Session)
		if errors.Is(err, sql.ErrNoRows) {
			return outputEmptyTrace(formatter, opts)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		formatter.VerboseLog("Tracing session %s (started at seq %d)", sess.ID, sess.StartedSeq)

		result.Session = sess.ID
		result.RulesHash = sess.RulesHash
		result.Event = opts.Event
		firings, err = st.ReadFirings(ctx, sess.ID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
	}

	result.Timeline, err = buildTimeline(firings, opts.Event)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	result.Stats = traceStats(result.Timeline)

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: result, Session: result.Session})
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// findSession returns the named session, or the latest one when id is
// empty. A missing session wraps sql.ErrNoRows.
func findSession(ctx context.Context, st *store.Store, id string) (ir.Session, error) {
	if id == "" {
		return st.LatestSession(ctx)
	}

	sessions, err := st.Sessions(ctx)
	if err != nil {
		return ir.Session{}, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return ir.Session{}, fmt.Errorf("session %s: %w", id, sql.ErrNoRows)
}

// buildTimeline converts recorded firings to trace entries, keeping only
// eventFilter when it is set.
func buildTimeline(firings []ir.Firing, eventFilter string) ([]TraceEntry, error) {
	timeline := []TraceEntry{}
	for _, f := range firings {
		if eventFilter != "" && f.Event != eventFilter {
			continue
		}
		args, err := decodeFiringArgs(f.Args)
		if err != nil {
			return nil, fmt.Errorf("firing %s (seq %d): %w", f.Event, f.Seq, err)
		}
		timeline = append(timeline, TraceEntry{
			Seq:     f.Seq,
			Session: f.Session,
			Event:   f.Event,
			Args:    args,
			Hash:    f.Hash,
		})
	}
	return timeline, nil
}

// decodeFiringArgs parses the canonical JSON arguments of a firing.
func decodeFiringArgs(data string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	return args, nil
}

func traceStats(timeline []TraceEntry) TraceStats {
	stats := TraceStats{TotalFirings: len(timeline), ByEvent: map[string]int{}}
	for _, e := range timeline {
		stats.ByEvent[e.Event]++
	}
	return stats
}

func outputEmptyTrace(formatter *OutputFormatter, opts *TraceOptions) error {
	if formatter.JSON() {
		return formatter.Encode(CLIResponse{
			Status: "ok",
			Data: TraceResult{
				Session:  opts.Session,
				Event:    opts.Event,
				Timeline: []TraceEntry{},
				Stats:    TraceStats{ByEvent: map[string]int{}},
			},
		})
	}
	if opts.Session != "" {
		fmt.Fprintf(formatter.Writer, "No firings found for session: %s\n", opts.Session)
		return nil
	}
	fmt.Fprintln(formatter.Writer, "No sessions recorded")
	return nil
}

func outputSessions(formatter *OutputFormatter, sessions []ir.Session) error {
	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: sessions})
	}

	w := formatter.Writer
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded")
		return nil
	}
	fmt.Fprintln(w, "=== Sessions ===")
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  seq>%d  %d firing(s)  rules %s\n",
			s.ID, s.StartedSeq, s.Firings, truncateID(s.RulesHash))
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	switch {
	case result.Session != "":
		fmt.Fprintf(w, "Trace for Session: %s\n", result.Session)
	default:
		fmt.Fprintf(w, "Trace for Event: %s (all sessions)\n", result.Event)
	}
	if result.RulesHash != "" {
		fmt.Fprintf(w, "Rules: %s\n", truncateID(result.RulesHash))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no firings)")
	}
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s %s\n", e.Seq, e.Event, formatArgs(e.Args))
		if verbose {
			fmt.Fprintf(w, "       Session: %s\n", e.Session)
			fmt.Fprintf(w, "       Hash: %s\n", truncateID(e.Hash))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Firings: %d\n", result.Stats.TotalFirings)
	events := make([]string, 0, len(result.Stats.ByEvent))
	for name := range result.Stats.ByEvent {
		events = append(events, name)
	}
	sort.Strings(events)
	for _, name := range events {
		fmt.Fprintf(w, "  %s: %d\n", name, result.Stats.ByEvent[name])
	}

	return nil
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s=%s", k, formatValue(args[k]))
	}
	buf.WriteByte('}')
	return buf.String()
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
