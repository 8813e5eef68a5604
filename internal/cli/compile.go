package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/easyevents/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the parsed conversion rules.
type CompilationResult struct {
	RulesHash string              `json:"rules_hash"`
	Rules     []ir.ConversionRule `json:"rules"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	RuleCount     int
	RawEvents     []string // distinct, in first-appearance order
	DerivedEvents []string // distinct, in first-appearance order
	RemapCount    int
	FireCount     int
	GuardedFires  int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <rules>",
		Short: "Parse conversion rules and emit them as JSON",
		Long: `Parse conversion rules and emit the resulting rule model as JSON.

Every rule file format (.json, .yaml, .yml, .cue) is parsed into the same
model, and condition names are normalized to their registered form. The
output includes the rules hash recorded with each firing session.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, rulesPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadRules(rulesPath, LoadModeCollectAll)
	if loadResult == nil {
		code, msg := firstLoadError(loadErrors)
		return formatter.Fail(ExitCommandError, code, msg)
	}

	for _, f := range loadResult.Files {
		formatter.VerboseLog("Compiled %s", f)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{
		RulesHash: loadResult.RulesHash,
		Rules:     loadResult.Rules,
	}
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeRulesToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{RuleCount: len(result.Rules)}

	seenRaw := make(map[string]bool)
	seenDerived := make(map[string]bool)
	for _, rule := range result.Rules {
		if !seenRaw[rule.RawEvent] {
			seenRaw[rule.RawEvent] = true
			stats.RawEvents = append(stats.RawEvents, rule.RawEvent)
		}
		stats.RemapCount += len(rule.Remaps)
		stats.FireCount += len(rule.Fires)
		for _, f := range rule.Fires {
			if f.Condition != "" {
				stats.GuardedFires++
			}
			if !seenDerived[f.TargetEvent] {
				seenDerived[f.TargetEvent] = true
				stats.DerivedEvents = append(stats.DerivedEvents, f.TargetEvent)
			}
		}
	}

	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d rule(s): %d raw event(s), %d derived event(s)\n\n",
		stats.RuleCount, len(stats.RawEvents), len(stats.DerivedEvents))

	for _, rule := range result.Rules {
		fmt.Fprintf(w, "  %s\n", rule.RawEvent)
		for _, m := range rule.Remaps {
			fmt.Fprintf(w, "    %s → %s\n", m.SourceField, m.TargetField)
		}
		for _, f := range rule.Fires {
			line := fmt.Sprintf("    fire %s(%s)", f.TargetEvent, f.EntityField)
			if f.Condition != "" {
				line += " if " + f.Condition
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Derived events: %s\n", strings.Join(stats.DerivedEvents, ", "))
	fmt.Fprintf(w, "Rules hash: %s\n", result.RulesHash)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote rules to %s\n", outputFile)
	}

	return nil
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	exitErr := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := firstLoadError([]error{err})
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %v\n", err)
	}

	return exitErr
}

// writeRulesToFile writes the compilation result as indented JSON.
// Guards are not serialized; condition names are.
func writeRulesToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
