package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/easyevents/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Files  int                        `json:"files"`
	Rules  int                        `json:"rules"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules>",
		Short: "Check conversion rules for mistakes",
		Long: `Parse conversion rules and check them for mistakes dispatch would
tolerate silently: fires whose entity field no remap writes, identifiers
consumed twice, duplicate targets, conditions without predicates.

<rules> is a rule file (.json, .yaml, .yml, .cue) or a directory of them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, rulesPath string, cmd *cobra.Command) error {
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
		formatter.VerboseLog("Loaded %s", f)
	}

	var problems []compiler.ValidationError
	for _, err := range loadErrors {
		problems = append(problems, loadErrorToValidation(err))
	}
	problems = append(problems, compiler.Validate(loadResult.Rules)...)

	result := ValidationResult{
		Valid:  len(problems) == 0,
		Files:  len(loadResult.Files),
		Rules:  len(loadResult.Rules),
		Errors: problems,
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// loadErrorToValidation reports a file that failed to load as a
// validation problem located at the file (and CUE position, if any).
func loadErrorToValidation(err error) compiler.ValidationError {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
	}

	field := loadErr.File
	if loadErr.Pos.IsValid() {
		field = fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	return compiler.ValidationError{Field: field, Message: loadErr.Message, Code: loadErr.Code}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All rules valid (%d rule(s) in %d file(s))\n", result.Rules, result.Files)
	return nil
}

// outputValidationErrors outputs every problem found.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s\n      %s\n", err.Code, err.Field, err.Message)
	}

	return exitErr
}
