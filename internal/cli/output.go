package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // rules invalid or a scenario failed
	ExitCommandError = 2 // bad flags, unreadable files, firing log errors
)

// ExitError carries the process exit code for a failed command up to main.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code. Errors that
// are not ExitErrors exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitFailure
	}
}

// CLIResponse is the envelope every command writes in --format json.
type CLIResponse struct {
	Status  string    `json:"status"` // "ok" or "error"
	Data    any       `json:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
	Session string    `json:"session,omitempty"`
}

// CLIError is a coded error: E0xx for CLI failures, E1xx for rule errors.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutputFormatter writes command results as text or as a CLIResponse.
// Diagnostics go to ErrWriter, falling back to Writer, so they never mix
// into a JSON stream that has its own ErrWriter.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data as an "ok" response, or prints it in text mode.
func (f *OutputFormatter) Success(data any) error {
	if !f.JSON() {
		_, err := fmt.Fprintln(f.Writer, data)
		return err
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Fail reports a coded error and returns the ExitError the command should
// return.
func (f *OutputFormatter) Fail(exitCode int, code, message string) error {
	if f.JSON() {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message},
		})
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	}
	return NewExitError(exitCode, code+": "+message)
}

// Encode writes resp indented, for responses that carry more than Data.
func (f *OutputFormatter) Encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// VerboseLog prints a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.errWriter(), format+"\n", args...)
	}
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
