package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes (E110-E199), shared by CompileError and ValidationError.
const (
	ErrMissingRawEvent    = "E110" // conversion has no raw event name
	ErrDuplicateTarget    = "E111" // two remaps of one rule write the same field
	ErrInvalidRemap       = "E112" // remap with empty source or target field
	ErrInvalidFire        = "E113" // fire with empty target event or entity field
	ErrUnproducedEntity   = "E114" // fire reads a field no remap of its rule writes
	ErrConsumedIdentifier = "E115" // identifier already removed by an earlier remap
	ErrMissingGuard       = "E116" // condition named but no predicate bound
	ErrUndefinedCondition = "E117" // condition name not in the registry
	ErrSchemaViolation    = "E118" // document does not match the rule schema
	ErrMalformedDocument  = "E119" // document cannot be read or decoded
)

// ErrUnknownPredicate is wrapped by the CompileError returned when a rule
// names a condition the registry does not know.
var ErrUnknownPredicate = errors.New("unknown predicate")

// CompileError represents a rule loading error with an optional source
// position (CUE documents only).
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	prefix := ""
	if e.Code != "" {
		prefix = "[" + e.Code + "] "
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s%s:%d:%d: %s: %s",
			prefix, e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Field, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError reports whether err is or wraps a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	ce := &CompileError{
		Code:    ErrMalformedDocument,
		Field:   "cue",
		Message: first.Error(),
		Err:     err,
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
