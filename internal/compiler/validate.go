package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/easyevents/internal/ir"
)

// ValidationError represents a rule consistency problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks parsed rules for mistakes the dispatcher tolerates
// silently, such as a fire reading an entity field that nothing writes.
// Returns all problems found (does not fail-fast).
//
// Dispatch never depends on Validate: a rule set with problems still loads
// and runs, it just suppresses the affected fires.
func Validate(rules []ir.ConversionRule) []ValidationError {
	var errs []ValidationError

	// Per raw event: identifier fields already consumed, and entity fields
	// already written, by earlier rules. Rules of one raw event share a
	// working mapping.
	consumed := make(map[string]map[string]string)
	produced := make(map[string]map[string]bool)

	for i, rule := range rules {
		prefix := fmt.Sprintf("rules[%d]", i)

		// E110: raw event name required
		if strings.TrimSpace(rule.RawEvent) == "" {
			errs = append(errs, ValidationError{
				Field:   prefix + ".raw_event",
				Message: "raw event name is required",
				Code:    ErrMissingRawEvent,
			})
		}

		seen := consumed[rule.RawEvent]
		if seen == nil {
			seen = make(map[string]string)
			consumed[rule.RawEvent] = seen
		}
		earlier := produced[rule.RawEvent]
		if earlier == nil {
			earlier = make(map[string]bool)
			produced[rule.RawEvent] = earlier
		}
		targets := make(map[string]bool)

		for j, m := range rule.Remaps {
			field := fmt.Sprintf("%s.remaps[%d]", prefix, j)

			// E112: both sides of a remap required
			if m.SourceField == "" || m.TargetField == "" {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "remap needs both a source and a target field",
					Code:    ErrInvalidRemap,
				})
				continue
			}

			// E111: one rule writing the same field twice
			if targets[m.TargetField] {
				errs = append(errs, ValidationError{
					Field:   field + ".target_field",
					Message: fmt.Sprintf("field %q is written by an earlier remap of this rule", m.TargetField),
					Code:    ErrDuplicateTarget,
				})
			}
			targets[m.TargetField] = true

			// E115: the source was removed by an earlier remap
			if by, ok := seen[m.SourceField]; ok {
				errs = append(errs, ValidationError{
					Field:   field + ".source_field",
					Message: fmt.Sprintf("identifier %q was already consumed by %s and will always resolve to nil", m.SourceField, by),
					Code:    ErrConsumedIdentifier,
				})
			}
			seen[m.SourceField] = field
		}

		for j, f := range rule.Fires {
			field := fmt.Sprintf("%s.fires[%d]", prefix, j)

			// E113: target event and entity field required
			if f.TargetEvent == "" || f.EntityField == "" {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "fire needs both a target event and an entity field",
					Code:    ErrInvalidFire,
				})
				continue
			}

			// E114: entity field must come from a remap of this or an
			// earlier rule for the same raw event
			if !rule.Produces(f.EntityField) && !earlier[f.EntityField] {
				errs = append(errs, ValidationError{
					Field:   field + ".entity_field",
					Message: fmt.Sprintf("entity field %q is not written by any remap", f.EntityField),
					Code:    ErrUnproducedEntity,
				})
			}

			// E116: condition named without a predicate
			if f.Condition != "" && f.Guard == nil {
				errs = append(errs, ValidationError{
					Field:   field + ".condition",
					Message: fmt.Sprintf("condition %q has no predicate bound", f.Condition),
					Code:    ErrMissingGuard,
				})
			}
		}

		for _, m := range rule.Remaps {
			if m.TargetField != "" {
				earlier[m.TargetField] = true
			}
		}
	}

	return errs
}
