package engine

import (
	"errors"
	"fmt"
)

// DispatchError reports a listener failure while dispatching a raw event.
//
// The remaining fires and rules for that raw event were not executed.
type DispatchError struct {
	// RawEvent is the name of the raw event being dispatched.
	RawEvent string

	// TargetEvent is the derived event whose listener failed.
	TargetEvent string

	// Seq is the raw event's bus sequence number (0 if unstamped).
	Seq int64

	// Err is the listener's error.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Seq > 0 {
		return fmt.Sprintf("dispatch %s -> %s (seq=%d): %v", e.RawEvent, e.TargetEvent, e.Seq, e.Err)
	}
	return fmt.Sprintf("dispatch %s -> %s: %v", e.RawEvent, e.TargetEvent, e.Err)
}

// Unwrap returns the listener's error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsDispatchError returns true if err is or wraps a *DispatchError.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}
