package automation

import (
	"errors"
	"fmt"
	"time"
)

// ErrScriptingUnavailable means the OS scripting mechanism itself cannot be
// used (wrong platform, missing binary, denied automation permission). This
// is fatal for the whole run, not just the current step.
var ErrScriptingUnavailable = errors.New("OS scripting is not available")

// ErrDisabledOperation marks an operation that is intentionally never
// executed. It exists so callers see a typed refusal instead of a silent
// no-op or a panic.
var ErrDisabledOperation = errors.New("operation is permanently disabled")

// ActivationError reports that Live could not be brought to the foreground
// after the configured number of attempts.
type ActivationError struct {
	Attempts int
	Detail   string
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("failed to activate Live after %d attempts: %s", e.Attempts, e.Detail)
}

// DialogMismatchError reports that a verification gate observed a window
// other than the expected dialog. It is never retried; the caller must take
// the abort path.
type DialogMismatchError struct {
	Step     Step
	Expected DialogState
	Observed DialogState
	Title    string
}

func (e *DialogMismatchError) Error() string {
	return fmt.Sprintf("expected %s dialog at step %q, found %s (window title %q)",
		e.Expected, e.Step, e.Observed, e.Title)
}

// WaitTimeoutError reports that a completion wait exceeded its bound.
type WaitTimeoutError struct {
	Elapsed time.Duration
	Title   string
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("export timed out after %s (window title %q)", e.Elapsed, e.Title)
}

// RangeMismatchError reports that a render-range field read back a value too
// far from what was typed.
type RangeMismatchError struct {
	Field    string
	Expected float64
	Observed string
}

func (e *RangeMismatchError) Error() string {
	return fmt.Sprintf("%s field read back %q, expected %.1f (tolerance %.1f)",
		e.Field, e.Observed, e.Expected, rangeTolerance)
}
