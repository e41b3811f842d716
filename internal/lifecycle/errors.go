package lifecycle

import (
	"errors"
	"fmt"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

// Guard violation kinds. Every rejected action wraps exactly one of these so
// callers can tell an action that may succeed later from one that never will.
var (
	ErrNotAllowedYet     = errors.New("not allowed yet")
	ErrNotAllowedAnymore = errors.New("not allowed anymore")
)

// Specific guard violations.
var (
	ErrUnknownStage      = errors.New("unknown stage")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrMissingEventData  = errors.New("missing event data")
	ErrPaymentRequired   = errors.New("payment required")
	ErrFeeNotEarned      = errors.New("success fee not earned")
	ErrFeeAlreadyPaid    = errors.New("success fee already paid")
	ErrDeleteNotAllowed  = errors.New("appeal can no longer be deleted")
	ErrEmptyLetter       = errors.New("letter text is empty")
)

// GuardError describes a rejected lifecycle action.
type GuardError struct {
	Kind   error // ErrNotAllowedYet or ErrNotAllowedAnymore
	Cause  error // specific violation
	Action string
	Stage  models.Stage
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s rejected at stage %s (%v, %v): %s", e.Action, e.Stage, e.Cause, e.Kind, e.Reason)
}

// Unwrap exposes both the kind and the specific cause to errors.Is.
func (e *GuardError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

func notYet(action string, stage models.Stage, cause error, format string, args ...any) error {
	return &GuardError{Kind: ErrNotAllowedYet, Cause: cause, Action: action, Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

func noLonger(action string, stage models.Stage, cause error, format string, args ...any) error {
	return &GuardError{Kind: ErrNotAllowedAnymore, Cause: cause, Action: action, Stage: stage, Reason: fmt.Sprintf(format, args...)}
}
