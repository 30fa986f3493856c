package verify

import (
	"errors"
	"fmt"
)

// Kind classifies why a verification run stopped.
type Kind string

const (
	KindResolution   Kind = "RESOLUTION_ERROR"
	KindBuild        Kind = "BUILD_ERROR"
	KindSubmission   Kind = "SUBMISSION_ERROR"
	KindConfirmation Kind = "CONFIRMATION_TIMEOUT"
	KindMismatch     Kind = "VERIFICATION_MISMATCH"
)

// Error is a failed verification step.
type Error struct {
	// Kind is compared by Is.
	Kind Kind

	// Stage is the state the run was in when it failed.
	Stage Stage

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Kind, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates an error of kind raised at stage.
func NewError(kind Kind, stage Stage, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is; only the kind is compared.
var (
	ErrResolution          = &Error{Kind: KindResolution}
	ErrBuild               = &Error{Kind: KindBuild}
	ErrSubmission          = &Error{Kind: KindSubmission}
	ErrConfirmationTimeout = &Error{Kind: KindConfirmation}
	ErrMismatch            = &Error{Kind: KindMismatch}
)

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
