// Package apperr defines the error taxonomy shared by the calculation and
// lifecycle packages. Every error here can be matched with errors.As and carries
// enough context (field, limit) for an operator to correct the input and retry.
package apperr

import (
	"errors"
	"fmt"
)

// Reasons used by ValidationError.
const (
	ReasonRequired      = "required"
	ReasonNegative      = "must_not_be_negative"
	ReasonNotPositive   = "must_be_positive"
	ReasonOutOfRange    = "out_of_range"
	ReasonAtLeastOne    = "at least one item required"
	ReasonUnknown       = "unknown_reference"
	ReasonMixedSupplier = "supplier_mismatch"
	ReasonInvalid       = "invalid"
)

// ErrConflict marks requests that are well formed but clash with the current
// state of a document.
var ErrConflict = errors.New("conflict")

// ValidationError is bad operator input. It blocks submission and never
// partially applies.
type ValidationError struct {
	Field  string
	Reason string
	// Limit is the bound that was violated, when there is one.
	Limit string
	// Details holds every violation when the error summarises a form.
	Details map[string]string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field == "":
		return "validation: " + e.Reason
	case e.Limit != "":
		return fmt.Sprintf("validation: %s %s (limit %s)", e.Field, e.Reason, e.Limit)
	default:
		return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
	}
}

// Validation builds a ValidationError for a single field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// OutOfRange builds a ValidationError carrying the violated limit.
func OutOfRange(field, limit string) error {
	return &ValidationError{Field: field, Reason: ReasonOutOfRange, Limit: limit}
}

// AuthError means re-authentication failed. The Sent transition is blocked.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth: " + e.Reason + ": " + e.Err.Error()
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// Auth wraps err as an AuthError.
func Auth(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

// DispatchError is a failure sending a rendered document. The document stays
// in its previous state and the artifact remains available for a retry.
type DispatchError struct {
	Recipient string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %q failed: %v", e.Recipient, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatch wraps err as a DispatchError.
func Dispatch(recipient string, err error) error {
	return &DispatchError{Recipient: recipient, Err: err}
}

// InvariantError signals a programming defect. It must not be swallowed.
type InvariantError struct {
	What string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.What }

// Invariant builds an InvariantError.
func Invariant(format string, args ...any) error {
	return &InvariantError{What: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsAuth reports whether err is or wraps an AuthError.
func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

// IsDispatch reports whether err is or wraps a DispatchError.
func IsDispatch(err error) bool {
	var d *DispatchError
	return errors.As(err, &d)
}

// IsInvariant reports whether err is or wraps an InvariantError.
func IsInvariant(err error) bool {
	var i *InvariantError
	return errors.As(err, &i)
}
