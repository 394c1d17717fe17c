// Package lifecycle governs the status of purchase requests and return
// documents: not_initiated → initiated → sent. The sent transition is gated by
// a scoped single-use AuthToken and a successful dispatch of the rendered
// document. One implementation serves every document kind.
package lifecycle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/document"
)

type Status string

const (
	StatusNotInitiated Status = "not_initiated"
	StatusInitiated    Status = "initiated"
	StatusSent         Status = "sent"
)

func (s Status) Label() string {
	switch s {
	case StatusNotInitiated:
		return "Not Initiated"
	case StatusInitiated:
		return "Initiated"
	case StatusSent:
		return "Sent"
	}
	return string(s)
}

// ParseStatus accepts the stored form; the empty string is not_initiated.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusNotInitiated:
		return StatusNotInitiated, nil
	case StatusInitiated:
		return StatusInitiated, nil
	case StatusSent:
		return StatusSent, nil
	}
	return "", &apperr.ValidationError{Field: "status", Reason: apperr.ReasonInvalid, Limit: "not_initiated|initiated|sent"}
}

var (
	ErrDispatchInFlight  = errors.New("lifecycle: dispatch already in flight")
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
	ErrCancelled         = errors.New("lifecycle: send cancelled")
)

func transitionErr(from, to Status) error {
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}

// Ref identifies one document of one kind.
type Ref struct {
	Kind document.Kind
	ID   uint
}

func (r Ref) String() string { return fmt.Sprintf("%s:%d", r.Kind, r.ID) }

// ParseRef is the inverse of Ref.String.
func ParseRef(s string) (Ref, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Ref{}, fmt.Errorf("lifecycle: malformed document ref %q", s)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return Ref{}, fmt.Errorf("lifecycle: malformed document id in %q", s)
	}
	k := document.Kind(kind)
	if !k.Valid() {
		return Ref{}, fmt.Errorf("lifecycle: unknown document kind %q", kind)
	}
	return Ref{Kind: k, ID: uint(n)}, nil
}
