package httpx

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-pharmacy/gate"
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/logging"
	"gorm.io/gorm"
)

// ValidationDetails is the details object of a 400 response.
type ValidationDetails struct {
	Field  string            `json:"field,omitempty"`
	Reason string            `json:"reason"`
	Limit  string            `json:"limit,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Status returns the HTTP status and error code for err.
func Status(err error) (int, string) {
	var (
		ve *apperr.ValidationError
		ae *apperr.AuthError
		de *apperr.DispatchError
		ie *apperr.InvariantError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &ae):
		return http.StatusUnauthorized, "reauthentication_failed"
	case errors.As(err, &de):
		return http.StatusBadGateway, "dispatch_failed"
	case errors.As(err, &ie):
		return http.StatusInternalServerError, "invariant_violated"
	case errors.Is(err, lifecycle.ErrDispatchInFlight):
		return http.StatusConflict, "dispatch_in_flight"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, gate.ErrUnauthorized), errors.Is(err, gate.ErrNoProfile):
		return http.StatusForbidden, "forbidden"
	}
	return http.StatusInternalServerError, "internal_error"
}

// Error writes err as a JSON error response. Server-side failures are logged;
// their message is not echoed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(err)
	var details any
	var ve *apperr.ValidationError
	var de *apperr.DispatchError
	switch {
	case errors.As(err, &ve):
		details = ValidationDetails{Field: ve.Field, Reason: ve.Reason, Limit: ve.Limit, Fields: ve.Details}
	case errors.As(err, &de):
		details = map[string]string{"recipient": de.Recipient}
	case status == http.StatusConflict || status == http.StatusUnauthorized:
		details = map[string]string{"message": err.Error()}
	}
	if status >= http.StatusInternalServerError {
		logging.LogKV("error", "request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
			"error":  err.Error(),
		})
	}
	JSONError(w, status, code, details)
}
