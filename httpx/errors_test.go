package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diewo77/go-pharmacy/gate"
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"gorm.io/gorm"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"validation", apperr.OutOfRange("adjustment_amount", "10.00"), http.StatusBadRequest, "validation_error"},
		{"wrapped validation", fmt.Errorf("items[0]: %w", apperr.Validation("pack_type", apperr.ReasonRequired)), http.StatusBadRequest, "validation_error"},
		{"auth", apperr.Auth("re-authentication failed", nil), http.StatusUnauthorized, "reauthentication_failed"},
		{"dispatch", apperr.Dispatch("a@b.c", errors.New("throttled")), http.StatusBadGateway, "dispatch_failed"},
		{"invariant", apperr.Invariant("selection refers to %s", "x"), http.StatusInternalServerError, "invariant_violated"},
		{"in flight", lifecycle.ErrDispatchInFlight, http.StatusConflict, "dispatch_in_flight"},
		{"transition", fmt.Errorf("%w: sent → initiated", lifecycle.ErrInvalidTransition), http.StatusConflict, "invalid_transition"},
		{"conflict", fmt.Errorf("%w: memoed", apperr.ErrConflict), http.StatusConflict, "conflict"},
		{"not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"forbidden", gate.ErrUnauthorized, http.StatusForbidden, "forbidden"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, code := Status(tt.err)
			if got != tt.want || code != tt.code {
				t.Errorf("Status = %d %q, want %d %q", got, code, tt.want, tt.code)
			}
		})
	}
}

func TestError_ValidationBody(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/return-bills/1/adjustments", nil)
	Error(rr, req, apperr.OutOfRange("adjustment_amount", "10.00"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Error   string            `json:"error"`
		Details ValidationDetails `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "validation_error" || body.Details.Field != "adjustment_amount" || body.Details.Limit != "10.00" {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestError_InternalHidesMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	Error(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Body.String(); got != `{"error":"internal_error"}` {
		t.Errorf("body = %s", got)
	}
}
