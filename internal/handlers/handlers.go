// Package handlers exposes the services as a JSON API. Every handler assumes
// auth.Middleware ran and route-level permission checks passed; per-document
// checks go through the Authorizer.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/gate"
	"github.com/diewo77/go-pharmacy/httpx"
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/services"
)

// Authorizer checks the request's operator against a loaded resource.
type Authorizer interface {
	Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error
}

// maxUpload bounds import files.
const maxUpload = 10 << 20

func pathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.Validation(name, apperr.ReasonInvalid)
	}
	return uint(n), nil
}

func queryID(r *http.Request, name string) (uint, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, apperr.Validation(name, apperr.ReasonInvalid)
	}
	return uint(n), nil
}

func decode(r *http.Request, v any) error {
	if err := httpx.Decode(r, v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("body", apperr.ReasonRequired)
		}
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		return &apperr.ValidationError{Field: "body", Reason: apperr.ReasonInvalid, Limit: err.Error()}
	}
	return nil
}

func currentUser(r *http.Request) uint {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

// documentFilter reads status, supplier_id, from and to (YYYY-MM-DD, to
// inclusive).
func documentFilter(r *http.Request) (services.DocumentFilter, error) {
	var f services.DocumentFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		st, err := lifecycle.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	id, err := queryID(r, "supplier_id")
	if err != nil {
		return f, err
	}
	f.SupplierID = id
	if s := q.Get("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return f, &apperr.ValidationError{Field: "from", Reason: apperr.ReasonInvalid, Limit: "YYYY-MM-DD"}
		}
		f.From = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return f, &apperr.ValidationError{Field: "to", Reason: apperr.ReasonInvalid, Limit: "YYYY-MM-DD"}
		}
		f.To = t.AddDate(0, 0, 1)
	}
	return f, nil
}

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
