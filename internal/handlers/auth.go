package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/gate"
	"github.com/diewo77/go-pharmacy/httpx"
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/services"
	"github.com/diewo77/go-pharmacy/validation"
)

type AuthHandler struct {
	Users    *services.UserService
	Issuer   *auth.Issuer
	Gate     Authorizer
	Statuses StatusReader
}

func NewAuthHandler(users *services.UserService, issuer *auth.Issuer, g Authorizer, st StatusReader) *AuthHandler {
	return &AuthHandler{Users: users, Issuer: issuer, Gate: g, Statuses: st}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	v := validation.Violations{}
	validation.Required("email", req.Email, v)
	validation.Email("email", req.Email, v)
	validation.Required("password", req.Password, v)
	if err := v.Err(); err != nil {
		httpx.Error(w, r, err)
		return
	}
	u, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	auth.CreateSession(w, u.ID)
	full, err := h.Users.Get(r.Context(), u.ID)
	respond(w, r, full, err)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the session's user with its profile and permissions.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), currentUser(r))
	respond(w, r, u, err)
}

type reauthRequest struct {
	Password string `json:"password"`
	// Document is the scope of the tokens, "kind:id".
	Document string `json:"document"`
}

// Reauth checks the operator's password again and issues an access/refresh
// pair valid for sending one document.
func (h *AuthHandler) Reauth(w http.ResponseWriter, r *http.Request) {
	var req reauthRequest
	if err := decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	v := validation.Violations{}
	validation.Required("password", req.Password, v)
	validation.Required("document", req.Document, v)
	if err := v.Err(); err != nil {
		httpx.Error(w, r, err)
		return
	}
	ref, err := lifecycle.ParseRef(req.Document)
	if err != nil {
		httpx.Error(w, r, apperr.Validation("document", apperr.ReasonInvalid))
		return
	}
	if err := h.Gate.Authorize(r.Context(), gate.ActionDispatch, string(ref.Kind), nil); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if _, err := h.Statuses.Status(r.Context(), ref); err != nil {
		httpx.Error(w, r, err)
		return
	}
	uid := currentUser(r)
	if err := auth.CheckPassword(r.Context(), h.Users, uid, req.Password); err != nil {
		httpx.Error(w, r, apperr.Auth("re-authentication failed", err))
		return
	}
	pair, err := h.Issuer.Issue(uid, ref)
	respond(w, r, pair, err)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	pair, err := h.Issuer.Refresh(req.RefreshToken)
	if err != nil {
		httpx.Error(w, r, apperr.Auth("refresh rejected", err))
		return
	}
	httpx.JSON(w, http.StatusOK, pair)
}
