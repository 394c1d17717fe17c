package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/httpx"
	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/logging"
)

// StatusReader reads the persisted status of a document.
type StatusReader interface {
	Status(ctx context.Context, ref lifecycle.Ref) (lifecycle.Status, error)
}

// VariantRenderer renders one page variant for previews.
type VariantRenderer interface {
	RenderVariant(v document.Variant) ([]byte, error)
}

// Lifecycle serves the initiate, revert, preview and send routes of every
// document kind.
type Lifecycle struct {
	Registry *lifecycle.Registry
	Loader   lifecycle.Loader
	Variants VariantRenderer
	Issuer   *auth.Issuer
	Users    auth.PasswordHashes
}

func (l *Lifecycle) machine(ctx context.Context, ref lifecycle.Ref) (*lifecycle.Machine, error) {
	return l.Registry.Machine(ctx, ref)
}

type statusResponse struct {
	Document string           `json:"document"`
	Status   lifecycle.Status `json:"status"`
}

func (l *Lifecycle) initiate(w http.ResponseWriter, r *http.Request, ref lifecycle.Ref) {
	m, err := l.machine(r.Context(), ref)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := m.Initiate(r.Context()); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statusResponse{ref.String(), m.Status()})
}

func (l *Lifecycle) revert(w http.ResponseWriter, r *http.Request, ref lifecycle.Ref) {
	m, err := l.machine(r.Context(), ref)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := m.Revert(r.Context()); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statusResponse{ref.String(), m.Status()})
}

// preview renders without touching status or retained artifacts. A variant
// query picks a single page.
func (l *Lifecycle) preview(w http.ResponseWriter, r *http.Request, ref lifecycle.Ref) {
	variant := r.URL.Query().Get("variant")
	var (
		doc *document.Document
		out []byte
		err error
	)
	if variant != "" && l.Variants != nil {
		doc, err = l.Loader.Load(r.Context(), ref)
		if err == nil {
			out, err = l.Variants.RenderVariant(document.VariantByName(doc, variant))
		}
	} else {
		var m *lifecycle.Machine
		m, err = l.machine(r.Context(), ref)
		if err == nil {
			doc, out, err = m.Preview(r.Context())
		}
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `inline; filename="`+pdfName(doc)+`"`)
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func pdfName(doc *document.Document) string {
	return strings.ReplaceAll(string(doc.Header.Kind), "_", "-") + "-" + doc.Header.Number + ".pdf"
}

type sendRequest struct {
	// Password re-authenticates inline when no bearer token is sent.
	Password string `json:"password,omitempty"`
	// Recipient is used only when the supplier has no email on file.
	Recipient string `json:"recipient,omitempty"`
}

type sendResponse struct {
	Document  string           `json:"document"`
	Number    string           `json:"number"`
	Status    lifecycle.Status `json:"status"`
	Recipient string           `json:"recipient"`
}

// send re-authenticates with the bearer token from /api/auth/reauth or the
// inline password, then dispatches.
func (l *Lifecycle) send(w http.ResponseWriter, r *http.Request, ref lifecycle.Ref) {
	var req sendRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			httpx.Error(w, r, err)
			return
		}
	}
	var authn lifecycle.Authenticator
	if tok, ok := auth.BearerToken(r); ok {
		authn = auth.BearerAuthenticator{Issuer: l.Issuer, Token: tok}
	} else if req.Password != "" {
		authn = auth.PasswordAuthenticator{Users: l.Users, AdminID: currentUser(r), Password: req.Password}
	}

	m, err := l.machine(r.Context(), ref)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	p, err := m.BeginSend(r.Context(), authn, req.Recipient)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := p.Dispatch(r.Context()); err != nil {
		httpx.Error(w, r, err)
		return
	}
	logging.LogKV("info", "send completed", map[string]interface{}{
		"doc":     ref.String(),
		"user_id": currentUser(r),
	})
	httpx.JSON(w, http.StatusOK, sendResponse{
		Document:  ref.String(),
		Number:    p.Doc.Header.Number,
		Status:    m.Status(),
		Recipient: p.Recipient,
	})
}
