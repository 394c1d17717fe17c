package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/diewo77/go-pharmacy/gate"
	"github.com/diewo77/go-pharmacy/httpx"
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/diewo77/go-pharmacy/internal/services"
	"github.com/diewo77/go-pharmacy/internal/sheet"
)

const resourcePurchase = "purchase_request"

type PurchaseHandler struct {
	Purchases *services.PurchaseService
	Gate      Authorizer
	Lifecycle *Lifecycle
}

func NewPurchaseHandler(p *services.PurchaseService, g Authorizer, l *Lifecycle) *PurchaseHandler {
	return &PurchaseHandler{Purchases: p, Gate: g, Lifecycle: l}
}

func purchaseRef(id uint) lifecycle.Ref {
	return lifecycle.Ref{Kind: document.KindPurchaseRequest, ID: id}
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := documentFilter(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	list, err := h.Purchases.List(r.Context(), f)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchaseViews(list))
}

func (h *PurchaseHandler) NextNumber(w http.ResponseWriter, r *http.Request) {
	n, err := h.Purchases.NextNumber(r.Context())
	respond(w, r, map[string]string{"number": n}, err)
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.PurchaseInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	pr, err := h.Purchases.Create(r.Context(), currentUser(r), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchaseView{pr, pr.Total()})
}

// load fetches the request at {id} and checks action against it.
func (h *PurchaseHandler) load(w http.ResponseWriter, r *http.Request, action gate.Action) (*models.PurchaseRequest, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	pr, err := h.Purchases.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	if err := h.Gate.Authorize(r.Context(), action, resourcePurchase, pr); err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	return pr, true
}

func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	pr, ok := h.load(w, r, gate.ActionView)
	if !ok {
		return
	}
	items, err := h.Purchases.LineItems(pr)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"purchase_request": purchaseView{pr, pr.Total()},
		"line_items":       lineViews(items),
	})
}

func (h *PurchaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	cur, ok := h.load(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	var in services.PurchaseInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	pr, err := h.Purchases.Update(r.Context(), cur.ID, currentUser(r), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchaseView{pr, pr.Total()})
}

func (h *PurchaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pr, ok := h.load(w, r, gate.ActionDelete)
	if !ok {
		return
	}
	if err := h.Purchases.Delete(r.Context(), pr.ID); err != nil {
		httpx.Error(w, r, err)
		return
	}
	h.Lifecycle.Registry.Forget(purchaseRef(pr.ID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *PurchaseHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	if pr, ok := h.load(w, r, gate.ActionInitiate); ok {
		h.Lifecycle.initiate(w, r, purchaseRef(pr.ID))
	}
}

func (h *PurchaseHandler) Revert(w http.ResponseWriter, r *http.Request) {
	if pr, ok := h.load(w, r, gate.ActionInitiate); ok {
		h.Lifecycle.revert(w, r, purchaseRef(pr.ID))
	}
}

func (h *PurchaseHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if pr, ok := h.load(w, r, gate.ActionView); ok {
		h.Lifecycle.preview(w, r, purchaseRef(pr.ID))
	}
}

func (h *PurchaseHandler) Send(w http.ResponseWriter, r *http.Request) {
	if pr, ok := h.load(w, r, gate.ActionDispatch); ok {
		h.Lifecycle.send(w, r, purchaseRef(pr.ID))
	}
}

// Import turns an uploaded workbook (form field "file") into line items for
// the editor. Nothing is persisted.
func (h *PurchaseHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		httpx.Error(w, r, &apperr.ValidationError{Field: "file", Reason: apperr.ReasonInvalid, Limit: strconv.Itoa(maxUpload)})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.Error(w, r, apperr.Validation("file", apperr.ReasonRequired))
		return
	}
	defer file.Close()

	var supplierID uint
	if s := r.FormValue("supplier_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			httpx.Error(w, r, apperr.Validation("supplier_id", apperr.ReasonInvalid))
			return
		}
		supplierID = uint(n)
	}
	items, err := h.Purchases.Import(r.Context(), file, supplierID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lineViews(items))
}

func (h *PurchaseHandler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := sheet.WriteImportTemplate(&buf); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Attachment(w, xlsxType, "purchase-request-import.xlsx", buf.Bytes())
}

func (h *PurchaseHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := documentFilter(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.Purchases.Export(r.Context(), &buf, f); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Attachment(w, xlsxType, "purchase-requests.xlsx", buf.Bytes())
}
