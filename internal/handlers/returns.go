package handlers

import (
	"bytes"
	"net/http"

	"github.com/diewo77/go-pharmacy/gate"
	"github.com/diewo77/go-pharmacy/httpx"
	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/diewo77/go-pharmacy/internal/services"
)

const (
	resourceReturnBill = "return_bill"
	resourceReturnMemo = "return_memo"
)

// ReturnHandler serves return bills, their adjustments and return memos.
type ReturnHandler struct {
	Returns   *services.ReturnService
	Gate      Authorizer
	Lifecycle *Lifecycle
}

func NewReturnHandler(s *services.ReturnService, g Authorizer, l *Lifecycle) *ReturnHandler {
	return &ReturnHandler{Returns: s, Gate: g, Lifecycle: l}
}

func billRef(id uint) lifecycle.Ref { return lifecycle.Ref{Kind: document.KindReturnBill, ID: id} }
func memoRef(id uint) lifecycle.Ref { return lifecycle.Ref{Kind: document.KindReturnMemo, ID: id} }

func (h *ReturnHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	f, err := documentFilter(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	list, err := h.Returns.ListBills(r.Context(), f)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, billViews(list))
}

func (h *ReturnHandler) NextBillNumber(w http.ResponseWriter, r *http.Request) {
	n, err := h.Returns.NextBillNumber(r.Context())
	respond(w, r, map[string]string{"number": n}, err)
}

// CreateBills returns every bill created: one per supplier when the request
// did not fix one.
func (h *ReturnHandler) CreateBills(w http.ResponseWriter, r *http.Request) {
	var in services.ReturnInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	bills, err := h.Returns.CreateBills(r.Context(), currentUser(r), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, billViews(bills))
}

// loadBill fetches the bill at {id} and checks action against it.
func (h *ReturnHandler) loadBill(w http.ResponseWriter, r *http.Request, action gate.Action) (*models.ReturnBill, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	b, err := h.Returns.GetBill(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	if err := h.Gate.Authorize(r.Context(), action, resourceReturnBill, b); err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	return b, true
}

func (h *ReturnHandler) GetBill(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.loadBill(w, r, gate.ActionView); ok {
		httpx.JSON(w, http.StatusOK, billView{b, b.Total()})
	}
}

func (h *ReturnHandler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBill(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	var in services.ReturnInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	b, err := h.Returns.UpdateBill(r.Context(), b.ID, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, billView{b, b.Total()})
}

func (h *ReturnHandler) InitiateBill(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.loadBill(w, r, gate.ActionInitiate); ok {
		h.Lifecycle.initiate(w, r, billRef(b.ID))
	}
}

func (h *ReturnHandler) RevertBill(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.loadBill(w, r, gate.ActionInitiate); ok {
		h.Lifecycle.revert(w, r, billRef(b.ID))
	}
}

// PreviewBill accepts ?variant=original|duplicate; without it both pages are
// rendered.
func (h *ReturnHandler) PreviewBill(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.loadBill(w, r, gate.ActionView); ok {
		h.Lifecycle.preview(w, r, billRef(b.ID))
	}
}

func (h *ReturnHandler) SendBill(w http.ResponseWriter, r *http.Request) {
	if b, ok := h.loadBill(w, r, gate.ActionDispatch); ok {
		h.Lifecycle.send(w, r, billRef(b.ID))
	}
}

func (h *ReturnHandler) ExportBills(w http.ResponseWriter, r *http.Request) {
	f, err := documentFilter(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.Returns.ExportBills(r.Context(), &buf, f); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Attachment(w, xlsxType, "return-bills.xlsx", buf.Bytes())
}

// Adjustment returns {"adjustment": null} when none is recorded.
func (h *ReturnHandler) Adjustment(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBill(w, r, gate.ActionView)
	if !ok {
		return
	}
	adj, err := h.Returns.Adjustment(r.Context(), b.ID)
	respond(w, r, adjustmentView{adj}, err)
}

func (h *ReturnHandler) SaveAdjustment(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadBill(w, r, gate.ActionAdjust)
	if !ok {
		return
	}
	var in services.AdjustmentInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	adj, err := h.Returns.SaveAdjustment(r.Context(), currentUser(r), b.ID, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, adjustmentView{adj})
}

func (h *ReturnHandler) ListMemos(w http.ResponseWriter, r *http.Request) {
	f, err := documentFilter(r)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	list, err := h.Returns.ListMemos(r.Context(), f)
	respond(w, r, list, err)
}

func (h *ReturnHandler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	var in services.MemoInput
	if err := decode(r, &in); err != nil {
		httpx.Error(w, r, err)
		return
	}
	m, err := h.Returns.CreateMemo(r.Context(), currentUser(r), in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *ReturnHandler) loadMemo(w http.ResponseWriter, r *http.Request, action gate.Action) (*models.ReturnMemo, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	m, err := h.Returns.GetMemo(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	if err := h.Gate.Authorize(r.Context(), action, resourceReturnMemo, m); err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	return m, true
}

func (h *ReturnHandler) GetMemo(w http.ResponseWriter, r *http.Request) {
	if m, ok := h.loadMemo(w, r, gate.ActionView); ok {
		httpx.JSON(w, http.StatusOK, m)
	}
}

func (h *ReturnHandler) InitiateMemo(w http.ResponseWriter, r *http.Request) {
	if m, ok := h.loadMemo(w, r, gate.ActionInitiate); ok {
		h.Lifecycle.initiate(w, r, memoRef(m.ID))
	}
}

func (h *ReturnHandler) RevertMemo(w http.ResponseWriter, r *http.Request) {
	if m, ok := h.loadMemo(w, r, gate.ActionInitiate); ok {
		h.Lifecycle.revert(w, r, memoRef(m.ID))
	}
}

func (h *ReturnHandler) PreviewMemo(w http.ResponseWriter, r *http.Request) {
	if m, ok := h.loadMemo(w, r, gate.ActionView); ok {
		h.Lifecycle.preview(w, r, memoRef(m.ID))
	}
}

func (h *ReturnHandler) SendMemo(w http.ResponseWriter, r *http.Request) {
	if m, ok := h.loadMemo(w, r, gate.ActionDispatch); ok {
		h.Lifecycle.send(w, r, memoRef(m.ID))
	}
}
