package handlers

import (
	"net/http"

	"github.com/diewo77/go-pharmacy/httpx"
	"github.com/diewo77/go-pharmacy/internal/services"
)

// CatalogHandler serves the read-only catalog.
type CatalogHandler struct {
	Catalog *services.CatalogService
}

func NewCatalogHandler(c *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{Catalog: c}
}

// respond writes v, or err when it is not nil.
func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.Categories(r.Context())
	respond(w, r, out, err)
}

func (h *CatalogHandler) Subcategories(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryID(r, "category_id")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	out, err := h.Catalog.Subcategories(r.Context(), categoryID)
	respond(w, r, out, err)
}

func (h *CatalogHandler) Brands(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.Brands(r.Context())
	respond(w, r, out, err)
}

func (h *CatalogHandler) Suppliers(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.Suppliers(r.Context())
	respond(w, r, out, err)
}

func (h *CatalogHandler) Supplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	out, err := h.Catalog.Supplier(r.Context(), id)
	respond(w, r, out, err)
}

// SupplierDrugs lists a supplier's drugs with their pack types, the pick
// list of a new document.
func (h *CatalogHandler) SupplierDrugs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if _, err := h.Catalog.Supplier(r.Context(), id); err != nil {
		httpx.Error(w, r, err)
		return
	}
	out, err := h.Catalog.Drugs(r.Context(), services.DrugFilter{SupplierID: id})
	respond(w, r, out, err)
}

func (h *CatalogHandler) Employees(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.Employees(r.Context())
	respond(w, r, out, err)
}

func (h *CatalogHandler) Drugs(w http.ResponseWriter, r *http.Request) {
	var f services.DrugFilter
	var err error
	for name, dst := range map[string]*uint{
		"supplier_id":    &f.SupplierID,
		"category_id":    &f.CategoryID,
		"subcategory_id": &f.SubcategoryID,
		"brand_id":       &f.BrandID,
	} {
		if *dst, err = queryID(r, name); err != nil {
			httpx.Error(w, r, err)
			return
		}
	}
	f.Query = r.URL.Query().Get("q")
	out, err := h.Catalog.Drugs(r.Context(), f)
	respond(w, r, out, err)
}

func (h *CatalogHandler) Drug(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	out, err := h.Catalog.Drug(r.Context(), id)
	respond(w, r, out, err)
}

func (h *CatalogHandler) Conversions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	out, err := h.Catalog.Conversions(r.Context(), id)
	respond(w, r, out, err)
}

// LowStock suggests line items for drugs at or below their reorder level.
func (h *CatalogHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	supplierID, err := queryID(r, "supplier_id")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	items, err := h.Catalog.LowStock(r.Context(), supplierID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lineViews(items))
}
