package main

import (
	"net/http"

	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/gate"
	"github.com/diewo77/go-pharmacy/httpx"
	"github.com/diewo77/go-pharmacy/internal/logging"
	"github.com/diewo77/go-pharmacy/internal/metrics"
	"github.com/diewo77/go-pharmacy/internal/policy"
)

const (
	resCatalog  = "catalog"
	resPurchase = "purchase_request"
	resBill     = "return_bill"
	resMemo     = "return_memo"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	routerCfg *policy.RouterConfig
	metrics   bool
}

// NewApp creates a new application with all routes configured.
func NewApp(routerCfg *policy.RouterConfig, withMetrics bool) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
		metrics:   withMetrics,
	}
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logging.Middleware(auth.Middleware(a.mux)).ServeHTTP(w, r)
}

func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	ah := a.routerCfg.Auth

	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.metrics {
		a.mux.Handle("GET /metrics", metrics.Handler())
	}
	a.mux.HandleFunc("POST /api/auth/login", ah.Login)
	a.mux.HandleFunc("POST /api/auth/logout", ah.Logout)
	a.mux.HandleFunc("POST /api/auth/refresh", ah.Refresh)
	a.mux.Handle("GET /api/auth/me", auth.RequireAuth(http.HandlerFunc(ah.Me)))
	a.mux.Handle("POST /api/auth/reauth", auth.RequireAuth(http.HandlerFunc(ah.Reauth)))

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog (read only)
	// ─────────────────────────────────────────────────────────────────────────
	ch := a.routerCfg.Catalog
	a.route("GET /api/categories", resCatalog, gate.ActionList, ch.Categories)
	a.route("GET /api/subcategories", resCatalog, gate.ActionList, ch.Subcategories)
	a.route("GET /api/brands", resCatalog, gate.ActionList, ch.Brands)
	a.route("GET /api/employees", resCatalog, gate.ActionList, ch.Employees)
	a.route("GET /api/suppliers", resCatalog, gate.ActionList, ch.Suppliers)
	a.route("GET /api/suppliers/{id}", resCatalog, gate.ActionView, ch.Supplier)
	a.route("GET /api/suppliers/{id}/drugs", resCatalog, gate.ActionList, ch.SupplierDrugs)
	a.route("GET /api/drugs", resCatalog, gate.ActionList, ch.Drugs)
	a.route("GET /api/drugs/low-stock", resCatalog, gate.ActionList, ch.LowStock)
	a.route("GET /api/drugs/{id}", resCatalog, gate.ActionView, ch.Drug)
	a.route("GET /api/drugs/{id}/conversions", resCatalog, gate.ActionView, ch.Conversions)

	// ─────────────────────────────────────────────────────────────────────────
	// Purchase requests
	// ─────────────────────────────────────────────────────────────────────────
	ph := a.routerCfg.Purchases
	a.route("GET /api/purchase-requests", resPurchase, gate.ActionList, ph.List)
	a.route("POST /api/purchase-requests", resPurchase, gate.ActionCreate, ph.Create)
	a.route("GET /api/purchase-requests/next-number", resPurchase, gate.ActionCreate, ph.NextNumber)
	a.route("POST /api/purchase-requests/import", resPurchase, gate.ActionCreate, ph.Import)
	a.route("GET /api/purchase-requests/import/template", resPurchase, gate.ActionCreate, ph.ImportTemplate)
	a.route("GET /api/purchase-requests/export", resPurchase, gate.ActionExport, ph.Export)
	a.route("GET /api/purchase-requests/{id}", resPurchase, gate.ActionView, ph.Get)
	a.route("PUT /api/purchase-requests/{id}", resPurchase, gate.ActionUpdate, ph.Update)
	a.route("DELETE /api/purchase-requests/{id}", resPurchase, gate.ActionDelete, ph.Delete)
	a.route("POST /api/purchase-requests/{id}/initiate", resPurchase, gate.ActionInitiate, ph.Initiate)
	a.route("POST /api/purchase-requests/{id}/revert", resPurchase, gate.ActionInitiate, ph.Revert)
	a.route("GET /api/purchase-requests/{id}/preview", resPurchase, gate.ActionView, ph.Preview)
	a.route("POST /api/purchase-requests/{id}/send", resPurchase, gate.ActionDispatch, ph.Send)

	// ─────────────────────────────────────────────────────────────────────────
	// Returns
	// ─────────────────────────────────────────────────────────────────────────
	rh := a.routerCfg.Returns
	a.route("GET /api/return-bills", resBill, gate.ActionList, rh.ListBills)
	a.route("POST /api/return-bills", resBill, gate.ActionCreate, rh.CreateBills)
	a.route("GET /api/return-bills/next-number", resBill, gate.ActionCreate, rh.NextBillNumber)
	a.route("GET /api/return-bills/export", resBill, gate.ActionExport, rh.ExportBills)
	a.route("GET /api/return-bills/{id}", resBill, gate.ActionView, rh.GetBill)
	a.route("PUT /api/return-bills/{id}", resBill, gate.ActionUpdate, rh.UpdateBill)
	a.route("POST /api/return-bills/{id}/initiate", resBill, gate.ActionInitiate, rh.InitiateBill)
	a.route("POST /api/return-bills/{id}/revert", resBill, gate.ActionInitiate, rh.RevertBill)
	a.route("GET /api/return-bills/{id}/preview", resBill, gate.ActionView, rh.PreviewBill)
	a.route("POST /api/return-bills/{id}/send", resBill, gate.ActionDispatch, rh.SendBill)
	a.route("GET /api/return-bills/{id}/adjustments", resBill, gate.ActionView, rh.Adjustment)
	a.route("POST /api/return-bills/{id}/adjustments", resBill, gate.ActionAdjust, rh.SaveAdjustment)

	a.route("GET /api/return-memos", resMemo, gate.ActionList, rh.ListMemos)
	a.route("POST /api/return-memos", resMemo, gate.ActionCreate, rh.CreateMemo)
	a.route("GET /api/return-memos/{id}", resMemo, gate.ActionView, rh.GetMemo)
	a.route("POST /api/return-memos/{id}/initiate", resMemo, gate.ActionInitiate, rh.InitiateMemo)
	a.route("POST /api/return-memos/{id}/revert", resMemo, gate.ActionInitiate, rh.RevertMemo)
	a.route("GET /api/return-memos/{id}/preview", resMemo, gate.ActionView, rh.PreviewMemo)
	a.route("POST /api/return-memos/{id}/send", resMemo, gate.ActionDispatch, rh.SendMemo)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes (require *:*)
	// ─────────────────────────────────────────────────────────────────────────
	adm := a.routerCfg.Admin
	a.mux.Handle("GET /api/admin/profiles", a.requireAdmin(http.HandlerFunc(adm.Profiles)))
	a.mux.Handle("PUT /api/admin/profiles/{id}/permissions", a.requireAdmin(http.HandlerFunc(adm.SetProfilePermissions)))
	a.mux.Handle("GET /api/admin/permissions", a.requireAdmin(http.HandlerFunc(adm.Permissions)))
	a.mux.Handle("GET /api/admin/users", a.requireAdmin(http.HandlerFunc(adm.Users)))
	a.mux.Handle("PUT /api/admin/users/{id}/profile", a.requireAdmin(http.HandlerFunc(adm.AssignProfile)))
}

// route registers a handler behind a session and a profile permission.
func (a *App) route(pattern, resourceType string, action gate.Action, h http.HandlerFunc) {
	a.mux.Handle(pattern, auth.RequireAuth(a.requirePermission(resourceType, action)(h)))
}

func (a *App) requireAdmin(next http.Handler) http.Handler {
	return auth.RequireAuth(a.routerCfg.AuthGate.RequireAdmin()(next))
}

func (a *App) requirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return a.routerCfg.AuthGate.RequirePermission(resourceType, action)
}
