package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/diewo77/go-pharmacy/auth"
	"github.com/diewo77/go-pharmacy/internal/db"
	"github.com/diewo77/go-pharmacy/internal/document/pdf"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/diewo77/go-pharmacy/internal/policy"
	"github.com/diewo77/go-pharmacy/internal/storage"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []lifecycle.Message
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg lifecycle.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return nil
}

type e2e struct {
	t    *testing.T
	db   *gorm.DB
	app  *App
	mail *recordingDispatcher
}

const adminEmail, adminPassword = "admin@pharmacy.test", "s3cret"

func setupE2E(t *testing.T) *e2e {
	t.Helper()
	gdb, err := db.Connect("sqlite", fmt.Sprintf("file:e2e_%s?mode=memory&cache=shared", t.Name()), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(gdb, db.SeedOptions{AdminEmail: adminEmail, AdminPassword: adminPassword, DemoCatalog: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	auth.SetSecret("e2e-secret")
	mail := &recordingDispatcher{}
	cfg := policy.NewRouterConfig(policy.Deps{
		DB:         gdb,
		Issuer:     auth.NewIssuer("e2e-jwt", 0, 0),
		Renderer:   pdf.New("E2E Pharmacy"),
		Dispatcher: mail,
		Artifacts:  storage.NewMemory(),
	})
	return &e2e{t: t, db: gdb, app: NewApp(cfg, false), mail: mail}
}

// addUser creates an operator with the named seeded profile.
func (e *e2e) addUser(email, profile string) {
	e.t.Helper()
	var p models.Profile
	if err := e.db.Where("name = ?", profile).First(&p).Error; err != nil {
		e.t.Fatalf("profile %s: %v", profile, err)
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err := e.db.Create(&models.User{Email: email, Password: string(hash), ProfileID: &p.ID}).Error; err != nil {
		e.t.Fatalf("user: %v", err)
	}
}

// login returns the session cookie issued by the login endpoint.
func (e *e2e) login(email, password string) *http.Cookie {
	e.t.Helper()
	rr := e.do(nil, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, nil)
	if rr.Code != http.StatusOK {
		e.t.Fatalf("login %s: %d %s", email, rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	e.t.Fatalf("no session cookie")
	return nil
}

func (e *e2e) do(sess *http.Cookie, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if sess != nil {
		req.AddCookie(sess)
	}
	rr := httptest.NewRecorder()
	e.app.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
}

func (e *e2e) drug(code string) models.Drug {
	e.t.Helper()
	var d models.Drug
	if err := e.db.Where("code = ?", code).First(&d).Error; err != nil {
		e.t.Fatalf("drug %s: %v", code, err)
	}
	return d
}

func (e *e2e) createPurchase(sess *http.Cookie) uint {
	e.t.Helper()
	amox, syrup := e.drug("AMX500"), e.drug("IBU-SYR")
	rr := e.do(sess, http.MethodPost, "/api/purchase-requests", map[string]any{
		"supplier_id": amox.SupplierID,
		"items": []map[string]any{
			{"drug_id": amox.ID, "quantity": "2"},
			{"drug_id": syrup.ID, "quantity": "1"},
		},
	}, nil)
	if rr.Code != http.StatusCreated {
		e.t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var pr struct {
		ID     uint   `json:"id"`
		Number string `json:"number"`
		Status string `json:"status"`
	}
	decodeBody(e.t, rr, &pr)
	if pr.Status != string(lifecycle.StatusNotInitiated) {
		e.t.Fatalf("new request status = %q", pr.Status)
	}
	return pr.ID
}

func TestPurchaseRequestFlowE2E(t *testing.T) {
	e := setupE2E(t)
	sess := e.login(adminEmail, adminPassword)
	id := e.createPurchase(sess)
	path := fmt.Sprintf("/api/purchase-requests/%d", id)

	rr := e.do(sess, http.MethodGet, path, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rr.Code, rr.Body.String())
	}
	var got struct {
		LineItems []struct {
			OrderUnitQuantity *string `json:"order_unit_quantity"`
			PackType          *struct {
				Label string `json:"label"`
			} `json:"pack_type"`
		} `json:"line_items"`
	}
	decodeBody(t, rr, &got)
	if len(got.LineItems) != 2 {
		t.Fatalf("line items = %d", len(got.LineItems))
	}
	if q := got.LineItems[0].OrderUnitQuantity; q == nil || *q != "20" {
		t.Errorf("strip line unit quantity = %v, want 20", q)
	}
	if got.LineItems[1].OrderUnitQuantity != nil || got.LineItems[1].PackType != nil {
		t.Errorf("drug without pack types should have null unit quantity and pack type")
	}

	if rr := e.do(sess, http.MethodGet, path+"/preview", nil, nil); rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("preview: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if rr := e.do(sess, http.MethodPost, path+"/send", map[string]string{"password": adminPassword}, nil); rr.Code != http.StatusConflict {
		t.Fatalf("send before initiate: %d %s", rr.Code, rr.Body.String())
	}

	if rr := e.do(sess, http.MethodPost, path+"/initiate", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("initiate: %d %s", rr.Code, rr.Body.String())
	}
	if rr := e.do(sess, http.MethodPut, path, map[string]any{"supplier_id": e.drug("AMX500").SupplierID, "items": []any{}}, nil); rr.Code != http.StatusConflict {
		t.Errorf("edit after initiate: %d %s", rr.Code, rr.Body.String())
	}

	rr = e.do(sess, http.MethodPost, path+"/send", map[string]string{"password": "wrong"}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("send with wrong password: %d %s", rr.Code, rr.Body.String())
	}
	if len(e.mail.sent) != 0 {
		t.Fatalf("nothing should be dispatched on failed re-authentication")
	}

	rr = e.do(sess, http.MethodPost, path+"/send", map[string]string{"password": adminPassword}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("send: %d %s", rr.Code, rr.Body.String())
	}
	var sent struct {
		Status    string `json:"status"`
		Recipient string `json:"recipient"`
	}
	decodeBody(t, rr, &sent)
	if sent.Status != string(lifecycle.StatusSent) || sent.Recipient != "orders@central-wholesale.example" {
		t.Errorf("send response = %+v", sent)
	}
	if len(e.mail.sent) != 1 || len(e.mail.sent[0].Artifact) == 0 {
		t.Fatalf("dispatched %d messages", len(e.mail.sent))
	}

	if rr := e.do(sess, http.MethodPost, path+"/revert", nil, nil); rr.Code != http.StatusConflict {
		t.Errorf("revert after send: %d", rr.Code)
	}
}

func TestReauthTokenSendE2E(t *testing.T) {
	e := setupE2E(t)
	sess := e.login(adminEmail, adminPassword)
	id := e.createPurchase(sess)
	path := fmt.Sprintf("/api/purchase-requests/%d", id)
	if rr := e.do(sess, http.MethodPost, path+"/initiate", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("initiate: %d", rr.Code)
	}

	rr := e.do(sess, http.MethodPost, "/api/auth/reauth", map[string]string{
		"password": adminPassword,
		"document": fmt.Sprintf("purchase_request:%d", id),
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reauth: %d %s", rr.Code, rr.Body.String())
	}
	var pair auth.TokenPair
	decodeBody(t, rr, &pair)

	bearer := http.Header{"Authorization": {"Bearer " + pair.AccessToken}}
	if rr := e.do(sess, http.MethodPost, path+"/send", nil, bearer); rr.Code != http.StatusOK {
		t.Fatalf("send with token: %d %s", rr.Code, rr.Body.String())
	}

	rr = e.do(nil, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rr.Code, rr.Body.String())
	}
	rr = e.do(nil, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": pair.RefreshToken}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("second refresh with same token: %d", rr.Code)
	}
}

func TestReauthRejectsE2E(t *testing.T) {
	e := setupE2E(t)
	sess := e.login(adminEmail, adminPassword)
	id := e.createPurchase(sess)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"password": "nope", "document": fmt.Sprintf("purchase_request:%d", id)}, http.StatusUnauthorized},
		{"malformed document", map[string]string{"password": adminPassword, "document": "purchase_request"}, http.StatusBadRequest},
		{"missing document", map[string]string{"password": adminPassword, "document": "purchase_request:999"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := e.do(sess, http.MethodPost, "/api/auth/reauth", tt.body, nil); rr.Code != tt.want {
				t.Errorf("got %d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestPermissionsE2E(t *testing.T) {
	e := setupE2E(t)
	e.addUser("clerk@pharmacy.test", "clerk")
	e.addUser("viewer@pharmacy.test", "viewer")
	admin := e.login(adminEmail, adminPassword)
	clerk := e.login("clerk@pharmacy.test", "pw")
	viewer := e.login("viewer@pharmacy.test", "pw")
	id := e.createPurchase(admin)
	path := fmt.Sprintf("/api/purchase-requests/%d", id)

	tests := []struct {
		name   string
		sess   *http.Cookie
		method string
		path   string
		body   any
		want   int
	}{
		{"anonymous list", nil, http.MethodGet, "/api/purchase-requests", nil, http.StatusUnauthorized},
		{"viewer list", viewer, http.MethodGet, "/api/purchase-requests", nil, http.StatusOK},
		{"viewer create", viewer, http.MethodPost, "/api/purchase-requests", map[string]any{}, http.StatusForbidden},
		{"clerk initiates", clerk, http.MethodPost, path + "/initiate", nil, http.StatusOK},
		{"clerk cannot send", clerk, http.MethodPost, path + "/send", map[string]string{"password": "pw"}, http.StatusForbidden},
		{"clerk cannot edit admin's request", clerk, http.MethodPut, path, map[string]any{}, http.StatusForbidden},
		{"clerk admin area", clerk, http.MethodGet, "/api/admin/profiles", nil, http.StatusForbidden},
		{"admin area", admin, http.MethodGet, "/api/admin/profiles", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := e.do(tt.sess, tt.method, tt.path, tt.body, nil); rr.Code != tt.want {
				t.Errorf("got %d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestValidationE2E(t *testing.T) {
	e := setupE2E(t)
	sess := e.login(adminEmail, adminPassword)
	amox := e.drug("AMX500")

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"no items", map[string]any{"supplier_id": amox.SupplierID, "items": []any{}}, "items"},
		{"negative quantity", map[string]any{"supplier_id": amox.SupplierID, "items": []map[string]any{{"drug_id": amox.ID, "quantity": "-1"}}}, "items[0].order_quantity"},
		{"unknown field", map[string]any{"supplier": 1}, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(sess, http.MethodPost, "/api/purchase-requests", tt.body, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d body=%s", rr.Code, rr.Body.String())
			}
			var body struct {
				Error   string `json:"error"`
				Details struct {
					Field string `json:"field"`
				} `json:"details"`
			}
			decodeBody(t, rr, &body)
			if body.Error != "validation_error" || body.Details.Field != tt.field {
				t.Errorf("body = %+v, want field %q", body, tt.field)
			}
		})
	}
}

func TestReturnBillAdjustmentE2E(t *testing.T) {
	e := setupE2E(t)
	sess := e.login(adminEmail, adminPassword)
	amox := e.drug("AMX500")

	rr := e.do(sess, http.MethodPost, "/api/return-bills", map[string]any{
		"supplier_id": amox.SupplierID,
		"reason":      "expired",
		"items":       []map[string]any{{"drug_id": amox.ID, "quantity": "1", "batch_number": "B-1"}},
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create bill: %d %s", rr.Code, rr.Body.String())
	}
	var bills []struct {
		ID    uint   `json:"id"`
		Total string `json:"total"`
	}
	decodeBody(t, rr, &bills)
	if len(bills) != 1 {
		t.Fatalf("bills = %d", len(bills))
	}
	path := fmt.Sprintf("/api/return-bills/%d", bills[0].ID)

	rr = e.do(sess, http.MethodGet, path+"/adjustments", nil, nil)
	if rr.Code != http.StatusOK || rr.Body.String() != `{"adjustment":null}` {
		t.Fatalf("empty adjustment: %d %q", rr.Code, rr.Body.String())
	}

	adj := map[string]any{
		"adjustment_date":      "2026-03-20T00:00:00Z",
		"purchase_bill_number": "PB-77",
		"adjustment_amount":    "0",
		"status":               "partial",
	}
	if rr := e.do(sess, http.MethodPost, path+"/adjustments", adj, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("adjust unsent bill: %d %s", rr.Code, rr.Body.String())
	}

	if rr := e.do(sess, http.MethodGet, path+"/preview?variant=duplicate", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("duplicate preview: %d", rr.Code)
	}
	if rr := e.do(sess, http.MethodPost, path+"/initiate", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("initiate: %d", rr.Code)
	}
	if rr := e.do(sess, http.MethodPost, path+"/send", map[string]string{"password": adminPassword}, nil); rr.Code != http.StatusOK {
		t.Fatalf("send: %d %s", rr.Code, rr.Body.String())
	}

	if rr := e.do(sess, http.MethodPost, path+"/adjustments", adj, nil); rr.Code != http.StatusOK {
		t.Fatalf("adjust: %d %s", rr.Code, rr.Body.String())
	}
	adj["adjustment_amount"] = "100000"
	rr = e.do(sess, http.MethodPost, path+"/adjustments", adj, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("out of range adjustment: %d %s", rr.Code, rr.Body.String())
	}
}

func TestLowStockE2E(t *testing.T) {
	e := setupE2E(t)
	sess := e.login(adminEmail, adminPassword)
	rr := e.do(sess, http.MethodGet, "/api/drugs/low-stock", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("low stock: %d %s", rr.Code, rr.Body.String())
	}
	var lines []struct {
		Drug struct {
			Code string `json:"code"`
		} `json:"drug"`
		OrderQuantity string `json:"order_quantity"`
	}
	decodeBody(t, rr, &lines)
	// Only AMX500 is under its reorder level: (100-40)/10 = 6 strips.
	if len(lines) != 1 || lines[0].OrderQuantity != "6" {
		t.Fatalf("lines = %+v", lines)
	}
}
