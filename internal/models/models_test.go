package models

import (
	"fmt"
	"testing"

	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amoxicillin() *Drug {
	return &Drug{
		ID:         7,
		Code:       "AMX500",
		Name:       "Amoxicillin",
		Form:       "Capsule",
		Strength:   "500mg",
		Brand:      &Brand{Name: "Amoxil"},
		Supplier:   &Supplier{ID: 3, Name: "Wholesale", Email: "orders@wholesale.test"},
		SupplierID: 3,
		UnitPrice:  d("2.50"),
		Conversions: []Conversion{
			{ID: 2, DrugID: 7, Label: "Box", UnitsPerPack: d("100"), UnitType: "Capsule", Position: 1},
			{ID: 1, DrugID: 7, Label: "Strip", UnitsPerPack: d("10"), UnitType: "Capsule", Position: 0},
		},
	}
}

func TestDrug_Engine(t *testing.T) {
	got := amoxicillin().Engine()
	if got.Brand != "Amoxil" || got.SupplierEmail != "orders@wholesale.test" {
		t.Errorf("Engine() = %+v", got)
	}
	if len(got.Conversions) != 2 || got.Conversions[0].Label != "Strip" {
		t.Errorf("conversions not ordered by position: %+v", got.Conversions)
	}
}

func TestDrug_LowStock(t *testing.T) {
	tests := []struct {
		name    string
		stock   string
		reorder string
		want    bool
	}{
		{"below", "5", "10", true},
		{"equal", "10", "10", true},
		{"above", "11", "10", false},
		{"no reorder level", "0", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dr := &Drug{StockUnits: d(tt.stock), ReorderLevel: d(tt.reorder)}
			if got := dr.LowStock(); got != tt.want {
				t.Errorf("LowStock() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLine_RoundTrip(t *testing.T) {
	drug := amoxicillin().Engine()
	id := uuid.New()
	conv := uint(2)
	stored := Line{LineID: id, DrugID: 7, ConversionID: &conv, Quantity: d("3"), UnitPrice: d("2.50"), BatchNumber: "B1"}

	li, err := stored.LineItem(drug)
	if err != nil {
		t.Fatalf("LineItem: %v", err)
	}
	if li.ID != id {
		t.Errorf("ID = %v, want %v", li.ID, id)
	}
	if !li.OrderUnitQuantity.Equal(d("300")) {
		t.Errorf("OrderUnitQuantity = %s, want 300", li.OrderUnitQuantity)
	}

	back := LineFrom(li, 4)
	if back.ConversionID == nil || *back.ConversionID != 2 || back.Position != 4 {
		t.Errorf("LineFrom = %+v", back)
	}
	if !back.UnitQuantity.Equal(d("300")) || !back.Amount().Equal(d("7.50")) {
		t.Errorf("UnitQuantity = %s, Amount = %s", back.UnitQuantity, back.Amount())
	}
}

func TestLine_UnknownConversion(t *testing.T) {
	conv := uint(99)
	if _, err := (Line{ConversionID: &conv, Quantity: d("1")}).LineItem(amoxicillin().Engine()); err == nil {
		t.Error("expected error for a conversion of another drug")
	}
}

func TestLine_FrozenIgnoresCatalogChanges(t *testing.T) {
	li, err := (Line{LineID: uuid.New(), ConversionID: ptrUint(2), Quantity: d("3"), UnitPrice: d("2.50")}).LineItem(amoxicillin().Engine())
	if err != nil {
		t.Fatalf("LineItem: %v", err)
	}
	stored := LineFrom(li, 0)
	if stored.PackLabel != "Box" || !stored.UnitsPerPack.Equal(d("100")) {
		t.Fatalf("pack snapshot not saved: %+v", stored)
	}

	changed := amoxicillin()
	changed.Conversions = []Conversion{{ID: 1, DrugID: 7, Label: "Strip", UnitsPerPack: d("12"), UnitType: "Capsule"}}

	tests := []struct {
		name string
		drug *Drug
	}{
		{"conversion removed", changed},
		{"no conversions left", &Drug{ID: 7, Code: "AMX500", SupplierID: 3, UnitPrice: d("9.99")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stored.Frozen(tt.drug.Engine())
			if err != nil {
				t.Fatalf("Frozen: %v", err)
			}
			if got.ID != li.ID || got.PackType == nil || got.PackType.Label != "Box" {
				t.Errorf("pack type = %+v", got.PackType)
			}
			if !got.OrderUnitQuantity.Equal(d("300")) || !got.UnitPrice.Equal(d("2.50")) {
				t.Errorf("unit quantity = %s, price = %s", got.OrderUnitQuantity, got.UnitPrice)
			}
		})
	}

	if _, err := stored.LineItem(changed.Engine()); err == nil {
		t.Error("editable rebuild should fail once the conversion is gone")
	}
}

func TestLine_FrozenWithoutPack(t *testing.T) {
	dr := amoxicillin()
	stored := Line{LineID: uuid.New(), Quantity: d("2"), UnitPrice: d("1")}
	got, err := stored.Frozen(dr.Engine())
	if err != nil {
		t.Fatalf("Frozen: %v", err)
	}
	if got.PackType != nil || got.UnitQuantityAvailable() {
		t.Errorf("a row saved without a pack type stays without one: %+v", got)
	}
}

func ptrUint(v uint) *uint { return &v }

func TestTracked(t *testing.T) {
	var tr Tracked
	if !tr.CanEdit() || tr.LifecycleStatus() != lifecycle.StatusNotInitiated {
		t.Errorf("zero value should be an editable draft")
	}
	tr.Status = lifecycle.StatusInitiated
	if tr.CanEdit() {
		t.Error("initiated documents are not editable")
	}
}

func TestPurchaseRequest_Total(t *testing.T) {
	pr := &PurchaseRequest{Items: []PurchaseRequestItem{
		{Line: Line{Quantity: d("3"), UnitPrice: d("2.50")}},
		{Line: Line{Quantity: d("0.333"), UnitPrice: d("1.00")}},
	}}
	if got := pr.Total(); !got.Equal(d("7.83")) {
		t.Errorf("Total() = %s, want 7.83", got)
	}
}

func TestPermission_Code(t *testing.T) {
	p := Permission{ResourceType: "return_bill", Action: "dispatch"}
	if got := p.Code(); got != "return_bill:dispatch" {
		t.Errorf("Code() = %q", got)
	}
	prof := &Profile{Permissions: []Permission{p, {ResourceType: "drug", Action: "read"}}}
	if got := prof.PermissionCodes(); len(got) != 2 || got[1] != "drug:read" {
		t.Errorf("PermissionCodes() = %v", got)
	}
}

func TestGenerateNumber(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(&PurchaseRequest{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	got, err := GenerateNumber(db, &PurchaseRequest{}, PrefixPurchaseRequest, 2026)
	if err != nil {
		t.Fatalf("GenerateNumber: %v", err)
	}
	if got != "PR-2026-0001" {
		t.Errorf("first number = %q", got)
	}

	for _, n := range []string{"PR-2026-0001", "PR-2026-0009", "PR-2025-0042"} {
		if err := db.Create(&PurchaseRequest{Number: n, UserID: 1, SupplierID: 1}).Error; err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	// Deleted rows keep their number.
	if err := db.Where("number = ?", "PR-2026-0009").Delete(&PurchaseRequest{}).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err = GenerateNumber(db, &PurchaseRequest{}, PrefixPurchaseRequest, 2026)
	if err != nil {
		t.Fatalf("GenerateNumber: %v", err)
	}
	if got != "PR-2026-0010" {
		t.Errorf("next number = %q, want PR-2026-0010", got)
	}
}
