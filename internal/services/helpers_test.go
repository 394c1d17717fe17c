package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/diewo77/go-pharmacy/internal/db"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	catalog   *CatalogService
	purchases *PurchaseService
	returns   *ReturnService
	docs      *Documents

	wholesale, pharmaCo models.Supplier
	amox, pcm, syrup     models.Drug
	ibu                  models.Drug
	user                 models.User
	clerk                models.Employee
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.Connect("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), false)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	f := &fixture{db: gdb}
	f.wholesale = models.Supplier{Name: "Wholesale", Email: "orders@wholesale.test"}
	f.pharmaCo = models.Supplier{Name: "Pharma Co"}
	mustCreate(t, gdb, &f.wholesale)
	mustCreate(t, gdb, &f.pharmaCo)
	f.clerk = models.Employee{Name: "Dana Clerk"}
	mustCreate(t, gdb, &f.clerk)
	f.user = models.User{Email: "op@pharmacy.test", Password: "x", EmployeeID: &f.clerk.ID}
	mustCreate(t, gdb, &f.user)

	f.amox = models.Drug{
		Code: "AMX500", Name: "Amoxicillin", Form: "Capsule", Strength: "500mg",
		SupplierID: f.wholesale.ID, UnitPrice: d("2.50"),
		StockUnits: d("40"), ReorderLevel: d("100"),
		Conversions: []models.Conversion{
			{Label: "Strip", UnitsPerPack: d("10"), UnitType: "Capsule", Position: 0},
			{Label: "Box", UnitsPerPack: d("100"), UnitType: "Capsule", Position: 1},
		},
	}
	f.pcm = models.Drug{
		Code: "PCM500", Name: "Paracetamol", SupplierID: f.wholesale.ID, UnitPrice: d("1.20"),
		StockUnits: d("500"), ReorderLevel: d("200"),
		Conversions: []models.Conversion{{Label: "Strip", UnitsPerPack: d("12"), UnitType: "Tablet"}},
	}
	f.syrup = models.Drug{Code: "IBU-SYR", Name: "Ibuprofen Syrup", SupplierID: f.wholesale.ID, UnitPrice: d("4.75")}
	f.ibu = models.Drug{
		Code: "IBU200", Name: "Ibuprofen", SupplierID: f.pharmaCo.ID, UnitPrice: d("0.80"),
		Conversions: []models.Conversion{{Label: "Strip", UnitsPerPack: d("10"), UnitType: "Tablet"}},
	}
	for _, dr := range []*models.Drug{&f.amox, &f.pcm, &f.syrup, &f.ibu} {
		mustCreate(t, gdb, dr)
	}

	f.catalog = NewCatalogService(gdb)
	f.purchases = NewPurchaseService(gdb, f.catalog)
	f.purchases.now = func() time.Time { return fixedNow }
	f.returns = NewReturnService(gdb, f.catalog)
	f.returns.now = func() time.Time { return fixedNow }
	f.docs = NewDocuments(gdb, f.purchases, f.returns)
	return f
}

func mustCreate(t *testing.T, gdb *gorm.DB, v interface{}) {
	t.Helper()
	if err := gdb.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func line(drug models.Drug, qty string) LineInput {
	return LineInput{DrugID: drug.ID, Quantity: d(qty)}
}

func convID(drug models.Drug, label string) *uint {
	for _, c := range drug.Conversions {
		if c.Label == label {
			id := c.ID
			return &id
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// initiateAfterRead moves the row to initiated right after the first read of
// table, as a concurrent initiate committing between a service's check and
// its write would.
func initiateAfterRead(t *testing.T, gdb *gorm.DB, table string, id uint) {
	t.Helper()
	name := "test:initiate_after_read"
	fired := false
	err := gdb.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if fired || tx.Statement.Table != table {
			return
		}
		fired = true
		if err := gdb.Exec("UPDATE "+table+" SET status = ? WHERE id = ?", lifecycle.StatusInitiated, id).Error; err != nil {
			t.Errorf("initiate %s %d: %v", table, id, err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	t.Cleanup(func() { _ = gdb.Callback().Query().Remove(name) })
}
