package services

import (
	"context"
	"testing"

	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/diewo77/go-pharmacy/internal/models"
)

func TestCatalogService_Drugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name   string
		filter DrugFilter
		want   int
	}{
		{"all", DrugFilter{}, 4},
		{"by supplier", DrugFilter{SupplierID: f.pharmaCo.ID}, 1},
		{"query on code", DrugFilter{Query: "amx"}, 1},
		{"query on name", DrugFilter{Query: "ibuprofen"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.catalog.Drugs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Drugs: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d drugs, want %d", len(got), tt.want)
			}
		})
	}
}

func TestCatalogService_Table(t *testing.T) {
	f := newFixture(t)
	table, drugs, err := f.catalog.Table(context.Background(), []uint{f.amox.ID, f.syrup.ID, 999})
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(drugs) != 2 {
		t.Errorf("drugs = %d, want 2", len(drugs))
	}
	if drugs[f.amox.ID].SupplierEmail != "orders@wholesale.test" {
		t.Errorf("supplier not carried: %+v", drugs[f.amox.ID])
	}
	factor, err := table.Factor(f.amox.ID, *convID(f.amox, "Box"))
	if err != nil || !factor.Equal(d("100")) {
		t.Errorf("Factor = %s, %v", factor, err)
	}
	if len(table.Lookup(f.syrup.ID)) != 0 {
		t.Error("syrup has no conversions")
	}
}

func TestCatalogService_LowStock(t *testing.T) {
	f := newFixture(t)
	items, err := f.catalog.LowStock(context.Background(), 0)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(items))
	}
	// 60 capsules short, strips of 10.
	if items[0].Drug.Code != "AMX500" || !items[0].OrderQuantity.Equal(d("6")) || !items[0].OrderUnitQuantity.Equal(d("60")) {
		t.Errorf("suggestion = %s × %s", items[0].Drug.Code, items[0].OrderQuantity)
	}
}

func TestSuggestedPacks(t *testing.T) {
	strip := &conversion.Conversion{UnitsPerPack: d("12")}
	tests := []struct {
		name           string
		stock, reorder string
		pack           *conversion.Conversion
		want           string
	}{
		{"rounds up", "100", "200", strip, "9"},
		{"exact", "0", "120", strip, "10"},
		{"at level", "200", "200", strip, "1"},
		{"no pack type", "2.5", "10", nil, "8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dr := &models.Drug{StockUnits: d(tt.stock), ReorderLevel: d(tt.reorder)}
			if got := SuggestedPacks(dr, tt.pack); !got.Equal(d(tt.want)) {
				t.Errorf("SuggestedPacks = %s, want %s", got, tt.want)
			}
		})
	}
}
