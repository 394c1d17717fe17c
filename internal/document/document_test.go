package document

import (
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func drug(id, supplier uint, price string) conversion.Drug {
	return conversion.Drug{
		ID:            id,
		Code:          "D" + string(rune('A'+id)),
		Name:          "Drug",
		Strength:      "500mg",
		SupplierID:    supplier,
		SupplierName:  "Supplier",
		SupplierEmail: "orders@example.com",
		UnitPrice:     dec(price),
		Conversions: []conversion.Conversion{
			{ID: id * 10, Label: "Strip", UnitsPerPack: dec("10"), UnitType: "Tablet"},
		},
	}
}

func item(t *testing.T, dr conversion.Drug, qty string) *conversion.LineItem {
	t.Helper()
	li := conversion.NewLineItem(dr)
	if err := li.SetOrderQuantity(dec(qty)); err != nil {
		t.Fatalf("SetOrderQuantity: %v", err)
	}
	return li
}

func header(kind Kind, supplier uint) Header {
	return Header{
		Kind:             kind,
		Number:           "PR-2026-0001",
		IssuedAt:         time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		CounterpartyID:   supplier,
		CounterpartyName: "Supplier",
	}
}

func TestAssemble_EmptySelection(t *testing.T) {
	_, err := Assemble(header(KindPurchaseRequest, 1), nil)
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Reason != "at least one item required" {
		t.Errorf("Reason = %q", ve.Reason)
	}
}

func TestAssemble_TotalIsSumOfAmounts(t *testing.T) {
	tests := []struct {
		name   string
		prices []string
		qtys   []string
		want   string
	}{
		{"single line", []string{"12.50"}, []string{"3"}, "37.50"},
		{"two lines", []string{"12.50", "4.99"}, []string{"3", "2"}, "47.48"},
		{"rounded per line", []string{"0.335", "0.335"}, []string{"3", "3"}, "2.02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []*conversion.LineItem
			for i := range tt.prices {
				items = append(items, item(t, drug(uint(i+1), 1, tt.prices[i]), tt.qtys[i]))
			}
			doc, err := Assemble(header(KindPurchaseRequest, 1), items)
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			if !doc.Total.Equal(dec(tt.want)) {
				t.Errorf("Total = %s, want %s", doc.Total, tt.want)
			}
			sum := decimal.Zero
			for _, l := range doc.Lines {
				sum = sum.Add(l.Amount)
			}
			if !sum.Equal(doc.Total) {
				t.Errorf("sum of lines %s != total %s", sum, doc.Total)
			}
		})
	}
}

func TestAssemble_LineContent(t *testing.T) {
	li := item(t, drug(1, 1, "2.00"), "5")
	li.BatchNumber = "B42"
	doc, err := Assemble(header(KindPurchaseRequest, 1), []*conversion.LineItem{li})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	l := doc.Lines[0]
	if l.Seq != 1 || l.PackType != "Strip" || l.UnitType != "Tablet" {
		t.Errorf("unexpected line %+v", l)
	}
	if !l.UnitQuantity.Equal(dec("50")) || !l.Amount.Equal(dec("10")) {
		t.Errorf("UnitQuantity = %s, Amount = %s", l.UnitQuantity, l.Amount)
	}
	if got := l.Descriptor(); got != "B42 / 500mg" {
		t.Errorf("Descriptor = %q", got)
	}
	if cells := l.Cells(); len(cells) != len(Columns) {
		t.Errorf("Cells len = %d, want %d", len(cells), len(Columns))
	}
}

func TestAssemble_Rejections(t *testing.T) {
	noPack := item(t, drug(1, 1, "1"), "1")
	_ = noPack.SelectPackType(nil)
	zero := conversion.NewLineItem(drug(2, 1, "1"))
	foreign := item(t, drug(3, 2, "1"), "1")

	tests := []struct {
		name  string
		h     Header
		items []*conversion.LineItem
		field string
	}{
		{"missing pack type", header(KindPurchaseRequest, 1), []*conversion.LineItem{noPack}, "items[0].pack_type"},
		{"zero quantity", header(KindPurchaseRequest, 1), []*conversion.LineItem{zero}, "items[0].order_quantity"},
		{"supplier mismatch", header(KindReturnBill, 1), []*conversion.LineItem{foreign}, "items[0].supplier"},
		{"purchase without supplier", header(KindPurchaseRequest, 0), []*conversion.LineItem{zero}, "supplier"},
		{"unknown kind", header("invoice", 1), []*conversion.LineItem{zero}, "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.h, tt.items)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestAssemble_ZeroQuantityIsASubmissionError(t *testing.T) {
	li := item(t, drug(1, 1, "1"), "0")
	if !li.OrderQuantity.IsZero() {
		t.Fatalf("line item should accept quantity 0, got %s", li.OrderQuantity)
	}
	_, err := Assemble(header(KindPurchaseRequest, 1), []*conversion.LineItem{li})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "items[0].order_quantity" || ve.Reason != apperr.ReasonNotPositive {
		t.Errorf("got %s %s", ve.Field, ve.Reason)
	}
}

func TestAssemble_NoConversionsDrug(t *testing.T) {
	dr := drug(1, 1, "3")
	dr.Conversions = nil
	li := item(t, dr, "2")
	doc, err := Assemble(header(KindPurchaseRequest, 1), []*conversion.LineItem{li})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if doc.Lines[0].UnitQuantityAvailable {
		t.Error("expected unit quantity unavailable")
	}
	if got := doc.Lines[0].Cells()[6]; got != "-" {
		t.Errorf("unit qty cell = %q, want -", got)
	}
}

func TestAssembleBySupplier_Splits(t *testing.T) {
	a1 := item(t, drug(1, 7, "1"), "1")
	b1 := item(t, drug(2, 3, "2"), "1")
	a2 := item(t, drug(3, 7, "3"), "1")

	docs, err := AssembleBySupplier(header(KindReturnBill, 0), []*conversion.LineItem{a1, b1, a2})
	if err != nil {
		t.Fatalf("AssembleBySupplier: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].SupplierID() != 7 || docs[1].SupplierID() != 3 {
		t.Errorf("supplier order = %d, %d; want 7, 3", docs[0].SupplierID(), docs[1].SupplierID())
	}
	if len(docs[0].Lines) != 2 || !docs[0].Total.Equal(dec("4")) {
		t.Errorf("first document lines=%d total=%s", len(docs[0].Lines), docs[0].Total)
	}
	if docs[0].Header.CounterpartyEmail != "orders@example.com" {
		t.Errorf("counterparty email not copied from drug supplier")
	}
}

func TestAssembleBySupplier_PrefixedSupplier(t *testing.T) {
	a := item(t, drug(1, 7, "1"), "1")
	b := item(t, drug(2, 3, "1"), "1")
	if _, err := AssembleBySupplier(header(KindReturnMemo, 7), []*conversion.LineItem{a, b}); !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	docs, err := AssembleBySupplier(header(KindReturnMemo, 7), []*conversion.LineItem{a})
	if err != nil || len(docs) != 1 {
		t.Fatalf("got %d docs, err %v", len(docs), err)
	}
}

func TestVariants(t *testing.T) {
	doc, err := Assemble(header(KindReturnBill, 1), []*conversion.LineItem{item(t, drug(1, 1, "5"), "2")})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	vs := Variants(doc)
	if len(vs) != 2 {
		t.Fatalf("got %d variants, want 2", len(vs))
	}
	if vs[0].Doc != vs[1].Doc {
		t.Error("variants must share the same document")
	}
	if vs[0].Marker() != "ORIGINAL" || vs[1].Marker() != "DUPLICATE" {
		t.Errorf("markers = %s, %s", vs[0].Marker(), vs[1].Marker())
	}
	if v := VariantByName(doc, "duplicate"); !v.Duplicate {
		t.Error("VariantByName(duplicate) should be the duplicate")
	}

	pr, _ := Assemble(header(KindPurchaseRequest, 1), []*conversion.LineItem{item(t, drug(1, 1, "5"), "2")})
	if len(Variants(pr)) != 1 {
		t.Error("purchase requests render a single variant")
	}
}
