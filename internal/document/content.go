package document

import "strings"

// Columns is the line-item table of every rendered document, in order.
var Columns = []string{
	"Name",
	"Batch / Strength",
	"Pack Type",
	"Units/Pack",
	"Qty",
	"Unit Type",
	"Unit Qty",
	"Price",
	"Amount",
}

// Variant is one rendering of a document. Original and duplicate share Doc.
type Variant struct {
	Doc       *Document
	Duplicate bool
}

func (v Variant) Marker() string {
	if v.Duplicate {
		return "DUPLICATE"
	}
	return "ORIGINAL"
}

// Variants lists the renderings of doc: return bills get an original and a
// duplicate copy, everything else a single unmarked rendering.
func Variants(doc *Document) []Variant {
	if doc.Header.Kind == KindReturnBill {
		return []Variant{{Doc: doc}, {Doc: doc, Duplicate: true}}
	}
	return []Variant{{Doc: doc}}
}

// VariantByName picks "original" or "duplicate"; anything else is the original.
func VariantByName(doc *Document, name string) Variant {
	if strings.EqualFold(name, "duplicate") && doc.Header.Kind == KindReturnBill {
		return Variant{Doc: doc, Duplicate: true}
	}
	return Variant{Doc: doc}
}

// Descriptor joins the batch and strength descriptors shown in one column.
func (l Line) Descriptor() string {
	parts := make([]string, 0, 2)
	if l.BatchNumber != "" {
		parts = append(parts, l.BatchNumber)
	}
	if l.Strength != "" {
		parts = append(parts, l.Strength)
	}
	return strings.Join(parts, " / ")
}

// Cells renders the line as table cells matching Columns.
func (l Line) Cells() []string {
	unitsPerPack, unitQty := "-", "-"
	if l.UnitQuantityAvailable && l.PackType != "" {
		unitsPerPack = l.UnitsPerPack.String()
		unitQty = l.UnitQuantity.StringFixed(3)
	}
	name := l.Name
	if l.Brand != "" {
		name += " (" + l.Brand + ")"
	}
	return []string{
		name,
		l.Descriptor(),
		l.PackType,
		unitsPerPack,
		l.Quantity.String(),
		l.UnitType,
		unitQty,
		l.UnitPrice.StringFixed(2),
		l.Amount.StringFixed(2),
	}
}
