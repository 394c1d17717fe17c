// Package document assembles selected line items and header fields into a
// renderable, transmittable document. Assembly is pure: amounts and totals are
// computed once here and every rendering variant reads the same *Document.
package document

import (
	"fmt"
	"time"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind parameterizes assembly, rendering and the lifecycle.
type Kind string

const (
	KindPurchaseRequest Kind = "purchase_request"
	KindReturnBill      Kind = "return_bill"
	KindReturnMemo      Kind = "return_memo"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPurchaseRequest, KindReturnBill, KindReturnMemo:
		return true
	}
	return false
}

// IsReturn reports whether documents of this kind may be split by supplier.
func (k Kind) IsReturn() bool {
	return k == KindReturnBill || k == KindReturnMemo
}

func (k Kind) Title() string {
	switch k {
	case KindPurchaseRequest:
		return "Purchase Order"
	case KindReturnBill:
		return "Return Bill"
	case KindReturnMemo:
		return "Return Memo"
	}
	return string(k)
}

// Header holds the non-line fields of a document. A non-zero CounterpartyID
// pre-fixes the supplier.
type Header struct {
	Kind              Kind      `json:"kind"`
	DocumentID        uint      `json:"document_id"`
	Number            string    `json:"number"`
	IssuedAt          time.Time `json:"issued_at"`
	CounterpartyID    uint      `json:"counterparty_id"`
	CounterpartyName  string    `json:"counterparty_name"`
	CounterpartyEmail string    `json:"counterparty_email,omitempty"`
	Requester         string    `json:"requester,omitempty"`
}

func (h Header) Date() string { return h.IssuedAt.Format("2006-01-02") }
func (h Header) Time() string { return h.IssuedAt.Format("15:04") }

// Line is one row of the rendered table.
type Line struct {
	Seq                   int             `json:"seq"`
	ItemID                uuid.UUID       `json:"item_id"`
	DrugID                uint            `json:"drug_id"`
	Code                  string          `json:"code"`
	Name                  string          `json:"name"`
	Brand                 string          `json:"brand,omitempty"`
	Form                  string          `json:"form,omitempty"`
	Strength              string          `json:"strength,omitempty"`
	BatchNumber           string          `json:"batch_number,omitempty"`
	PackType              string          `json:"pack_type"`
	UnitsPerPack          decimal.Decimal `json:"units_per_pack"`
	Quantity              decimal.Decimal `json:"quantity"`
	UnitType              string          `json:"unit_type"`
	UnitQuantity          decimal.Decimal `json:"unit_quantity"`
	UnitQuantityAvailable bool            `json:"unit_quantity_available"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	Amount                decimal.Decimal `json:"amount"`
}

// Document is the assembled payload.
type Document struct {
	Header Header          `json:"header"`
	Lines  []Line          `json:"lines"`
	Total  decimal.Decimal `json:"total"`
}

// SupplierID is the counterparty of the document.
func (d *Document) SupplierID() uint { return d.Header.CounterpartyID }

// Assemble validates the selection and computes amounts and the total.
// Totals are the sum of the already rounded line amounts. A line item may
// hold a zero quantity while it is edited, but every assembled line orders
// a positive quantity.
func Assemble(h Header, items []*conversion.LineItem) (*Document, error) {
	if !h.Kind.Valid() {
		return nil, &apperr.ValidationError{Field: "kind", Reason: apperr.ReasonInvalid}
	}
	if len(items) == 0 {
		return nil, &apperr.ValidationError{Field: "items", Reason: apperr.ReasonAtLeastOne, Limit: "1"}
	}
	if h.Kind == KindPurchaseRequest && h.CounterpartyID == 0 {
		return nil, apperr.Validation("supplier", apperr.ReasonRequired)
	}

	doc := &Document{Header: h, Lines: make([]Line, 0, len(items)), Total: decimal.Zero}
	for i, it := range items {
		if it == nil {
			return nil, apperr.Invariant("nil line item at position %d", i)
		}
		if err := checkItem(h, i, it); err != nil {
			return nil, err
		}
		line := newLine(i+1, it)
		doc.Lines = append(doc.Lines, line)
		doc.Total = doc.Total.Add(line.Amount)
	}
	return doc, nil
}

// AssembleBySupplier builds one document per distinct supplier, ordered by
// first appearance in items. When the header pre-fixes a supplier a single
// document is built and foreign items are rejected.
func AssembleBySupplier(h Header, items []*conversion.LineItem) ([]*Document, error) {
	if h.CounterpartyID != 0 || !h.Kind.IsReturn() {
		doc, err := Assemble(h, items)
		if err != nil {
			return nil, err
		}
		return []*Document{doc}, nil
	}
	if len(items) == 0 {
		return nil, &apperr.ValidationError{Field: "items", Reason: apperr.ReasonAtLeastOne, Limit: "1"}
	}

	var order []uint
	groups := make(map[uint][]*conversion.LineItem)
	for i, it := range items {
		if it == nil {
			return nil, apperr.Invariant("nil line item at position %d", i)
		}
		sid := it.Drug.SupplierID
		if sid == 0 {
			return nil, apperr.Validation(fmt.Sprintf("items[%d].supplier", i), apperr.ReasonRequired)
		}
		if _, ok := groups[sid]; !ok {
			order = append(order, sid)
		}
		groups[sid] = append(groups[sid], it)
	}

	docs := make([]*Document, 0, len(order))
	for _, sid := range order {
		group := groups[sid]
		sh := h
		sh.CounterpartyID = sid
		sh.CounterpartyName = group[0].Drug.SupplierName
		sh.CounterpartyEmail = group[0].Drug.SupplierEmail
		doc, err := Assemble(sh, group)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func checkItem(h Header, i int, it *conversion.LineItem) error {
	if h.CounterpartyID != 0 && it.Drug.SupplierID != 0 && it.Drug.SupplierID != h.CounterpartyID {
		return &apperr.ValidationError{
			Field:  fmt.Sprintf("items[%d].supplier", i),
			Reason: apperr.ReasonMixedSupplier,
			Limit:  fmt.Sprint(h.CounterpartyID),
		}
	}
	if it.UnitQuantityAvailable() && it.PackType == nil {
		return apperr.Validation(fmt.Sprintf("items[%d].pack_type", i), apperr.ReasonRequired)
	}
	if !it.OrderQuantity.IsPositive() {
		return &apperr.ValidationError{Field: fmt.Sprintf("items[%d].order_quantity", i), Reason: apperr.ReasonNotPositive, Limit: "0"}
	}
	if it.UnitPrice.IsNegative() {
		return &apperr.ValidationError{Field: fmt.Sprintf("items[%d].unit_price", i), Reason: apperr.ReasonNegative, Limit: "0"}
	}
	return nil
}

func newLine(seq int, it *conversion.LineItem) Line {
	l := Line{
		Seq:                   seq,
		ItemID:                it.ID,
		DrugID:                it.Drug.ID,
		Code:                  it.Drug.Code,
		Name:                  it.Drug.Name,
		Brand:                 it.Drug.Brand,
		Form:                  it.Drug.Form,
		Strength:              it.Drug.Strength,
		BatchNumber:           it.BatchNumber,
		Quantity:              it.OrderQuantity,
		UnitQuantity:          it.OrderUnitQuantity,
		UnitQuantityAvailable: it.UnitQuantityAvailable(),
		UnitPrice:             it.UnitPrice,
		Amount:                it.Amount(),
	}
	if it.PackType != nil {
		l.PackType = it.PackType.Label
		l.UnitsPerPack = it.PackType.UnitsPerPack
		l.UnitType = it.PackType.UnitType
	}
	return l
}
