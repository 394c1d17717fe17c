package conversion

import (
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one drug row of a purchase or return document. OrderUnitQuantity
// is derived and recomputed on every quantity or pack-type change.
type LineItem struct {
	ID                uuid.UUID       `json:"id"`
	Drug              Drug            `json:"drug"`
	OrderQuantity     decimal.Decimal `json:"order_quantity"`
	PackType          *Conversion     `json:"pack_type"`
	OrderUnitQuantity decimal.Decimal `json:"order_unit_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	BatchNumber       string          `json:"batch_number,omitempty"`
}

// NewLineItem starts a fresh row for drug: first pack type preselected,
// quantity zero, price taken from the catalog.
func NewLineItem(d Drug) *LineItem {
	li := &LineItem{
		ID:            uuid.New(),
		Drug:          d,
		OrderQuantity: decimal.Zero,
		PackType:      d.FirstConversion(),
		UnitPrice:     d.UnitPrice,
	}
	li.recompute()
	return li
}

// Restore rebuilds a row whose document left editing. pack and unitQty are
// the values saved with the row and are not recomputed; a nil pack means the
// drug had no conversions when the row was saved.
func Restore(d Drug, id uuid.UUID, pack *Conversion, qty, unitQty, price decimal.Decimal, batch string) *LineItem {
	if pack == nil {
		d.Conversions = nil
	}
	return &LineItem{
		ID:                id,
		Drug:              d,
		OrderQuantity:     qty,
		PackType:          pack,
		OrderUnitQuantity: unitQty,
		UnitPrice:         price,
		BatchNumber:       batch,
	}
}

// Key is the identity used by selection sets.
func (li *LineItem) Key() uuid.UUID { return li.ID }

// Repick replaces the drug of a row. The result is a new LineItem, not a
// mutation of the old one.
func (li *LineItem) Repick(d Drug) *LineItem {
	return NewLineItem(d)
}

// SelectPackType sets the pack type and recomputes the unit quantity using the
// current order quantity. Passing nil clears the selection.
func (li *LineItem) SelectPackType(c *Conversion) error {
	if c == nil {
		li.PackType = nil
		li.recompute()
		return nil
	}
	own, ok := li.Drug.Conversion(c.ID)
	if !ok {
		return &apperr.ValidationError{Field: "pack_type", Reason: apperr.ReasonUnknown}
	}
	li.PackType = own
	li.recompute()
	return nil
}

// SelectPackTypeID is SelectPackType by conversion id; zero clears.
func (li *LineItem) SelectPackTypeID(id uint) error {
	if id == 0 {
		return li.SelectPackType(nil)
	}
	return li.SelectPackType(&Conversion{ID: id})
}

// SetOrderQuantity validates q ≥ 0 and recomputes the unit quantity using the
// current pack type.
func (li *LineItem) SetOrderQuantity(q decimal.Decimal) error {
	if q.IsNegative() {
		return &apperr.ValidationError{Field: "order_quantity", Reason: apperr.ReasonNegative, Limit: "0"}
	}
	li.OrderQuantity = q
	li.recompute()
	return nil
}

// UnitQuantityAvailable is false when the drug has no conversions; callers
// must show the unit quantity as unavailable rather than zero.
func (li *LineItem) UnitQuantityAvailable() bool {
	return len(li.Drug.Conversions) > 0
}

// Amount is quantity × unit price.
func (li *LineItem) Amount() decimal.Decimal {
	return Amount(li.OrderQuantity, li.UnitPrice)
}

func (li *LineItem) recompute() {
	li.OrderUnitQuantity = UnitQuantity(li.OrderQuantity, li.PackType)
}
