// Package conversion turns operator-entered pack quantities into base-unit
// quantities using per-drug pack-type factors.
//
// Numeric policy: all arithmetic is exact decimal. Unit quantities are rounded
// to UnitQuantityPlaces and monetary amounts to AmountPlaces, both half away
// from zero, so quantity and unit fields never diverge through floor/ceil.
package conversion

import (
	"fmt"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/shopspring/decimal"
)

const (
	UnitQuantityPlaces int32 = 3
	AmountPlaces       int32 = 2
)

// Conversion is one pack type of a drug, e.g. Strip = 10 tablets.
type Conversion struct {
	ID           uint            `json:"id"`
	Label        string          `json:"label"`
	UnitsPerPack decimal.Decimal `json:"units_per_pack"`
	UnitType     string          `json:"unit_type"`
	Position     int             `json:"position"`
}

// Validate enforces UnitsPerPack > 0.
func (c Conversion) Validate() error {
	if !c.UnitsPerPack.IsPositive() {
		return &apperr.ValidationError{Field: "units_per_pack", Reason: apperr.ReasonNotPositive, Limit: "0"}
	}
	return nil
}

// Drug is the catalog view the engine needs: identity, descriptive fields
// copied onto line items, the pack price and the ordered conversions.
type Drug struct {
	ID            uint            `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand,omitempty"`
	Form          string          `json:"form,omitempty"`
	Strength      string          `json:"strength,omitempty"`
	SupplierID    uint            `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	SupplierEmail string          `json:"supplier_email,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Conversions   []Conversion    `json:"conversions"`
}

// FirstConversion returns the drug's first pack type or nil.
func (d Drug) FirstConversion() *Conversion {
	if len(d.Conversions) == 0 {
		return nil
	}
	c := d.Conversions[0]
	return &c
}

// Conversion finds a pack type by id.
func (d Drug) Conversion(id uint) (*Conversion, bool) {
	for i := range d.Conversions {
		if d.Conversions[i].ID == id {
			c := d.Conversions[i]
			return &c, true
		}
	}
	return nil, false
}

// ConversionByLabel finds a pack type by its label, case-sensitive.
func (d Drug) ConversionByLabel(label string) (*Conversion, bool) {
	for i := range d.Conversions {
		if d.Conversions[i].Label == label {
			c := d.Conversions[i]
			return &c, true
		}
	}
	return nil, false
}

// UnitQuantity computes quantity × unitsPerPack. A nil pack type yields zero.
func UnitQuantity(quantity decimal.Decimal, c *Conversion) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	return quantity.Mul(c.UnitsPerPack).Round(UnitQuantityPlaces)
}

// Amount computes quantity × unitPrice rounded to AmountPlaces.
func Amount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(AmountPlaces)
}

// Table holds, per drug, the ordered list of pack-type conversions.
type Table struct {
	byDrug map[uint][]Conversion
}

// NewTable builds a table from catalog drugs. Every factor must be positive.
func NewTable(drugs ...Drug) (*Table, error) {
	t := &Table{byDrug: make(map[uint][]Conversion, len(drugs))}
	for _, d := range drugs {
		if err := t.Add(d); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add registers a drug's conversions, replacing any previous entry.
func (t *Table) Add(d Drug) error {
	for _, c := range d.Conversions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("drug %d conversion %q: %w", d.ID, c.Label, err)
		}
	}
	convs := make([]Conversion, len(d.Conversions))
	copy(convs, d.Conversions)
	t.byDrug[d.ID] = convs
	return nil
}

// Lookup returns the conversions of a drug in catalog order.
func (t *Table) Lookup(drugID uint) []Conversion {
	return t.byDrug[drugID]
}

// Factor returns unitsPerPack for a drug's pack type.
func (t *Table) Factor(drugID, conversionID uint) (decimal.Decimal, error) {
	for _, c := range t.byDrug[drugID] {
		if c.ID == conversionID {
			return c.UnitsPerPack, nil
		}
	}
	return decimal.Zero, &apperr.ValidationError{Field: "pack_type", Reason: apperr.ReasonUnknown}
}

// UnitQuantity converts a pack quantity for a drug's pack type.
func (t *Table) UnitQuantity(drugID, conversionID uint, quantity decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsNegative() {
		return decimal.Zero, apperr.Validation("order_quantity", apperr.ReasonNegative)
	}
	f, err := t.Factor(drugID, conversionID)
	if err != nil {
		return decimal.Zero, err
	}
	return quantity.Mul(f).Round(UnitQuantityPlaces), nil
}
