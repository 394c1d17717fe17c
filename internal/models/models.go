package models

import (
	"time"

	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line holds the columns shared by purchase and return items. LineID keeps
// the line identity stable across edits.
type Line struct {
	LineID       uuid.UUID       `gorm:"type:uuid;index" json:"line_id"`
	DrugID       uint            `gorm:"index;not null" json:"drug_id"`
	ConversionID *uint           `json:"conversion_id,omitempty"`
	PackLabel    string          `gorm:"size:50" json:"pack_label,omitempty"`
	UnitsPerPack decimal.Decimal `gorm:"type:decimal(12,3);not null;default:0" json:"units_per_pack"`
	UnitType     string          `gorm:"size:50" json:"unit_type,omitempty"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	UnitQuantity decimal.Decimal `gorm:"type:decimal(14,3);not null" json:"unit_quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	BatchNumber  string          `gorm:"size:50" json:"batch_number,omitempty"`
	Position     int             `gorm:"default:0" json:"position"`
}

// LineFrom copies an edited line item into its stored columns.
func LineFrom(li *conversion.LineItem, position int) Line {
	l := Line{
		LineID:       li.ID,
		DrugID:       li.Drug.ID,
		Quantity:     li.OrderQuantity,
		UnitQuantity: li.OrderUnitQuantity,
		UnitPrice:    li.UnitPrice,
		BatchNumber:  li.BatchNumber,
		Position:     position,
	}
	if li.PackType != nil {
		id := li.PackType.ID
		l.ConversionID = &id
		l.PackLabel = li.PackType.Label
		l.UnitsPerPack = li.PackType.UnitsPerPack
		l.UnitType = li.PackType.UnitType
	}
	return l
}

// LineItem rebuilds the editable line from its stored columns and the
// current catalog view of the drug.
func (l Line) LineItem(d conversion.Drug) (*conversion.LineItem, error) {
	li := conversion.NewLineItem(d)
	if l.LineID != uuid.Nil {
		li.ID = l.LineID
	}
	var conv uint
	if l.ConversionID != nil {
		conv = *l.ConversionID
	}
	if err := li.SelectPackTypeID(conv); err != nil {
		return nil, err
	}
	if err := li.SetOrderQuantity(l.Quantity); err != nil {
		return nil, err
	}
	li.UnitPrice = l.UnitPrice
	li.BatchNumber = l.BatchNumber
	return li, nil
}

// Frozen rebuilds the line of a document that left editing from the pack
// type and unit quantity saved with it, so later catalog changes do not
// alter what was sent. Rows saved without a pack snapshot fall back to
// LineItem.
func (l Line) Frozen(d conversion.Drug) (*conversion.LineItem, error) {
	var pack *conversion.Conversion
	if l.ConversionID != nil {
		if l.PackLabel == "" {
			return l.LineItem(d)
		}
		pack = &conversion.Conversion{ID: *l.ConversionID, Label: l.PackLabel, UnitsPerPack: l.UnitsPerPack, UnitType: l.UnitType}
	}
	id := l.LineID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return conversion.Restore(d, id, pack, l.Quantity, l.UnitQuantity, l.UnitPrice, l.BatchNumber), nil
}

// Amount is quantity × unit price, rounded like the assembled document.
func (l Line) Amount() decimal.Decimal {
	return conversion.Amount(l.Quantity, l.UnitPrice)
}

// Tracked is the lifecycle part shared by every dispatched document.
type Tracked struct {
	Status lifecycle.Status `gorm:"size:20;not null;default:'not_initiated'" json:"status"`
	SentAt *time.Time       `json:"sent_at,omitempty"`
}

// IsDraft reports whether the document has not been initiated yet.
func (t *Tracked) IsDraft() bool {
	return t.Status == "" || t.Status == lifecycle.StatusNotInitiated
}

// CanEdit reports whether the items may still change.
func (t *Tracked) CanEdit() bool {
	return t.IsDraft()
}

// LifecycleStatus returns the stored status, defaulting to not_initiated.
func (t *Tracked) LifecycleStatus() lifecycle.Status {
	if t.Status == "" {
		return lifecycle.StatusNotInitiated
	}
	return t.Status
}
