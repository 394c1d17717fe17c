package models

import (
	"sort"
	"time"

	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups drugs for browsing (e.g. Antibiotics).
type Category struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Name          string        `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description   string        `gorm:"size:500" json:"description,omitempty"`
	Subcategories []Subcategory `gorm:"foreignKey:CategoryID" json:"subcategories,omitempty"`
}

type Subcategory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	CategoryID uint      `gorm:"index;not null" json:"category_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
}

type Brand struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
}

// Supplier is the counterparty of purchase requests and returns. Email is
// where dispatched documents go; it may be empty.
type Supplier struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	ContactPerson string         `gorm:"size:255" json:"contact_person,omitempty"`
	Email         string         `gorm:"size:255" json:"email,omitempty"`
	Phone         string         `gorm:"size:50" json:"phone,omitempty"`
	Address       string         `gorm:"size:500" json:"address,omitempty"`
}

// Employee is a pharmacy staff member who can request purchases.
type Employee struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email,omitempty"`
	Position  string    `gorm:"size:100" json:"position,omitempty"`
}

// Drug is a catalog entry. UnitPrice is the price of one pack.
type Drug struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Code        string         `gorm:"uniqueIndex;size:50;not null" json:"code"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	GenericName string         `gorm:"size:255" json:"generic_name,omitempty"`
	Form        string         `gorm:"size:50" json:"form,omitempty"`
	Strength    string         `gorm:"size:50" json:"strength,omitempty"`

	CategoryID    *uint        `gorm:"index" json:"category_id,omitempty"`
	Category      *Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	SubcategoryID *uint        `gorm:"index" json:"subcategory_id,omitempty"`
	Subcategory   *Subcategory `gorm:"foreignKey:SubcategoryID" json:"subcategory,omitempty"`
	BrandID       *uint        `gorm:"index" json:"brand_id,omitempty"`
	Brand         *Brand       `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	SupplierID    uint         `gorm:"index;not null" json:"supplier_id"`
	Supplier      *Supplier    `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`

	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`

	// Stock fields only drive low-stock suggestions.
	StockUnits   decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"stock_units"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"reorder_level"`

	Conversions []Conversion `gorm:"foreignKey:DrugID;constraint:OnDelete:CASCADE" json:"conversions,omitempty"`
}

// LowStock reports whether the stock is at or below the reorder level.
// A zero reorder level disables suggestions.
func (d *Drug) LowStock() bool {
	return d.ReorderLevel.IsPositive() && d.StockUnits.LessThanOrEqual(d.ReorderLevel)
}

// BrandName returns the brand label or "".
func (d *Drug) BrandName() string {
	if d.Brand == nil {
		return ""
	}
	return d.Brand.Name
}

// Engine converts the catalog row into the conversion engine's view.
// Supplier and Brand must be preloaded for their names to be carried.
func (d *Drug) Engine() conversion.Drug {
	out := conversion.Drug{
		ID:         d.ID,
		Code:       d.Code,
		Name:       d.Name,
		Brand:      d.BrandName(),
		Form:       d.Form,
		Strength:   d.Strength,
		SupplierID: d.SupplierID,
		UnitPrice:  d.UnitPrice,
	}
	if d.Supplier != nil {
		out.SupplierName = d.Supplier.Name
		out.SupplierEmail = d.Supplier.Email
	}
	convs := make([]Conversion, len(d.Conversions))
	copy(convs, d.Conversions)
	SortConversions(convs)
	for _, c := range convs {
		out.Conversions = append(out.Conversions, c.Engine())
	}
	return out
}

// Conversion is a pack type of a drug, e.g. Strip = 10 Tablet.
type Conversion struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DrugID       uint            `gorm:"index;not null" json:"drug_id"`
	Label        string          `gorm:"size:50;not null" json:"label"`
	UnitsPerPack decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"units_per_pack"`
	UnitType     string          `gorm:"size:50" json:"unit_type"`
	Position     int             `gorm:"default:0" json:"position"`
}

func (c Conversion) Engine() conversion.Conversion {
	return conversion.Conversion{
		ID:           c.ID,
		Label:        c.Label,
		UnitsPerPack: c.UnitsPerPack,
		UnitType:     c.UnitType,
		Position:     c.Position,
	}
}

// SortConversions orders by Position, then ID.
func SortConversions(cs []Conversion) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Position != cs[j].Position {
			return cs[i].Position < cs[j].Position
		}
		return cs[i].ID < cs[j].ID
	})
}
