package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseRequest is an order sent to one supplier.
// Implements the Ownable interface for ownership-based authorization.
type PurchaseRequest struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// UserID is the operator who created the request.
	UserID uint `gorm:"index;not null" json:"user_id"`

	Number   string    `gorm:"size:50;uniqueIndex" json:"number"`
	IssuedAt time.Time `gorm:"not null" json:"issued_at"`

	SupplierID    uint      `gorm:"index;not null" json:"supplier_id"`
	Supplier      *Supplier `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	RequestedByID *uint     `gorm:"index" json:"requested_by_id,omitempty"`
	RequestedBy   *Employee `gorm:"foreignKey:RequestedByID" json:"requested_by,omitempty"`

	Tracked
	Notes string `gorm:"type:text" json:"notes,omitempty"`

	Items []PurchaseRequestItem `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (p *PurchaseRequest) GetUserID() uint {
	return p.UserID
}

// Total sums the rounded line amounts.
func (p *PurchaseRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.Amount())
	}
	return total
}

type PurchaseRequestItem struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	PurchaseRequestID uint      `gorm:"index;not null" json:"purchase_request_id"`
	Line
	Drug       *Drug       `gorm:"foreignKey:DrugID" json:"drug,omitempty"`
	Conversion *Conversion `gorm:"foreignKey:ConversionID" json:"conversion,omitempty"`
}
