package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReturnBill returns drugs of one supplier. Amount is the assembled total,
// stored so adjustments can be checked against it.
type ReturnBill struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID uint `gorm:"index;not null" json:"user_id"`

	Number   string    `gorm:"size:50;uniqueIndex" json:"number"`
	IssuedAt time.Time `gorm:"not null" json:"issued_at"`

	SupplierID uint      `gorm:"index;not null" json:"supplier_id"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`

	// ReturnMemoID is set once the bill is summarised in a memo.
	ReturnMemoID *uint `gorm:"index" json:"return_memo_id,omitempty"`

	Tracked
	Reason string          `gorm:"size:500" json:"reason,omitempty"`
	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`

	Items      []ReturnBillItem  `gorm:"foreignKey:ReturnBillID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Adjustment *ReturnAdjustment `gorm:"foreignKey:ReturnBillID" json:"adjustment,omitempty"`
}

func (b *ReturnBill) GetUserID() uint {
	return b.UserID
}

// Total sums the rounded line amounts.
func (b *ReturnBill) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.Amount())
	}
	return total
}

type ReturnBillItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ReturnBillID uint      `gorm:"index;not null" json:"return_bill_id"`
	Line
	ExpiryDate *time.Time  `json:"expiry_date,omitempty"`
	Drug       *Drug       `gorm:"foreignKey:DrugID" json:"drug,omitempty"`
	Conversion *Conversion `gorm:"foreignKey:ConversionID" json:"conversion,omitempty"`
}

// ReturnMemo summarises the return bills of one supplier. Its lines are the
// items of its bills; it carries no items of its own.
type ReturnMemo struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID uint `gorm:"index;not null" json:"user_id"`

	Number   string    `gorm:"size:50;uniqueIndex" json:"number"`
	IssuedAt time.Time `gorm:"not null" json:"issued_at"`

	SupplierID uint      `gorm:"index;not null" json:"supplier_id"`
	Supplier   *Supplier `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`

	Tracked

	Bills []ReturnBill `gorm:"foreignKey:ReturnMemoID" json:"bills,omitempty"`
}

func (m *ReturnMemo) GetUserID() uint {
	return m.UserID
}

// ReturnAdjustment records how much of a return bill the supplier credited.
// There is at most one per bill.
type ReturnAdjustment struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	ReturnBillID       uint            `gorm:"uniqueIndex;not null" json:"return_bill_id"`
	AdjustmentDate     time.Time       `gorm:"not null" json:"adjustment_date"`
	PurchaseBillNumber string          `gorm:"size:100;not null" json:"purchase_bill_number"`
	AdjustmentAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"adjustment_amount"`
	Status             string          `gorm:"size:20;not null" json:"status"`
	ReturnLoss         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"return_loss"`
	UserID             uint            `gorm:"index" json:"user_id"`
}
