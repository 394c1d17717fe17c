// Package adjustment computes supplier-side adjustments against return bills.
// The return loss is always derived; it is never accepted from input.
package adjustment

import (
	"strings"
	"time"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPartial  Status = "partial"
	StatusComplete Status = "complete"
)

// ParseStatus accepts partial, complete and its alias full.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "partial":
		return StatusPartial, nil
	case "complete", "full":
		return StatusComplete, nil
	case "":
		return "", apperr.Validation("status", apperr.ReasonRequired)
	}
	return "", &apperr.ValidationError{Field: "status", Reason: apperr.ReasonInvalid, Limit: "partial|complete"}
}

// Bill is the part of a return bill the calculator needs.
type Bill struct {
	ID     uint
	Number string
	Amount decimal.Decimal
}

type Adjustment struct {
	BillID             uint            `json:"return_bill_id"`
	BillAmount         decimal.Decimal `json:"bill_amount"`
	Date               time.Time       `json:"adjustment_date"`
	PurchaseBillNumber string          `json:"purchase_bill_number"`
	Amount             decimal.Decimal `json:"adjustment_amount"`
	Status             Status          `json:"status"`
	ReturnLoss         decimal.Decimal `json:"return_loss"`
}

// Compute validates 0 ≤ amount ≤ bill.Amount and derives the return loss.
// Out-of-range input is rejected, never clamped. Status is taken as given;
// an amount equal to the bill does not imply complete.
func Compute(bill Bill, amount decimal.Decimal, purchaseBillNumber string, date time.Time, status string) (*Adjustment, error) {
	if bill.Amount.IsNegative() {
		return nil, apperr.Invariant("return bill %d has negative amount %s", bill.ID, bill.Amount)
	}
	if amount.IsNegative() {
		return nil, apperr.OutOfRange("adjustment_amount", "0")
	}
	if amount.GreaterThan(bill.Amount) {
		return nil, apperr.OutOfRange("adjustment_amount", bill.Amount.StringFixed(2))
	}
	if strings.TrimSpace(purchaseBillNumber) == "" {
		return nil, apperr.Validation("purchase_bill_number", apperr.ReasonRequired)
	}
	if date.IsZero() {
		return nil, apperr.Validation("adjustment_date", apperr.ReasonRequired)
	}
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return &Adjustment{
		BillID:             bill.ID,
		BillAmount:         bill.Amount,
		Date:               date,
		PurchaseBillNumber: strings.TrimSpace(purchaseBillNumber),
		Amount:             amount,
		Status:             st,
		ReturnLoss:         bill.Amount.Sub(amount),
	}, nil
}

// Verify re-checks a stored adjustment against its bill. Anything that
// Compute would have rejected is a defect upstream, reported as an
// InvariantError.
func Verify(adj Adjustment, bill Bill) error {
	if adj.BillID != 0 && bill.ID != 0 && adj.BillID != bill.ID {
		return apperr.Invariant("adjustment references bill %d, checked against %d", adj.BillID, bill.ID)
	}
	if adj.Amount.IsNegative() {
		return apperr.Invariant("adjustment amount %s is negative", adj.Amount)
	}
	if adj.Amount.GreaterThan(bill.Amount) {
		return apperr.Invariant("adjustment amount %s exceeds bill amount %s", adj.Amount, bill.Amount)
	}
	if want := bill.Amount.Sub(adj.Amount); !adj.ReturnLoss.Equal(want) {
		return apperr.Invariant("return loss %s, expected %s", adj.ReturnLoss, want)
	}
	return nil
}
