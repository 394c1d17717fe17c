package models

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// Number prefixes per document table.
const (
	PrefixPurchaseRequest = "PR"
	PrefixReturnBill      = "RB"
	PrefixReturnMemo      = "RM"
)

// GenerateNumber returns the next document number for model.
// Format: PREFIX-YYYY-NNNN (e.g., PR-2026-0001). Soft-deleted rows still
// reserve their number.
func GenerateNumber(db *gorm.DB, model any, prefix string, year int) (string, error) {
	base := fmt.Sprintf("%s-%d-", prefix, year)
	var numbers []string
	err := db.Unscoped().Model(model).
		Where("number LIKE ?", base+"%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil {
		return "", err
	}
	next := 1
	if len(numbers) > 0 {
		n, err := strconv.Atoi(strings.TrimPrefix(numbers[0], base))
		if err != nil {
			return "", fmt.Errorf("malformed document number %q", numbers[0])
		}
		next = n + 1
	}
	return fmt.Sprintf("%s%04d", base, next), nil
}
