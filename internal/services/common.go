package services

import (
	"time"

	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/models"
	"gorm.io/gorm"
)

func orderByPosition(db *gorm.DB) *gorm.DB { return db.Order("position, id") }

// unscoped keeps soft-deleted catalog rows visible to documents that
// reference them.
func unscoped(db *gorm.DB) *gorm.DB { return db.Unscoped() }

func counterparty(h *document.Header, id uint, sup *models.Supplier) {
	h.CounterpartyID = id
	if sup != nil {
		h.CounterpartyName = sup.Name
		h.CounterpartyEmail = sup.Email
	}
}

func storedLine(l models.Line, d conversion.Drug, frozen bool) (*conversion.LineItem, error) {
	if frozen {
		return l.Frozen(d)
	}
	return l.LineItem(d)
}

func saveStatus(db *gorm.DB, model any, id uint, st lifecycle.Status, now time.Time) error {
	updates := map[string]interface{}{"status": st, "sent_at": nil}
	if st == lifecycle.StatusSent {
		updates["sent_at"] = now
	}
	res := db.Model(model).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// addVariant records the drug code under its pack-type label. Rows without
// a pack type have no column.
func addVariant(v map[string][]string, c *models.Conversion, d *models.Drug) {
	if c == nil || d == nil {
		return
	}
	for _, code := range v[c.Label] {
		if code == d.Code {
			return
		}
	}
	v[c.Label] = append(v[c.Label], d.Code)
}
