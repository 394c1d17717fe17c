package services

import (
	"context"
	"fmt"

	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/models"
	"gorm.io/gorm"
)

// Documents routes lifecycle loads and status writes to the service owning
// each document kind. It implements lifecycle.Loader and lifecycle.StatusStore.
type Documents struct {
	db        *gorm.DB
	Purchases *PurchaseService
	Returns   *ReturnService
}

func NewDocuments(db *gorm.DB, p *PurchaseService, r *ReturnService) *Documents {
	return &Documents{db: db, Purchases: p, Returns: r}
}

func (d *Documents) Load(ctx context.Context, ref lifecycle.Ref) (*document.Document, error) {
	switch ref.Kind {
	case document.KindPurchaseRequest:
		return d.Purchases.Load(ctx, ref.ID)
	case document.KindReturnBill:
		return d.Returns.LoadBill(ctx, ref.ID)
	case document.KindReturnMemo:
		return d.Returns.LoadMemo(ctx, ref.ID)
	}
	return nil, fmt.Errorf("unknown document kind %q", ref.Kind)
}

func (d *Documents) SaveStatus(ctx context.Context, ref lifecycle.Ref, st lifecycle.Status) error {
	switch ref.Kind {
	case document.KindPurchaseRequest:
		return d.Purchases.SaveStatus(ctx, ref.ID, st)
	case document.KindReturnBill:
		return d.Returns.SaveBillStatus(ctx, ref.ID, st)
	case document.KindReturnMemo:
		return d.Returns.SaveMemoStatus(ctx, ref.ID, st)
	}
	return fmt.Errorf("unknown document kind %q", ref.Kind)
}

// Status reads the stored status of a document.
func (d *Documents) Status(ctx context.Context, ref lifecycle.Ref) (lifecycle.Status, error) {
	var model any
	switch ref.Kind {
	case document.KindPurchaseRequest:
		model = &models.PurchaseRequest{}
	case document.KindReturnBill:
		model = &models.ReturnBill{}
	case document.KindReturnMemo:
		model = &models.ReturnMemo{}
	default:
		return "", fmt.Errorf("unknown document kind %q", ref.Kind)
	}
	var tr models.Tracked
	if err := d.db.WithContext(ctx).Model(model).Select("status").Where("id = ?", ref.ID).Take(&tr).Error; err != nil {
		return "", err
	}
	return tr.LifecycleStatus(), nil
}
