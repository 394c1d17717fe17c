package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/diewo77/go-pharmacy/internal/adjustment"
	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/metrics"
	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/diewo77/go-pharmacy/internal/sheet"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReturnInput is the editable part of a return bill. A zero SupplierID on
// creation splits the items into one bill per supplier.
type ReturnInput struct {
	SupplierID uint        `json:"supplier_id"`
	IssuedAt   *time.Time  `json:"issued_at,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Items      []LineInput `json:"items"`
}

// MemoInput selects the bills a memo summarises. Empty BillIDs takes every
// bill of the supplier not yet in a memo.
type MemoInput struct {
	SupplierID uint       `json:"supplier_id"`
	BillIDs    []uint     `json:"bill_ids,omitempty"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
}

// AdjustmentInput is what the operator records once the supplier credits a
// return bill.
type AdjustmentInput struct {
	AdjustmentDate     time.Time       `json:"adjustment_date"`
	PurchaseBillNumber string          `json:"purchase_bill_number"`
	AdjustmentAmount   decimal.Decimal `json:"adjustment_amount"`
	Status             string          `json:"status"`
}

type ReturnService struct {
	db      *gorm.DB
	catalog *CatalogService
	now     func() time.Time
}

func NewReturnService(db *gorm.DB, catalog *CatalogService) *ReturnService {
	return &ReturnService{db: db, catalog: catalog, now: time.Now}
}

func (s *ReturnService) bills(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Supplier", unscoped).
		Preload("Adjustment").
		Preload("Items", orderByPosition).
		Preload("Items.Conversion").
		Preload("Items.Drug", unscoped).
		Preload("Items.Drug.Conversions", orderByPosition).
		Preload("Items.Drug.Supplier", unscoped).
		Preload("Items.Drug.Brand")
}

func (s *ReturnService) ListBills(ctx context.Context, f DocumentFilter) ([]models.ReturnBill, error) {
	var out []models.ReturnBill
	err := f.apply(s.bills(ctx)).Order("issued_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (s *ReturnService) GetBill(ctx context.Context, id uint) (*models.ReturnBill, error) {
	var b models.ReturnBill
	if err := s.bills(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *ReturnService) NextBillNumber(ctx context.Context) (string, error) {
	return models.GenerateNumber(s.db.WithContext(ctx), &models.ReturnBill{}, models.PrefixReturnBill, s.now().Year())
}

// CreateBills stores one bill per supplier of the selected items, in order of
// first appearance. With a supplier given, a single bill is created and items
// of other suppliers are rejected.
func (s *ReturnService) CreateBills(ctx context.Context, userID uint, in ReturnInput) ([]models.ReturnBill, error) {
	issued := s.now()
	if in.IssuedAt != nil {
		issued = *in.IssuedAt
	}
	h := document.Header{Kind: document.KindReturnBill, IssuedAt: issued}
	if in.SupplierID != 0 {
		sup, err := s.supplier(ctx, in.SupplierID)
		if err != nil {
			return nil, err
		}
		counterparty(&h, sup.ID, sup)
	}
	rows, err := BuildLines(ctx, s.catalog, in.Items)
	if err != nil {
		return nil, err
	}
	docs, err := document.AssembleBySupplier(h, rows.Chosen)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*conversion.LineItem, len(rows.Chosen))
	for _, li := range rows.Chosen {
		byID[li.ID.String()] = li
	}
	bills := make([]models.ReturnBill, 0, len(docs))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, doc := range docs {
			number, err := models.GenerateNumber(tx, &models.ReturnBill{}, models.PrefixReturnBill, issued.Year())
			if err != nil {
				return err
			}
			b := models.ReturnBill{
				UserID:     userID,
				Number:     number,
				IssuedAt:   issued,
				SupplierID: doc.SupplierID(),
				Reason:     strings.TrimSpace(in.Reason),
				Amount:     doc.Total,
			}
			b.Status = lifecycle.StatusNotInitiated
			for i, line := range doc.Lines {
				li := byID[line.ItemID.String()]
				b.Items = append(b.Items, models.ReturnBillItem{Line: models.LineFrom(li, i), ExpiryDate: rows.Expiry[li.ID]})
			}
			if err := tx.Create(&b).Error; err != nil {
				return err
			}
			bills = append(bills, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.ReturnBill, 0, len(bills))
	for _, b := range bills {
		full, err := s.GetBill(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *full)
	}
	return out, nil
}

// UpdateBill replaces the items of a bill still in not_initiated and not yet
// summarised in a memo. The supplier of a bill never changes.
func (s *ReturnService) UpdateBill(ctx context.Context, id uint, in ReturnInput) (*models.ReturnBill, error) {
	b, err := s.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.CanEdit() || b.ReturnMemoID != nil {
		return nil, ErrNotEditable
	}
	if in.SupplierID != 0 && in.SupplierID != b.SupplierID {
		return nil, &apperr.ValidationError{Field: "supplier_id", Reason: apperr.ReasonMixedSupplier, Limit: fmt.Sprint(b.SupplierID)}
	}
	rows, err := BuildLines(ctx, s.catalog, in.Items)
	if err != nil {
		return nil, err
	}
	issued := b.IssuedAt
	if in.IssuedAt != nil {
		issued = *in.IssuedAt
	}
	h := document.Header{Kind: document.KindReturnBill, DocumentID: b.ID, Number: b.Number, IssuedAt: issued}
	counterparty(&h, b.SupplierID, b.Supplier)
	doc, err := document.Assemble(h, rows.Chosen)
	if err != nil {
		return nil, err
	}

	items := make([]models.ReturnBillItem, 0, len(rows.Chosen))
	for i, li := range rows.Chosen {
		items = append(items, models.ReturnBillItem{ReturnBillID: b.ID, Line: models.LineFrom(li, i), ExpiryDate: rows.Expiry[li.ID]})
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ReturnBill{}).
			Where("id = ? AND status = ? AND return_memo_id IS NULL", b.ID, lifecycle.StatusNotInitiated).
			Updates(map[string]interface{}{
				"issued_at": issued,
				"reason":    strings.TrimSpace(in.Reason),
				"amount":    doc.Total,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotEditable
		}
		if err := tx.Where("return_bill_id = ?", b.ID).Delete(&models.ReturnBillItem{}).Error; err != nil {
			return err
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetBill(ctx, id)
}

func (s *ReturnService) supplier(ctx context.Context, id uint) (*models.Supplier, error) {
	sup, err := s.catalog.Supplier(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("supplier_id", apperr.ReasonUnknown)
	}
	return sup, err
}

func billItems(b *models.ReturnBill) ([]*conversion.LineItem, error) {
	out := make([]*conversion.LineItem, 0, len(b.Items))
	for i, it := range b.Items {
		if it.Drug == nil {
			return nil, apperr.Invariant("return bill %d item %d has no drug", b.ID, it.ID)
		}
		li, err := storedLine(it.Line, it.Drug.Engine(), !b.CanEdit() || b.ReturnMemoID != nil)
		if err != nil {
			return nil, rowErr(i, err)
		}
		out = append(out, li)
	}
	return out, nil
}

// LoadBill assembles the stored bill.
func (s *ReturnService) LoadBill(ctx context.Context, id uint) (*document.Document, error) {
	b, err := s.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := billItems(b)
	if err != nil {
		return nil, err
	}
	h := document.Header{Kind: document.KindReturnBill, DocumentID: b.ID, Number: b.Number, IssuedAt: b.IssuedAt}
	counterparty(&h, b.SupplierID, b.Supplier)
	doc, err := document.Assemble(h, items)
	if err != nil {
		return nil, err
	}
	metrics.DocumentsAssembled.WithLabelValues(string(document.KindReturnBill)).Inc()
	return doc, nil
}

func (s *ReturnService) SaveBillStatus(ctx context.Context, id uint, st lifecycle.Status) error {
	return saveStatus(s.db.WithContext(ctx), &models.ReturnBill{}, id, st, s.now())
}

// ExportBills writes the bills matching f as an xlsx workbook.
func (s *ReturnService) ExportBills(ctx context.Context, w io.Writer, f DocumentFilter) error {
	list, err := s.ListBills(ctx, f)
	if err != nil {
		return err
	}
	rows := make([]sheet.ExportRow, 0, len(list))
	for _, b := range list {
		row := sheet.ExportRow{
			Number:   b.Number,
			Date:     b.IssuedAt,
			Variants: map[string][]string{},
			Status:   b.LifecycleStatus().Label(),
		}
		if b.Supplier != nil {
			row.Counterparty = b.Supplier.Name
		}
		for _, it := range b.Items {
			addVariant(row.Variants, it.Conversion, it.Drug)
		}
		rows = append(rows, row)
	}
	return sheet.WriteExport(w, rows)
}

func (s *ReturnService) memos(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Supplier", unscoped).
		Preload("Bills", func(db *gorm.DB) *gorm.DB { return db.Order("issued_at, id") }).
		Preload("Bills.Items", orderByPosition).
		Preload("Bills.Items.Drug", unscoped).
		Preload("Bills.Items.Drug.Conversions", orderByPosition).
		Preload("Bills.Items.Drug.Supplier", unscoped).
		Preload("Bills.Items.Drug.Brand")
}

func (s *ReturnService) ListMemos(ctx context.Context, f DocumentFilter) ([]models.ReturnMemo, error) {
	var out []models.ReturnMemo
	err := f.apply(s.memos(ctx)).Order("issued_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (s *ReturnService) GetMemo(ctx context.Context, id uint) (*models.ReturnMemo, error) {
	var m models.ReturnMemo
	if err := s.memos(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMemo summarises bills of one supplier. A bill belongs to at most one
// memo.
func (s *ReturnService) CreateMemo(ctx context.Context, userID uint, in MemoInput) (*models.ReturnMemo, error) {
	if in.SupplierID == 0 {
		return nil, apperr.Validation("supplier_id", apperr.ReasonRequired)
	}
	if _, err := s.supplier(ctx, in.SupplierID); err != nil {
		return nil, err
	}

	var bills []models.ReturnBill
	q := s.db.WithContext(ctx).Where("return_memo_id IS NULL")
	if len(in.BillIDs) == 0 {
		q = q.Where("supplier_id = ?", in.SupplierID)
	} else {
		q = q.Where("id IN ?", in.BillIDs)
	}
	if err := q.Order("issued_at, id").Find(&bills).Error; err != nil {
		return nil, err
	}
	if len(in.BillIDs) > 0 {
		found := make(map[uint]models.ReturnBill, len(bills))
		for _, b := range bills {
			found[b.ID] = b
		}
		for i, id := range in.BillIDs {
			b, ok := found[id]
			if !ok {
				return nil, apperr.Validation(fmt.Sprintf("bill_ids[%d]", i), apperr.ReasonUnknown)
			}
			if b.SupplierID != in.SupplierID {
				return nil, &apperr.ValidationError{Field: fmt.Sprintf("bill_ids[%d]", i), Reason: apperr.ReasonMixedSupplier, Limit: fmt.Sprint(in.SupplierID)}
			}
		}
	}
	if len(bills) == 0 {
		return nil, &apperr.ValidationError{Field: "bill_ids", Reason: apperr.ReasonAtLeastOne, Limit: "1"}
	}

	issued := s.now()
	if in.IssuedAt != nil {
		issued = *in.IssuedAt
	}
	memo := models.ReturnMemo{UserID: userID, IssuedAt: issued, SupplierID: in.SupplierID}
	memo.Status = lifecycle.StatusNotInitiated
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := models.GenerateNumber(tx, &models.ReturnMemo{}, models.PrefixReturnMemo, issued.Year())
		if err != nil {
			return err
		}
		memo.Number = number
		if err := tx.Create(&memo).Error; err != nil {
			return err
		}
		ids := make([]uint, 0, len(bills))
		for _, b := range bills {
			ids = append(ids, b.ID)
		}
		res := tx.Model(&models.ReturnBill{}).Where("id IN ? AND return_memo_id IS NULL", ids).Update("return_memo_id", memo.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("return bills changed while creating memo %s", number)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMemo(ctx, memo.ID)
}

// LoadMemo assembles a memo from the items of its bills.
func (s *ReturnService) LoadMemo(ctx context.Context, id uint) (*document.Document, error) {
	m, err := s.GetMemo(ctx, id)
	if err != nil {
		return nil, err
	}
	var items []*conversion.LineItem
	for i := range m.Bills {
		bi, err := billItems(&m.Bills[i])
		if err != nil {
			return nil, err
		}
		items = append(items, bi...)
	}
	h := document.Header{Kind: document.KindReturnMemo, DocumentID: m.ID, Number: m.Number, IssuedAt: m.IssuedAt}
	counterparty(&h, m.SupplierID, m.Supplier)
	doc, err := document.Assemble(h, items)
	if err != nil {
		return nil, err
	}
	metrics.DocumentsAssembled.WithLabelValues(string(document.KindReturnMemo)).Inc()
	return doc, nil
}

func (s *ReturnService) SaveMemoStatus(ctx context.Context, id uint, st lifecycle.Status) error {
	return saveStatus(s.db.WithContext(ctx), &models.ReturnMemo{}, id, st, s.now())
}

func billView(b *models.ReturnBill) adjustment.Bill {
	return adjustment.Bill{ID: b.ID, Number: b.Number, Amount: b.Amount}
}

// Adjustment returns the adjustment of a bill, nil when none is recorded.
// A stored adjustment that no longer fits its bill is an InvariantError.
func (s *ReturnService) Adjustment(ctx context.Context, billID uint) (*adjustment.Adjustment, error) {
	b, err := s.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if b.Adjustment == nil {
		return nil, nil
	}
	a := adjustmentView(b, b.Adjustment)
	if err := adjustment.Verify(a, billView(b)); err != nil {
		return nil, err
	}
	return &a, nil
}

func adjustmentView(b *models.ReturnBill, ra *models.ReturnAdjustment) adjustment.Adjustment {
	return adjustment.Adjustment{
		BillID:             ra.ReturnBillID,
		BillAmount:         b.Amount,
		Date:               ra.AdjustmentDate,
		PurchaseBillNumber: ra.PurchaseBillNumber,
		Amount:             ra.AdjustmentAmount,
		Status:             adjustment.Status(ra.Status),
		ReturnLoss:         ra.ReturnLoss,
	}
}

// SaveAdjustment records or replaces the adjustment of a sent bill.
func (s *ReturnService) SaveAdjustment(ctx context.Context, userID, billID uint, in AdjustmentInput) (*adjustment.Adjustment, error) {
	b, err := s.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if b.LifecycleStatus() != lifecycle.StatusSent {
		return nil, &apperr.ValidationError{Field: "return_bill", Reason: "not_sent", Limit: string(lifecycle.StatusSent)}
	}
	adj, err := adjustment.Compute(billView(b), in.AdjustmentAmount, in.PurchaseBillNumber, in.AdjustmentDate, in.Status)
	if err != nil {
		return nil, err
	}

	row := models.ReturnAdjustment{
		ReturnBillID:       b.ID,
		AdjustmentDate:     adj.Date,
		PurchaseBillNumber: adj.PurchaseBillNumber,
		AdjustmentAmount:   adj.Amount,
		Status:             string(adj.Status),
		ReturnLoss:         adj.ReturnLoss,
		UserID:             userID,
	}
	if b.Adjustment != nil {
		row.ID = b.Adjustment.ID
		row.CreatedAt = b.Adjustment.CreatedAt
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	return adj, nil
}
