package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/diewo77/go-pharmacy/internal/apperr"
	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/diewo77/go-pharmacy/internal/document"
	"github.com/diewo77/go-pharmacy/internal/lifecycle"
	"github.com/diewo77/go-pharmacy/internal/metrics"
	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/diewo77/go-pharmacy/internal/sheet"
	"gorm.io/gorm"
)

// ErrNotEditable is returned when a document has left not_initiated.
var ErrNotEditable = fmt.Errorf("%w: document is no longer editable", apperr.ErrConflict)

// PurchaseInput is the editable part of a purchase request.
type PurchaseInput struct {
	SupplierID    uint        `json:"supplier_id"`
	RequestedByID *uint       `json:"requested_by_id,omitempty"`
	IssuedAt      *time.Time  `json:"issued_at,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	Items         []LineInput `json:"items"`
}

// DocumentFilter narrows document lists. Zero fields are ignored.
type DocumentFilter struct {
	Status     lifecycle.Status
	SupplierID uint
	From, To   time.Time
}

func (f DocumentFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SupplierID != 0 {
		q = q.Where("supplier_id = ?", f.SupplierID)
	}
	if !f.From.IsZero() {
		q = q.Where("issued_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("issued_at < ?", f.To)
	}
	return q
}

type PurchaseService struct {
	db      *gorm.DB
	catalog *CatalogService
	now     func() time.Time
}

func NewPurchaseService(db *gorm.DB, catalog *CatalogService) *PurchaseService {
	return &PurchaseService{db: db, catalog: catalog, now: time.Now}
}

func (s *PurchaseService) List(ctx context.Context, f DocumentFilter) ([]models.PurchaseRequest, error) {
	var out []models.PurchaseRequest
	err := f.apply(s.db.WithContext(ctx)).
		Preload("Supplier").
		Preload("RequestedBy").
		Preload("Items", orderByPosition).
		Preload("Items.Conversion").
		Preload("Items.Drug", unscoped).
		Order("issued_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (s *PurchaseService) Get(ctx context.Context, id uint) (*models.PurchaseRequest, error) {
	var pr models.PurchaseRequest
	err := s.db.WithContext(ctx).
		Preload("Supplier").
		Preload("RequestedBy").
		Preload("Items", orderByPosition).
		Preload("Items.Conversion").
		Preload("Items.Drug", unscoped).
		Preload("Items.Drug.Conversions", orderByPosition).
		Preload("Items.Drug.Supplier", unscoped).
		Preload("Items.Drug.Brand").
		First(&pr, id).Error
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// NextNumber previews the number the next request of this year would get.
func (s *PurchaseService) NextNumber(ctx context.Context) (string, error) {
	return models.GenerateNumber(s.db.WithContext(ctx), &models.PurchaseRequest{}, models.PrefixPurchaseRequest, s.now().Year())
}

func (s *PurchaseService) Create(ctx context.Context, userID uint, in PurchaseInput) (*models.PurchaseRequest, error) {
	pr := models.PurchaseRequest{UserID: userID, IssuedAt: s.now()}
	if err := s.apply(ctx, &pr, userID, in); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := models.GenerateNumber(tx, &models.PurchaseRequest{}, models.PrefixPurchaseRequest, pr.IssuedAt.Year())
		if err != nil {
			return err
		}
		pr.Number = number
		pr.Status = lifecycle.StatusNotInitiated
		return tx.Omit("Supplier", "RequestedBy").Create(&pr).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, pr.ID)
}

// Update replaces the header and items of a request still in not_initiated.
func (s *PurchaseService) Update(ctx context.Context, id, userID uint, in PurchaseInput) (*models.PurchaseRequest, error) {
	pr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !pr.CanEdit() {
		return nil, ErrNotEditable
	}
	if err := s.apply(ctx, pr, userID, in); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PurchaseRequest{}).
			Where("id = ? AND status = ?", pr.ID, lifecycle.StatusNotInitiated).
			Updates(map[string]interface{}{
				"supplier_id":     pr.SupplierID,
				"requested_by_id": pr.RequestedByID,
				"issued_at":       pr.IssuedAt,
				"notes":           pr.Notes,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotEditable
		}
		if err := tx.Where("purchase_request_id = ?", pr.ID).Delete(&models.PurchaseRequestItem{}).Error; err != nil {
			return err
		}
		for i := range pr.Items {
			pr.Items[i].PurchaseRequestID = pr.ID
		}
		if len(pr.Items) > 0 {
			return tx.Create(&pr.Items).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// apply validates in and copies it onto pr. The items are checked by
// assembling them exactly as a send would.
func (s *PurchaseService) apply(ctx context.Context, pr *models.PurchaseRequest, userID uint, in PurchaseInput) error {
	if in.SupplierID == 0 {
		return apperr.Validation("supplier_id", apperr.ReasonRequired)
	}
	sup, err := s.catalog.Supplier(ctx, in.SupplierID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Validation("supplier_id", apperr.ReasonUnknown)
	}
	if err != nil {
		return err
	}
	requester, err := s.requester(ctx, userID, in.RequestedByID)
	if err != nil {
		return err
	}
	rows, err := BuildLines(ctx, s.catalog, in.Items)
	if err != nil {
		return err
	}
	if in.IssuedAt != nil {
		pr.IssuedAt = *in.IssuedAt
	}
	h := document.Header{Kind: document.KindPurchaseRequest, IssuedAt: pr.IssuedAt, CounterpartyID: sup.ID, CounterpartyName: sup.Name}
	if _, err := document.Assemble(h, rows.Chosen); err != nil {
		return err
	}

	pr.SupplierID = sup.ID
	pr.Supplier = sup
	pr.RequestedByID = nil
	if requester != nil {
		pr.RequestedByID = &requester.ID
	}
	pr.Notes = strings.TrimSpace(in.Notes)
	pr.Items = make([]models.PurchaseRequestItem, 0, len(rows.Chosen))
	for i, li := range rows.Chosen {
		pr.Items = append(pr.Items, models.PurchaseRequestItem{Line: models.LineFrom(li, i)})
	}
	return nil
}

// requester resolves the explicit employee or falls back to the one linked
// to the operator.
func (s *PurchaseService) requester(ctx context.Context, userID uint, id *uint) (*models.Employee, error) {
	if id == nil {
		var u models.User
		if err := s.db.WithContext(ctx).Preload("Employee").First(&u, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return u.Employee, nil
	}
	e, err := s.catalog.Employee(ctx, *id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("requested_by_id", apperr.ReasonUnknown)
	}
	return e, err
}

// Delete soft-deletes a request still in not_initiated.
func (s *PurchaseService) Delete(ctx context.Context, id uint) error {
	pr, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !pr.CanEdit() {
		return ErrNotEditable
	}
	res := s.db.WithContext(ctx).Where("status = ?", lifecycle.StatusNotInitiated).Delete(&models.PurchaseRequest{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotEditable
	}
	return nil
}

// LineItems rebuilds the stored items. Items of a request that left
// not_initiated keep the pack type they were saved with.
func (s *PurchaseService) LineItems(pr *models.PurchaseRequest) ([]*conversion.LineItem, error) {
	out := make([]*conversion.LineItem, 0, len(pr.Items))
	for i, it := range pr.Items {
		if it.Drug == nil {
			return nil, apperr.Invariant("purchase request %d item %d has no drug", pr.ID, it.ID)
		}
		li, err := storedLine(it.Line, it.Drug.Engine(), !pr.CanEdit())
		if err != nil {
			return nil, rowErr(i, err)
		}
		out = append(out, li)
	}
	return out, nil
}

// Load assembles the stored request.
func (s *PurchaseService) Load(ctx context.Context, id uint) (*document.Document, error) {
	pr, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.LineItems(pr)
	if err != nil {
		return nil, err
	}
	h := document.Header{
		Kind:       document.KindPurchaseRequest,
		DocumentID: pr.ID,
		Number:     pr.Number,
		IssuedAt:   pr.IssuedAt,
	}
	counterparty(&h, pr.SupplierID, pr.Supplier)
	if pr.RequestedBy != nil {
		h.Requester = pr.RequestedBy.Name
	}
	doc, err := document.Assemble(h, items)
	if err != nil {
		return nil, err
	}
	metrics.DocumentsAssembled.WithLabelValues(string(document.KindPurchaseRequest)).Inc()
	return doc, nil
}

func (s *PurchaseService) SaveStatus(ctx context.Context, id uint, st lifecycle.Status) error {
	return saveStatus(s.db.WithContext(ctx), &models.PurchaseRequest{}, id, st, s.now())
}

// Import reads an xlsx of code, pack_type, quantity rows into line items.
// A non-zero supplierID rejects drugs of other suppliers.
func (s *PurchaseService) Import(ctx context.Context, r io.Reader, supplierID uint) ([]*conversion.LineItem, error) {
	lines, err := sheet.ReadImport(r)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(lines))
	for _, l := range lines {
		codes = append(codes, l.Code)
	}
	drugs, err := s.catalog.DrugsByCode(ctx, codes)
	if err != nil {
		return nil, err
	}

	out := make([]*conversion.LineItem, 0, len(lines))
	for _, l := range lines {
		md, ok := drugs[l.Code]
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("row[%d].code", l.Row), apperr.ReasonUnknown)
		}
		if supplierID != 0 && md.SupplierID != supplierID {
			return nil, &apperr.ValidationError{Field: fmt.Sprintf("row[%d].code", l.Row), Reason: apperr.ReasonMixedSupplier, Limit: fmt.Sprint(supplierID)}
		}
		d := md.Engine()
		li := conversion.NewLineItem(d)
		if l.PackType != "" {
			c, ok := d.ConversionByLabel(l.PackType)
			if !ok {
				return nil, apperr.Validation(fmt.Sprintf("row[%d].pack_type", l.Row), apperr.ReasonUnknown)
			}
			if err := li.SelectPackType(c); err != nil {
				return nil, err
			}
		}
		if err := li.SetOrderQuantity(l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, nil
}

// Export writes the requests matching f as an xlsx workbook.
func (s *PurchaseService) Export(ctx context.Context, w io.Writer, f DocumentFilter) error {
	list, err := s.List(ctx, f)
	if err != nil {
		return err
	}
	rows := make([]sheet.ExportRow, 0, len(list))
	for _, pr := range list {
		row := sheet.ExportRow{
			Number:   pr.Number,
			Date:     pr.IssuedAt,
			Variants: map[string][]string{},
			Status:   pr.LifecycleStatus().Label(),
		}
		if pr.Supplier != nil {
			row.Counterparty = pr.Supplier.Name
		}
		for _, it := range pr.Items {
			addVariant(row.Variants, it.Conversion, it.Drug)
		}
		rows = append(rows, row)
	}
	return sheet.WriteExport(w, rows)
}
