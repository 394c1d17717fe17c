package services

import (
	"context"
	"strings"

	"github.com/diewo77/go-pharmacy/internal/conversion"
	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogService reads the drug catalog. The catalog is maintained elsewhere;
// nothing here writes to it.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := s.db.WithContext(ctx).Preload("Subcategories").Order("name").Find(&out).Error
	return out, err
}

// Subcategories lists subcategories, optionally of one category.
func (s *CatalogService) Subcategories(ctx context.Context, categoryID uint) ([]models.Subcategory, error) {
	q := s.db.WithContext(ctx).Order("name")
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	var out []models.Subcategory
	return out, q.Find(&out).Error
}

func (s *CatalogService) Brands(ctx context.Context) ([]models.Brand, error) {
	var out []models.Brand
	return out, s.db.WithContext(ctx).Order("name").Find(&out).Error
}

func (s *CatalogService) Suppliers(ctx context.Context) ([]models.Supplier, error) {
	var out []models.Supplier
	return out, s.db.WithContext(ctx).Order("name").Find(&out).Error
}

func (s *CatalogService) Supplier(ctx context.Context, id uint) (*models.Supplier, error) {
	var sup models.Supplier
	if err := s.db.WithContext(ctx).First(&sup, id).Error; err != nil {
		return nil, err
	}
	return &sup, nil
}

func (s *CatalogService) Employees(ctx context.Context) ([]models.Employee, error) {
	var out []models.Employee
	return out, s.db.WithContext(ctx).Order("name").Find(&out).Error
}

func (s *CatalogService) Employee(ctx context.Context, id uint) (*models.Employee, error) {
	var e models.Employee
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// DrugFilter narrows Drugs. Zero fields are ignored.
type DrugFilter struct {
	SupplierID    uint
	CategoryID    uint
	SubcategoryID uint
	BrandID       uint
	// Query matches code, name or generic name, case-insensitively.
	Query string
}

func (s *CatalogService) drugs(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Conversions", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Supplier").
		Preload("Brand")
}

func (s *CatalogService) Drugs(ctx context.Context, f DrugFilter) ([]models.Drug, error) {
	q := s.drugs(ctx).Order("name")
	if f.SupplierID != 0 {
		q = q.Where("supplier_id = ?", f.SupplierID)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.SubcategoryID != 0 {
		q = q.Where("subcategory_id = ?", f.SubcategoryID)
	}
	if f.BrandID != 0 {
		q = q.Where("brand_id = ?", f.BrandID)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR LOWER(generic_name) LIKE ?", like, like, like)
	}
	var out []models.Drug
	return out, q.Find(&out).Error
}

func (s *CatalogService) Drug(ctx context.Context, id uint) (*models.Drug, error) {
	var d models.Drug
	if err := s.drugs(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// DrugsByCode loads drugs keyed by code.
func (s *CatalogService) DrugsByCode(ctx context.Context, codes []string) (map[string]models.Drug, error) {
	var list []models.Drug
	if len(codes) > 0 {
		if err := s.drugs(ctx).Where("code IN ?", codes).Find(&list).Error; err != nil {
			return nil, err
		}
	}
	out := make(map[string]models.Drug, len(list))
	for _, d := range list {
		out[d.Code] = d
	}
	return out, nil
}

// Conversions lists the pack types of a drug in catalog order.
func (s *CatalogService) Conversions(ctx context.Context, drugID uint) ([]models.Conversion, error) {
	if _, err := s.Drug(ctx, drugID); err != nil {
		return nil, err
	}
	var out []models.Conversion
	return out, s.db.WithContext(ctx).Where("drug_id = ?", drugID).Order("position, id").Find(&out).Error
}

// Table loads the given drugs as engine views together with their
// conversion table. Unknown ids are absent from the map.
func (s *CatalogService) Table(ctx context.Context, drugIDs []uint) (*conversion.Table, map[uint]conversion.Drug, error) {
	var list []models.Drug
	if len(drugIDs) > 0 {
		if err := s.drugs(ctx).Where("id IN ?", drugIDs).Find(&list).Error; err != nil {
			return nil, nil, err
		}
	}
	table, _ := conversion.NewTable()
	drugs := make(map[uint]conversion.Drug, len(list))
	for i := range list {
		d := list[i].Engine()
		if err := table.Add(d); err != nil {
			return nil, nil, err
		}
		drugs[d.ID] = d
	}
	return table, drugs, nil
}

// LowStock suggests one line per drug at or below its reorder level, sized to
// bring the stock back to the reorder level in whole packs of the first pack
// type. supplierID 0 means all suppliers.
func (s *CatalogService) LowStock(ctx context.Context, supplierID uint) ([]*conversion.LineItem, error) {
	list, err := s.Drugs(ctx, DrugFilter{SupplierID: supplierID})
	if err != nil {
		return nil, err
	}
	var out []*conversion.LineItem
	for i := range list {
		d := &list[i]
		if !d.LowStock() {
			continue
		}
		li := conversion.NewLineItem(d.Engine())
		if err := li.SetOrderQuantity(SuggestedPacks(d, li.PackType)); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, nil
}

// SuggestedPacks is the whole number of packs covering the shortfall below
// the reorder level, at least one.
func SuggestedPacks(d *models.Drug, pack *conversion.Conversion) decimal.Decimal {
	short := d.ReorderLevel.Sub(d.StockUnits)
	if pack != nil && pack.UnitsPerPack.IsPositive() {
		short = short.Div(pack.UnitsPerPack)
	}
	n := short.Ceil()
	if n.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return n
}
