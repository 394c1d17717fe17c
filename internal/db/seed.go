package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/go-pharmacy/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedOptions controls what Seed creates besides permissions and profiles.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	// DemoCatalog adds a supplier and a few drugs for local runs.
	DemoCatalog bool
}

// Seed initializes the database with required seed data.
// Should be called after Migrate. It is idempotent.
func Seed(db *gorm.DB, opts SeedOptions) error {
	if err := SeedProfiles(db); err != nil {
		return fmt.Errorf("seed profiles: %w", err)
	}
	if opts.AdminEmail != "" && opts.AdminPassword != "" {
		if err := SeedAdmin(db, opts.AdminEmail, opts.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}
	if opts.DemoCatalog {
		if err := SeedDemoCatalog(db); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	return nil
}

var documentResources = []string{"purchase_request", "return_bill", "return_memo"}

// SeedPermissions creates the resource:action pairs the gate checks.
func SeedPermissions(db *gorm.DB) error {
	permissions := []struct {
		ResourceType string
		Action       string
		Description  string
	}{
		{"*", "*", "Full system access"},
		{"catalog", "*", "All catalog actions"},
		{"catalog", "list", "List catalog entries"},
		{"catalog", "view", "View catalog entries"},
		{"user", "*", "All user management"},
		{"user", "list", "List users"},
		{"user", "view", "View user details"},
		{"profile", "*", "All profile management"},
		{"profile", "list", "List profiles"},
		{"profile", "view", "View profile details"},
		{"return_bill", "adjust", "Record return adjustments"},
	}
	for _, res := range documentResources {
		label := strings.ReplaceAll(res, "_", " ")
		for _, a := range []struct{ action, desc string }{
			{"*", "All " + label + " actions"},
			{"list", "List " + label + "s"},
			{"view", "View " + label + " details"},
			{"create", "Create " + label + "s"},
			{"update", "Edit " + label + "s"},
			{"delete", "Delete " + label + "s"},
			{"initiate", "Initiate or revert " + label + "s"},
			{"dispatch", "Send " + label + "s to suppliers"},
			{"export", "Export " + label + "s"},
		} {
			permissions = append(permissions, struct {
				ResourceType string
				Action       string
				Description  string
			}{res, a.action, a.desc})
		}
	}

	for _, p := range permissions {
		perm := models.Permission{
			ResourceType: p.ResourceType,
			Action:       p.Action,
			Description:  p.Description,
		}
		result := db.Where("resource_type = ? AND action = ?", p.ResourceType, p.Action).
			FirstOrCreate(&perm)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// SeedProfiles creates the default system profiles with their permissions.
func SeedProfiles(db *gorm.DB) error {
	if err := SeedPermissions(db); err != nil {
		return err
	}

	profiles := []struct {
		Name        string
		Description string
		Permissions []string
	}{
		{
			Name:        "admin",
			Description: "Full system administrator with all permissions",
			Permissions: []string{"*:*"},
		},
		{
			Name:        "pharmacist",
			Description: "Manage and send purchase requests and returns",
			Permissions: []string{
				"catalog:*",
				"purchase_request:*",
				"return_bill:*",
				"return_memo:*",
			},
		},
		{
			Name:        "clerk",
			Description: "Prepare documents; cannot send them",
			Permissions: []string{
				"catalog:list", "catalog:view",
				"purchase_request:list", "purchase_request:view", "purchase_request:create",
				"purchase_request:update", "purchase_request:initiate",
				"return_bill:list", "return_bill:view", "return_bill:create",
				"return_bill:update", "return_bill:initiate",
				"return_memo:list", "return_memo:view",
			},
		},
		{
			Name:        "viewer",
			Description: "Read-only access",
			Permissions: []string{
				"catalog:list", "catalog:view",
				"purchase_request:list", "purchase_request:view",
				"return_bill:list", "return_bill:view",
				"return_memo:list", "return_memo:view",
			},
		},
	}

	for _, p := range profiles {
		var profile models.Profile
		err := db.Where("name = ?", p.Name).First(&profile).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			profile = models.Profile{Name: p.Name, Description: p.Description, IsSystem: true}
			if err := db.Create(&profile).Error; err != nil {
				return err
			}
		}

		var perms []models.Permission
		for _, code := range p.Permissions {
			resource, action, ok := strings.Cut(code, ":")
			if !ok {
				return fmt.Errorf("malformed permission %q", code)
			}
			var perm models.Permission
			if err := db.Where("resource_type = ? AND action = ?", resource, action).First(&perm).Error; err != nil {
				return fmt.Errorf("permission %s: %w", code, err)
			}
			perms = append(perms, perm)
		}
		if err := db.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin creates the admin account when it does not exist. An existing
// account keeps its password.
func SeedAdmin(db *gorm.DB, email, password string) error {
	var admin models.Profile
	if err := db.Where("name = ?", "admin").First(&admin).Error; err != nil {
		return err
	}
	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Email:     email,
		Name:      "Administrator",
		Password:  string(hash),
		ProfileID: &admin.ID,
	}).Error
}

// SeedDemoCatalog adds one supplier with a handful of drugs. It does nothing
// when the supplier already exists.
func SeedDemoCatalog(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Supplier{}).Where("name = ?", "Central Wholesale").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		supplier := models.Supplier{Name: "Central Wholesale", Email: "orders@central-wholesale.example", ContactPerson: "Orders desk"}
		if err := tx.Create(&supplier).Error; err != nil {
			return err
		}
		category := models.Category{Name: "Antibiotics", Subcategories: []models.Subcategory{{Name: "Penicillins"}}}
		if err := tx.Create(&category).Error; err != nil {
			return err
		}
		analgesics := models.Category{Name: "Analgesics"}
		if err := tx.Create(&analgesics).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Employee{Name: "Store Manager", Position: "Manager"}).Error; err != nil {
			return err
		}

		dec := decimal.RequireFromString
		drugs := []models.Drug{
			{
				Code: "AMX500", Name: "Amoxicillin", GenericName: "Amoxicillin", Form: "Capsule", Strength: "500mg",
				CategoryID: &category.ID, SubcategoryID: &category.Subcategories[0].ID,
				SupplierID: supplier.ID, UnitPrice: dec("2.50"),
				StockUnits: dec("40"), ReorderLevel: dec("100"),
				Conversions: []models.Conversion{
					{Label: "Strip", UnitsPerPack: dec("10"), UnitType: "Capsule", Position: 0},
					{Label: "Box", UnitsPerPack: dec("100"), UnitType: "Capsule", Position: 1},
				},
			},
			{
				Code: "PCM500", Name: "Paracetamol", GenericName: "Acetaminophen", Form: "Tablet", Strength: "500mg",
				CategoryID: &analgesics.ID, SupplierID: supplier.ID, UnitPrice: dec("1.20"),
				StockUnits: dec("500"), ReorderLevel: dec("200"),
				Conversions: []models.Conversion{
					{Label: "Strip", UnitsPerPack: dec("12"), UnitType: "Tablet", Position: 0},
				},
			},
			{
				Code: "IBU-SYR", Name: "Ibuprofen Syrup", Form: "Syrup", Strength: "100mg/5ml",
				CategoryID: &analgesics.ID, SupplierID: supplier.ID, UnitPrice: dec("4.75"),
			},
		}
		return tx.Create(&drugs).Error
	})
}
