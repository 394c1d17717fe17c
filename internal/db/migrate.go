package db

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/diewo77/go-pharmacy/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// Register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database. Postgres is retried while the server starts.
func Connect(driver, dsn string, debug bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is empty, check the environment")
	}
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	if driver == "sqlite" {
		db, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	}

	var db *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		log.Printf("Retrying DB connection (%d/10): %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	log.Println("[DB] Using DSN:", MaskDSN(dsn))
	return db, nil
}

var (
	kvPassword  = regexp.MustCompile(`(password=)([^\s]+)`)
	urlPassword = regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)
)

// MaskDSN hides the password of a key=value or URL connection string.
func MaskDSN(dsn string) string {
	dsn = kvPassword.ReplaceAllString(dsn, `${1}***`)
	return urlPassword.ReplaceAllString(dsn, `${1}***${3}`)
}

// Models lists every table, parents first.
func Models() []interface{} {
	return []interface{}{
		// Auth & Authorization
		&models.Permission{},
		&models.Profile{},
		&models.Employee{},
		&models.User{},
		// Catalog
		&models.Category{},
		&models.Subcategory{},
		&models.Brand{},
		&models.Supplier{},
		&models.Drug{},
		&models.Conversion{},
		// Documents
		&models.PurchaseRequest{},
		&models.PurchaseRequestItem{},
		&models.ReturnMemo{},
		&models.ReturnBill{},
		&models.ReturnBillItem{},
		&models.ReturnAdjustment{},
	}
}

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	for _, table := range []string{"users", "drugs", "purchase_requests", "return_bills"} {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// MigrateSQL applies the SQL files in dir with golang-migrate. databaseURL
// must be a postgres:// URL.
func MigrateSQL(databaseURL, dir string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
