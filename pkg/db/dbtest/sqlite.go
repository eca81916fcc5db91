// Package dbtest opens throwaway sqlite databases for repository tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/persiamall/storefront/pkg/db/models"
)

// quietLogger keeps expected not-found lookups out of test output.
var quietLogger = gormlogger.Default.LogMode(gormlogger.Silent)

// Open returns an isolated in-memory database with every model migrated.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_busy_timeout=5000", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 quietLogger,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

// Catalog is a seeded store with one active product and instance.
type Catalog struct {
	Store    models.Store
	Product  models.Product
	Instance models.ProductInstance
}

// SeedCatalog creates a store, product (with a cover image) and instance.
func SeedCatalog(t testing.TB, conn *gorm.DB, domain string, price int64, stock int) Catalog {
	t.Helper()
	store := models.Store{Name: "فروشگاه " + domain, Domain: domain, IsActive: true, OrderPrefix: "TST"}
	mustCreate(t, conn, &store)

	product := models.Product{StoreID: store.ID, Name: "محصول آزمایشی", IsActive: true}
	mustCreate(t, conn, &product)
	mustCreate(t, conn, &models.ProductImage{ProductID: product.ID, URL: "https://cdn.example.ir/cover.jpg", Position: 0})

	instance := SeedInstance(t, conn, product.ID, "SKU-"+strings.ToUpper(uuid.NewString()[:6]), price, stock)
	return Catalog{Store: store, Product: product, Instance: instance}
}

// SeedInstance adds another active instance to an existing product.
func SeedInstance(t testing.TB, conn *gorm.DB, productID uuid.UUID, sku string, price int64, stock int) models.ProductInstance {
	t.Helper()
	instance := models.ProductInstance{
		ProductID:     productID,
		SKU:           sku,
		Price:         decimal.NewFromInt(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	mustCreate(t, conn, &instance)
	return instance
}

// Clock returns a fixed time source for deterministic tests.
func Clock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func mustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
