package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/persiamall/storefront/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestCartMigrationEnforcesOneCartPerOwner(t *testing.T) {
	content := readMigration(t, "create_users_and_carts")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS carts",
		"CONSTRAINT ux_carts_store_owner UNIQUE (store_id, owner_key)",
		"CONSTRAINT ux_cart_items_cart_instance UNIQUE (cart_id, product_instance_id)",
		"CONSTRAINT chk_cart_items_quantity CHECK (quantity > 0)",
		"REFERENCES carts(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS cart_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "create_stores_and_catalog")
	for _, sub := range []string{
		"CONSTRAINT chk_product_instances_stock CHECK (stock_quantity >= 0)",
		"price numeric(12,0) NOT NULL",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_stores_domain ON stores (lower(domain))",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Cart Notes")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_cart_notes.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.ValidateEmbedded(); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestValidateDirRejectsDownBeforeUp(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x();\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_swap.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected ordering error")
	}
}

func TestCreateSQLMigrationNeverReusesVersion(t *testing.T) {
	dir := t.TempDir()
	future := filepath.Join(dir, "29991231235959_future.sql")
	if err := os.WriteFile(future, []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	path, err := migrate.CreateSQLMigration(dir, "add order notes!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "29991231235960_add_order_notes.sql" {
		t.Fatalf("unexpected migration name %s", filepath.Base(path))
	}
}
