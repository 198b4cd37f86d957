package db

import (
	"path/filepath"
	"testing"

	"github.com/cencori/gateway/internal/models"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	conn, errOpen := Open(filepath.Join(t.TempDir(), "gateway.db"))
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	if !IsSQLite(conn) {
		t.Fatalf("expected sqlite dialect, got %q", DialectName(conn))
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	// Running twice must be idempotent.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}

	org := models.Organization{ID: "org-1", Name: "Acme", Slug: "acme"}
	if errCreate := conn.Create(&org).Error; errCreate != nil {
		t.Fatalf("create org: %v", errCreate)
	}
	project := models.Project{ID: "proj-1", OrganizationID: "org-1", Name: "Prod"}
	if errCreate := conn.Create(&project).Error; errCreate != nil {
		t.Fatalf("create project: %v", errCreate)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	if _, errOpen := Open("  "); errOpen == nil {
		t.Fatal("expected empty dsn to fail")
	}
}

func TestCaseInsensitiveLikeExpr(t *testing.T) {
	conn, errOpen := Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	if got := CaseInsensitiveLikeExpr(conn, "name"); got != "LOWER(name) LIKE ?" {
		t.Fatalf("unexpected sqlite expr %q", got)
	}
	if got := NormalizeLikePattern(conn, "%Foo%"); got != "%foo%" {
		t.Fatalf("unexpected sqlite pattern %q", got)
	}
}
