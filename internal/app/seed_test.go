package app

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cencori/gateway/internal/models"
	"github.com/cencori/gateway/internal/security"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Admin{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestSeedAdmin_CreatesFirstAccount(t *testing.T) {
	conn := newTestDB(t)

	if errSeed := SeedAdmin(conn, "root", "letmein"); errSeed != nil {
		t.Fatalf("seed admin: %v", errSeed)
	}

	var admin models.Admin
	if errFind := conn.Where("username = ?", "root").First(&admin).Error; errFind != nil {
		t.Fatalf("load admin: %v", errFind)
	}
	if admin.Password == "letmein" {
		t.Fatal("password must be stored hashed")
	}
	if !security.VerifyPassword(admin.Password, "letmein") {
		t.Fatal("stored hash must verify")
	}
}

func TestSeedAdmin_SkipsWhenAdminExists(t *testing.T) {
	conn := newTestDB(t)
	if errSeed := SeedAdmin(conn, "root", "letmein"); errSeed != nil {
		t.Fatalf("seed admin: %v", errSeed)
	}

	if errSeed := SeedAdmin(conn, "second", "password"); errSeed != nil {
		t.Fatalf("second seed: %v", errSeed)
	}
	var count int64
	conn.Model(&models.Admin{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 admin, got %d", count)
	}
}

func TestSeedAdmin_RejectsShortPassword(t *testing.T) {
	conn := newTestDB(t)
	if errSeed := SeedAdmin(conn, "root", "short"); errSeed == nil {
		t.Fatal("expected error for short password")
	}
}

func TestSeedAdminFromEnv(t *testing.T) {
	conn := newTestDB(t)

	t.Setenv(EnvAdminUsername, "")
	t.Setenv(EnvAdminPassword, "")
	if errSeed := SeedAdminFromEnv(conn); errSeed != nil {
		t.Fatalf("seed with empty env: %v", errSeed)
	}
	exists, errCheck := HasAdmin(conn)
	if errCheck != nil {
		t.Fatalf("has admin: %v", errCheck)
	}
	if exists {
		t.Fatal("empty env must not seed an admin")
	}

	t.Setenv(EnvAdminUsername, "root")
	t.Setenv(EnvAdminPassword, "letmein")
	if errSeed := SeedAdminFromEnv(conn); errSeed != nil {
		t.Fatalf("seed from env: %v", errSeed)
	}
	exists, _ = HasAdmin(conn)
	if !exists {
		t.Fatal("expected seeded admin")
	}
}
