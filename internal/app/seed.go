package app

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/models"
	"github.com/cencori/gateway/internal/security"
)

// Environment variables seeding the first management account.
const (
	EnvAdminUsername = "ADMIN_USERNAME"
	EnvAdminPassword = "ADMIN_PASSWORD"
)

// HasAdmin reports whether any admin account exists.
func HasAdmin(conn *gorm.DB) (bool, error) {
	var count int64
	if errCount := conn.Model(&models.Admin{}).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("app: count admins: %w", errCount)
	}
	return count > 0, nil
}

// SeedAdminFromEnv creates the first admin account from ADMIN_USERNAME and
// ADMIN_PASSWORD. It is a no-op when an admin already exists or when the
// variables are unset; the management API is unreachable until one exists.
func SeedAdminFromEnv(conn *gorm.DB) error {
	username := strings.TrimSpace(os.Getenv(EnvAdminUsername))
	password := os.Getenv(EnvAdminPassword)
	if username == "" || password == "" {
		return nil
	}
	return SeedAdmin(conn, username, password)
}

// SeedAdmin creates the first admin account when none exists.
func SeedAdmin(conn *gorm.DB, username, password string) error {
	exists, errCheck := HasAdmin(conn)
	if errCheck != nil {
		return errCheck
	}
	if exists {
		return nil
	}
	if len(password) < 6 {
		return fmt.Errorf("app: admin password must be at least 6 characters")
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("app: seed admin: %w", errHash)
	}
	admin := models.Admin{Username: username, Password: hash}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("app: seed admin: %w", errCreate)
	}
	log.Infof("seeded initial admin account %q", username)
	return nil
}
