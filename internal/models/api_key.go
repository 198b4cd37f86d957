package models

import "time"

// APIKey is a tenant-facing gateway credential. Only the SHA-256 digest of
// the secret is stored; the raw key is shown once at creation time.
type APIKey struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	ProjectID string   `gorm:"type:varchar(36);not null;index"` // Owning project ID.
	Project   *Project `gorm:"foreignKey:ProjectID"`            // Owning project.

	Name      string `gorm:"type:text;not null"`                    // Display name.
	KeyPrefix string `gorm:"type:varchar(8);not null"`              // First 8 chars, shown in listings.
	KeyHash   string `gorm:"type:char(64);not null;uniqueIndex"`    // SHA-256 hex of the secret.
	LastFour  string `gorm:"type:char(4)"`                          // Last 4 chars for masked display.

	LastUsedAt *time.Time `gorm:""`      // Stamped on successful authentication.
	RevokedAt  *time.Time `gorm:"index"` // Soft delete; excludes the key from lookups.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
