package models

import "time"

// Organization is the billing tenant that owns projects.
type Organization struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	Name string `gorm:"type:text;not null"`                    // Display name.
	Slug string `gorm:"type:varchar(64);not null;uniqueIndex"` // URL-safe identifier.

	SubscriptionTier    string `gorm:"type:varchar(32);not null;default:'free'"` // Billing tier; updated by billing ingestion.
	MonthlyRequestsUsed int64  `gorm:"not null;default:0"`                       // Requests consumed this cycle.
	MonthlyRequestLimit int64  `gorm:"not null;default:1000"`                    // Requests allowed per cycle.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
