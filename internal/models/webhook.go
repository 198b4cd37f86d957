package models

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook is a tenant-registered endpoint for asynchronous event delivery.
// The dispatcher only mutates failure bookkeeping; it never disables rows.
type Webhook struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	ProjectID string   `gorm:"type:varchar(36);not null;index"` // Owning project ID.
	Project   *Project `gorm:"foreignKey:ProjectID"`            // Owning project.

	URL    string `gorm:"type:text;not null"` // Delivery endpoint.
	Secret string `gorm:"type:text"`          // HMAC secret; empty means unsigned delivery.

	Events datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Subscribed event names.

	IsActive bool `gorm:"not null;default:true"` // Inactive registrations are never triggered.

	FailureCount    int        `gorm:"not null;default:0"` // Consecutive delivery failures.
	LastTriggeredAt *time.Time `gorm:""`                   // Stamped on successful delivery.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
