package models

import "time"

// Project is the unit of tenancy the gateway authenticates against.
type Project struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	OrganizationID string        `gorm:"type:varchar(36);not null;index"` // Owning organization ID.
	Organization   *Organization `gorm:"foreignKey:OrganizationID"`       // Owning organization.

	Name string `gorm:"type:text;not null"` // Display name.

	DefaultProvider string `gorm:"type:varchar(64)"` // Provider used when the model gives no hint.
	DefaultModel    string `gorm:"type:text"`        // Model used when the request omits one.

	RateLimitPerMinute int `gorm:"not null;default:60"` // Gateway requests allowed per minute.

	APIKeys             []APIKey             `gorm:"foreignKey:ProjectID"` // Issued gateway keys.
	ProviderCredentials []ProviderCredential `gorm:"foreignKey:ProjectID"` // BYOK provider credentials.
	Webhooks            []Webhook            `gorm:"foreignKey:ProjectID"` // Registered webhooks.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
