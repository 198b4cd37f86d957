package models

import "time"

// ProviderCredential stores an encrypted BYOK upstream credential. One row
// exists per (project, provider) pair; writes are upserts on that composite.
type ProviderCredential struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	ProjectID string   `gorm:"type:varchar(36);not null;uniqueIndex:idx_provider_credentials_project_provider"` // Owning project ID.
	Project   *Project `gorm:"foreignKey:ProjectID"`                                                            // Owning project.

	Provider string `gorm:"type:varchar(64);not null;uniqueIndex:idx_provider_credentials_project_provider"` // Upstream provider name.

	EncryptedKey string `gorm:"type:text;not null"` // Vault ciphertext, base64.
	KeyHint      string `gorm:"type:char(4)"`       // Last 4 chars of the plaintext key.

	IsActive     bool   `gorm:"not null;default:true"` // Inactive credentials are skipped at resolve time.
	DefaultModel string `gorm:"type:text"`             // Optional preferred model for this provider.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
