package models

import "time"

// Usage statuses recorded for terminal pipeline states.
const (
	UsageStatusSuccess  = "success"
	UsageStatusError    = "error"
	UsageStatusFiltered = "filtered"
)

// Usage is an append-only audit and billing record; exactly one row is
// written per gateway invocation that reaches credential resolution.
type Usage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RequestID string `gorm:"type:varchar(36);not null;index"` // Gateway request UUID.

	ProjectID string  `gorm:"type:varchar(36);not null;index"` // Owning project ID.
	APIKeyID  *string `gorm:"type:varchar(36);index"`          // Authenticating key ID.

	Provider string `gorm:"type:varchar(64);not null"` // Upstream provider served (or attempted).
	Model    string `gorm:"type:text;not null"`        // Model requested.
	Endpoint string `gorm:"type:varchar(64)"`          // Gateway endpoint name.

	Status string `gorm:"type:varchar(16);not null;index"` // success, error or filtered.

	PromptTokens     int64 `gorm:"not null;default:0"` // Prompt token count.
	CompletionTokens int64 `gorm:"not null;default:0"` // Completion token count.
	TotalTokens      int64 `gorm:"not null;default:0"` // Total token count.

	CostUSD   float64 `gorm:"type:decimal(20,10);not null;default:0"` // Estimated cost.
	LatencyMs int64   `gorm:"not null;default:0"`                     // End-to-end latency.

	Cached           bool   `gorm:"not null;default:false"` // Whether a cache tier served the response.
	FallbackProvider string `gorm:"type:varchar(64)"`       // Provider used after fallback, if any.
	FallbackModel    string `gorm:"type:text"`              // Model used after fallback, if any.
	ErrorMessage     string `gorm:"type:text"`              // Sanitized failure description.

	RequestedAt time.Time `gorm:"not null;index"`          // Request start time.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Row creation timestamp.
}
