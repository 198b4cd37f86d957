// Package usage persists per-request audit rows and organization counters.
package usage

import (
	"context"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/models"
)

// Record captures everything one terminal pipeline state needs persisted.
type Record struct {
	RequestID        string
	ProjectID        string
	OrganizationID   string
	APIKeyID         *string
	Provider         string
	Model            string
	Endpoint         string
	Status           string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMs        int64
	Cached           bool
	FallbackProvider string
	FallbackModel    string
	ErrorMessage     string
	RequestedAt      time.Time
}

// Recorder writes usage rows and bumps the organization monthly counter.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder backed by GORM.
func NewRecorder(db *gorm.DB) *Recorder { return &Recorder{db: db} }

// Handle persists the record best-effort under its own timeout. Audit and
// billing depend on exactly one row per terminal request, so failures are
// logged loudly but never propagate to the caller.
func (r *Recorder) Handle(record Record) {
	if r == nil || r.db == nil {
		return
	}

	dbCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	totalTokens := record.TotalTokens
	if totalTokens == 0 {
		totalTokens = record.PromptTokens + record.CompletionTokens
	}

	row := models.Usage{
		RequestID:        strings.TrimSpace(record.RequestID),
		ProjectID:        record.ProjectID,
		APIKeyID:         record.APIKeyID,
		Provider:         strings.TrimSpace(record.Provider),
		Model:            strings.TrimSpace(record.Model),
		Endpoint:         record.Endpoint,
		Status:           record.Status,
		PromptTokens:     int64(record.PromptTokens),
		CompletionTokens: int64(record.CompletionTokens),
		TotalTokens:      int64(totalTokens),
		CostUSD:          CalculateCost(record.Model, record.PromptTokens, record.CompletionTokens, record.Cached, record.Status),
		LatencyMs:        record.LatencyMs,
		Cached:           record.Cached,
		FallbackProvider: record.FallbackProvider,
		FallbackModel:    record.FallbackModel,
		ErrorMessage:     record.ErrorMessage,
		RequestedAt:      normalizeTime(record.RequestedAt),
		CreatedAt:        time.Now().UTC(),
	}

	if errTx := r.db.WithContext(dbCtx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return errCreate
		}
		if record.OrganizationID != "" {
			if errBump := tx.Model(&models.Organization{}).
				Where("id = ?", record.OrganizationID).
				Update("monthly_requests_used", gorm.Expr("monthly_requests_used + 1")).Error; errBump != nil {
				return errBump
			}
		}
		return nil
	}); errTx != nil {
		log.WithError(errTx).WithField("request_id", record.RequestID).Warn("usage: failed to persist record")
	}
}

// modelPricing is USD per 1M tokens, input then output. Unknown models
// cost zero rather than guessing.
var modelPricing = map[string][2]float64{
	"gpt-4o":                    {2.50, 10.00},
	"gpt-4o-mini":               {0.15, 0.60},
	"o3-mini":                   {1.10, 4.40},
	"claude-sonnet-4-20250514":  {3.00, 15.00},
	"claude-haiku-3-5-20241022": {0.80, 4.00},
}

// CalculateCost prices the call. Cache hits and non-success terminals cost
// nothing.
func CalculateCost(model string, promptTokens, completionTokens int, cached bool, status string) float64 {
	if cached || status != models.UsageStatusSuccess {
		return 0
	}
	pricing, ok := modelPricing[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		return 0
	}
	cost := float64(promptTokens)/1_000_000*pricing[0] + float64(completionTokens)/1_000_000*pricing[1]
	// Round to the storage precision.
	return math.Round(cost*1e10) / 1e10
}

// MonthlyLimitExceeded reports whether the organization is over its
// monthly request allowance. A zero limit means unlimited.
func MonthlyLimitExceeded(org models.Organization) bool {
	if org.MonthlyRequestLimit <= 0 {
		return false
	}
	return org.MonthlyRequestsUsed >= org.MonthlyRequestLimit
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
