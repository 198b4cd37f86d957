package usage

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cencori/gateway/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Organization{}, &models.Usage{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func TestRecorder_PersistsRowAndBumpsCounter(t *testing.T) {
	db := newTestDB(t)
	org := models.Organization{ID: "org-1", Name: "Acme", Slug: "acme", MonthlyRequestLimit: 100}
	if errCreate := db.Create(&org).Error; errCreate != nil {
		t.Fatalf("seed org: %v", errCreate)
	}

	r := NewRecorder(db)
	keyID := "key-1"
	r.Handle(Record{
		RequestID:        "req-1",
		ProjectID:        "proj-1",
		OrganizationID:   "org-1",
		APIKeyID:         &keyID,
		Provider:         "openai",
		Model:            "gpt-4o",
		Endpoint:         "chat.completions",
		Status:           models.UsageStatusSuccess,
		PromptTokens:     100,
		CompletionTokens: 50,
		LatencyMs:        230,
		RequestedAt:      time.Now(),
	})

	var row models.Usage
	if errFind := db.First(&row, "request_id = ?", "req-1").Error; errFind != nil {
		t.Fatalf("load usage row: %v", errFind)
	}
	if row.TotalTokens != 150 {
		t.Fatalf("expected derived total 150, got %d", row.TotalTokens)
	}
	if row.CostUSD <= 0 {
		t.Fatalf("expected nonzero cost, got %f", row.CostUSD)
	}

	var reloaded models.Organization
	if errFind := db.First(&reloaded, "id = ?", "org-1").Error; errFind != nil {
		t.Fatalf("reload org: %v", errFind)
	}
	if reloaded.MonthlyRequestsUsed != 1 {
		t.Fatalf("expected monthly counter 1, got %d", reloaded.MonthlyRequestsUsed)
	}
}

func TestCalculateCost(t *testing.T) {
	cost := CalculateCost("gpt-4o", 1_000_000, 1_000_000, false, models.UsageStatusSuccess)
	if cost != 12.50 {
		t.Fatalf("expected 12.50, got %f", cost)
	}
	if CalculateCost("gpt-4o", 1000, 1000, true, models.UsageStatusSuccess) != 0 {
		t.Fatal("expected cache hits to cost nothing")
	}
	if CalculateCost("gpt-4o", 1000, 1000, false, models.UsageStatusError) != 0 {
		t.Fatal("expected failed requests to cost nothing")
	}
	if CalculateCost("unknown-model", 1000, 1000, false, models.UsageStatusSuccess) != 0 {
		t.Fatal("expected unknown models to cost nothing")
	}
}

func TestMonthlyLimitExceeded(t *testing.T) {
	if MonthlyLimitExceeded(models.Organization{MonthlyRequestsUsed: 5, MonthlyRequestLimit: 10}) {
		t.Fatal("expected under-limit org to pass")
	}
	if !MonthlyLimitExceeded(models.Organization{MonthlyRequestsUsed: 10, MonthlyRequestLimit: 10}) {
		t.Fatal("expected at-limit org to be blocked")
	}
	if MonthlyLimitExceeded(models.Organization{MonthlyRequestsUsed: 10, MonthlyRequestLimit: 0}) {
		t.Fatal("expected zero limit to mean unlimited")
	}
}
