package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
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
	if errMigrate := db.AutoMigrate(&models.Webhook{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

func seedWebhook(t *testing.T, db *gorm.DB, id, url, secret string, events []string, active bool) {
	t.Helper()
	raw, _ := json.Marshal(events)
	hook := models.Webhook{
		ID:        id,
		ProjectID: "proj-1",
		URL:       url,
		Secret:    secret,
		Events:    datatypes.JSON(raw),
		IsActive:  active,
	}
	if errCreate := db.Create(&hook).Error; errCreate != nil {
		t.Fatalf("seed webhook: %v", errCreate)
	}
}

type capturedDelivery struct {
	body      []byte
	event     string
	signature string
}

func captureServer(t *testing.T, status int) (*httptest.Server, func() []capturedDelivery) {
	t.Helper()
	var mu sync.Mutex
	var deliveries []capturedDelivery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		deliveries = append(deliveries, capturedDelivery{
			body:      body,
			event:     r.Header.Get("X-Webhook-Event"),
			signature: r.Header.Get("X-Webhook-Signature"),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedDelivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedDelivery(nil), deliveries...)
	}
}

func TestDispatcher_DeliversSignedEnvelope(t *testing.T) {
	db := newTestDB(t)
	srv, got := captureServer(t, http.StatusOK)
	seedWebhook(t, db, "wh-1", srv.URL, "topsecret", []string{EventModelFallback}, true)

	d := NewDispatcher(db)
	d.TriggerFallback(context.Background(), "proj-1", "openai", "gpt-4o", "anthropic", "claude-sonnet-4", "rate_limited")
	d.Wait()

	deliveries := got()
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	delivery := deliveries[0]
	if delivery.event != EventModelFallback {
		t.Fatalf("unexpected event header %q", delivery.event)
	}
	if !VerifySignature("topsecret", delivery.body, delivery.signature) {
		t.Fatal("signature did not verify against raw body")
	}

	var payload envelope
	if errUnmarshal := json.Unmarshal(delivery.body, &payload); errUnmarshal != nil {
		t.Fatalf("unmarshal envelope: %v", errUnmarshal)
	}
	if payload.Event != EventModelFallback || payload.ProjectID != "proj-1" {
		t.Fatalf("unexpected envelope %+v", payload)
	}
	if payload.Data["to_provider"] != "anthropic" {
		t.Fatalf("unexpected data %+v", payload.Data)
	}

	var hook models.Webhook
	if errFind := db.First(&hook, "id = ?", "wh-1").Error; errFind != nil {
		t.Fatalf("reload webhook: %v", errFind)
	}
	if hook.FailureCount != 0 || hook.LastTriggeredAt == nil {
		t.Fatalf("expected success bookkeeping, got count=%d triggered=%v", hook.FailureCount, hook.LastTriggeredAt)
	}
}

func TestDispatcher_SkipsUnsubscribedAndInactive(t *testing.T) {
	db := newTestDB(t)
	srv, got := captureServer(t, http.StatusOK)
	seedWebhook(t, db, "wh-other-event", srv.URL, "", []string{EventRequestFailed}, true)
	seedWebhook(t, db, "wh-inactive", srv.URL, "", []string{EventModelFallback}, false)

	d := NewDispatcher(db)
	d.Trigger(context.Background(), "proj-1", EventModelFallback, map[string]any{"k": "v"})
	d.Wait()

	if n := len(got()); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
}

func TestDispatcher_UnsignedWhenNoSecret(t *testing.T) {
	db := newTestDB(t)
	srv, got := captureServer(t, http.StatusOK)
	seedWebhook(t, db, "wh-1", srv.URL, "", []string{EventSecurityViolation}, true)

	d := NewDispatcher(db)
	d.TriggerSecurityViolation(context.Background(), "proj-1", "prompt_injection", "high", "ignore previous instructions")
	d.Wait()

	deliveries := got()
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	if deliveries[0].signature != "" {
		t.Fatalf("expected no signature header, got %q", deliveries[0].signature)
	}
}

func TestDispatcher_CountsFailures(t *testing.T) {
	db := newTestDB(t)
	srv, _ := captureServer(t, http.StatusInternalServerError)
	seedWebhook(t, db, "wh-1", srv.URL, "s", []string{EventRequestFailed}, true)

	d := NewDispatcher(db)
	d.TriggerRequestFailed(context.Background(), "proj-1", "openai", "gpt-4o", "upstream timeout")
	d.Wait()
	d.TriggerRequestFailed(context.Background(), "proj-1", "openai", "gpt-4o", "upstream timeout")
	d.Wait()

	var hook models.Webhook
	if errFind := db.First(&hook, "id = ?", "wh-1").Error; errFind != nil {
		t.Fatalf("reload webhook: %v", errFind)
	}
	if hook.FailureCount != 2 {
		t.Fatalf("expected failure_count 2, got %d", hook.FailureCount)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"request.failed"}`)
	sig := Sign("secret", body)
	if !VerifySignature("secret", body, sig) {
		t.Fatal("expected valid signature to verify")
	}
	if VerifySignature("other", body, sig) {
		t.Fatal("expected wrong secret to fail")
	}
	if VerifySignature("secret", []byte("tampered"), sig) {
		t.Fatal("expected tampered body to fail")
	}
}
