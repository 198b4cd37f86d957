// Package webhooks delivers project event notifications to registered
// endpoints with HMAC-signed payloads.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/metrics"
	"github.com/cencori/gateway/internal/models"
)

// Event names emitted by the gateway pipeline.
const (
	EventModelFallback     = "model.fallback"
	EventRequestFailed     = "request.failed"
	EventSecurityViolation = "security.violation"
)

const deliveryTimeout = 10 * time.Second

// envelope is the wire payload posted to webhook endpoints. Field order is
// part of the signed body and must stay stable.
type envelope struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	ProjectID string         `json:"project_id"`
	Data      map[string]any `json:"data"`
}

// Dispatcher fans project events out to every matching active webhook.
type Dispatcher struct {
	db     *gorm.DB
	client *http.Client
	wg     sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher backed by the given database.
func NewDispatcher(db *gorm.DB) *Dispatcher {
	return &Dispatcher{
		db:     db,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// Trigger looks up the project's active webhooks subscribed to the event and
// delivers the payload to each in the background. Lookup errors are logged
// and swallowed; webhook delivery must never fail a gateway request.
func (d *Dispatcher) Trigger(ctx context.Context, projectID, event string, data map[string]any) {
	if d == nil || d.db == nil {
		return
	}
	var hooks []models.Webhook
	if errFind := d.db.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Find(&hooks).Error; errFind != nil {
		log.WithError(errFind).WithField("project_id", projectID).Warn("webhook lookup failed")
		return
	}

	body, errMarshal := json.Marshal(envelope{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ProjectID: projectID,
		Data:      data,
	})
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("webhook payload marshal failed")
		return
	}

	for _, hook := range hooks {
		if !subscribed(hook, event) {
			continue
		}
		d.wg.Add(1)
		go func(hook models.Webhook) {
			defer d.wg.Done()
			d.deliver(hook, event, body)
		}(hook)
	}
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown and
// in tests.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

// subscribed reports whether the webhook's event list contains the event.
func subscribed(hook models.Webhook, event string) bool {
	var events []string
	if errUnmarshal := json.Unmarshal(hook.Events, &events); errUnmarshal != nil {
		log.WithError(errUnmarshal).WithField("webhook_id", hook.ID).Warn("webhook has malformed event list")
		return false
	}
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

// deliver posts the signed payload to one endpoint and records the outcome.
func (d *Dispatcher) deliver(hook models.Webhook, event string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, errRequest := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if errRequest != nil {
		log.WithError(errRequest).WithField("webhook_id", hook.ID).Warn("webhook request build failed")
		d.recordFailure(hook.ID)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Timestamp", time.Now().UTC().Format(time.RFC3339))
	if hook.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(hook.Secret, body))
	}

	resp, errDo := d.client.Do(req)
	if errDo != nil {
		log.WithError(errDo).WithField("webhook_id", hook.ID).Warn("webhook delivery failed")
		d.recordFailure(hook.ID)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
		d.recordSuccess(hook.ID)
		return
	}
	log.WithFields(log.Fields{
		"webhook_id": hook.ID,
		"status":     resp.StatusCode,
	}).Warn("webhook endpoint returned non-2xx")
	d.recordFailure(hook.ID)
}

func (d *Dispatcher) recordSuccess(webhookID string) {
	now := time.Now()
	if errUpdate := d.db.Model(&models.Webhook{}).
		Where("id = ?", webhookID).
		Updates(map[string]any{
			"failure_count":     0,
			"last_triggered_at": &now,
		}).Error; errUpdate != nil {
		log.WithError(errUpdate).WithField("webhook_id", webhookID).Warn("webhook success bookkeeping failed")
	}
}

func (d *Dispatcher) recordFailure(webhookID string) {
	metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
	if errUpdate := d.db.Model(&models.Webhook{}).
		Where("id = ?", webhookID).
		Update("failure_count", gorm.Expr("failure_count + 1")).Error; errUpdate != nil {
		log.WithError(errUpdate).WithField("webhook_id", webhookID).Warn("webhook failure bookkeeping failed")
	}
}

// Sign computes the hex HMAC-SHA256 of the body under the webhook secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the signature matches the body, in
// constant time. Exposed for webhook consumers and tests.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// TriggerFallback emits model.fallback after a successful fallback
// completion.
func (d *Dispatcher) TriggerFallback(ctx context.Context, projectID, fromProvider, fromModel, toProvider, toModel, reason string) {
	d.Trigger(ctx, projectID, EventModelFallback, map[string]any{
		"from_provider": fromProvider,
		"from_model":    fromModel,
		"to_provider":   toProvider,
		"to_model":      toModel,
		"reason":        reason,
	})
}

// TriggerRequestFailed emits request.failed when all providers are
// exhausted.
func (d *Dispatcher) TriggerRequestFailed(ctx context.Context, projectID, provider, model, errorMessage string) {
	d.Trigger(ctx, projectID, EventRequestFailed, map[string]any{
		"provider": provider,
		"model":    model,
		"error":    errorMessage,
	})
}

// TriggerSecurityViolation emits security.violation when input safety
// screening blocks a request.
func (d *Dispatcher) TriggerSecurityViolation(ctx context.Context, projectID, incidentType, severity, description string) {
	d.Trigger(ctx, projectID, EventSecurityViolation, map[string]any{
		"type":        incidentType,
		"severity":    severity,
		"description": description,
	})
}
