package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/models"
)

// WebhookHandler manages event subscription endpoints.
type WebhookHandler struct {
	db *gorm.DB
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(db *gorm.DB) *WebhookHandler {
	return &WebhookHandler{db: db}
}

// createWebhookRequest defines the request body for webhook registration.
type createWebhookRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// updateWebhookRequest defines the request body for webhook updates. Pointer
// fields distinguish "leave unchanged" from "set to zero value".
type updateWebhookRequest struct {
	URL      *string   `json:"url"`
	Secret   *string   `json:"secret"`
	Events   *[]string `json:"events"`
	IsActive *bool     `json:"is_active"`
}

// Create registers a webhook on a project.
func (h *WebhookHandler) Create(c *gin.Context) {
	var body createWebhookRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	url := strings.TrimSpace(body.URL)
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
		return
	}
	if len(body.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing events"})
		return
	}

	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&project).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	events, errEvents := marshalEvents(body.Events)
	if errEvents != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid events"})
		return
	}

	hook := models.Webhook{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		URL:       url,
		Secret:    strings.TrimSpace(body.Secret),
		Events:    events,
		IsActive:  true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&hook).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create webhook failed"})
		return
	}
	c.JSON(http.StatusCreated, webhookResponse(hook))
}

// List returns a project's webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	var rows []models.Webhook
	errFind := h.db.WithContext(c.Request.Context()).
		Where("project_id = ?", c.Param("id")).
		Order("created_at DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list webhooks failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, hook := range rows {
		out = append(out, webhookResponse(hook))
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": out})
}

// Update applies partial changes to a webhook.
func (h *WebhookHandler) Update(c *gin.Context) {
	var hook models.Webhook
	errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&hook).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get webhook failed"})
		return
	}

	var body updateWebhookRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.URL != nil {
		url := strings.TrimSpace(*body.URL)
		if url == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing url"})
			return
		}
		hook.URL = url
	}
	if body.Secret != nil {
		hook.Secret = strings.TrimSpace(*body.Secret)
	}
	if body.Events != nil {
		if len(*body.Events) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing events"})
			return
		}
		events, errEvents := marshalEvents(*body.Events)
		if errEvents != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid events"})
			return
		}
		hook.Events = events
	}
	if body.IsActive != nil {
		hook.IsActive = *body.IsActive
	}

	if errSave := h.db.WithContext(c.Request.Context()).Save(&hook).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update webhook failed"})
		return
	}
	c.JSON(http.StatusOK, webhookResponse(hook))
}

// Delete removes a webhook.
func (h *WebhookHandler) Delete(c *gin.Context) {
	result := h.db.WithContext(c.Request.Context()).
		Where("id = ?", c.Param("id")).
		Delete(&models.Webhook{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete webhook failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func marshalEvents(events []string) (datatypes.JSON, error) {
	cleaned := make([]string, 0, len(events))
	for _, event := range events {
		event = strings.TrimSpace(event)
		if event == "" {
			continue
		}
		cleaned = append(cleaned, event)
	}
	if len(cleaned) == 0 {
		return nil, errors.New("no events")
	}
	payload, errMarshal := json.Marshal(cleaned)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(payload), nil
}

func webhookResponse(hook models.Webhook) gin.H {
	var events []string
	_ = json.Unmarshal(hook.Events, &events)
	return gin.H{
		"id":                hook.ID,
		"project_id":        hook.ProjectID,
		"url":               hook.URL,
		"events":            events,
		"is_active":         hook.IsActive,
		"has_secret":        hook.Secret != "",
		"failure_count":     hook.FailureCount,
		"last_triggered_at": hook.LastTriggeredAt,
		"created_at":        hook.CreatedAt,
	}
}
