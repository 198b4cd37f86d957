package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/models"
	"github.com/cencori/gateway/internal/security"
)

// APIKeyHandler manages gateway credential endpoints.
type APIKeyHandler struct {
	db *gorm.DB
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(db *gorm.DB) *APIKeyHandler {
	return &APIKeyHandler{db: db}
}

// createAPIKeyRequest defines the request body for key creation.
type createAPIKeyRequest struct {
	Name string `json:"name"`
}

// Create mints a gateway key for a project. The raw secret appears in this
// response and nowhere else; only its digest is persisted.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var body createAPIKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&project).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	rawKey, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate key failed"})
		return
	}

	key := models.APIKey{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Name:      name,
		KeyPrefix: security.ExtractPrefix(rawKey),
		KeyHash:   security.HashAPIKey(rawKey),
		LastFour:  security.LastFour(rawKey),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&key).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create api key failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         key.ID,
		"project_id": key.ProjectID,
		"name":       key.Name,
		"key":        rawKey,
		"masked_key": security.MaskAPIKey(key.KeyPrefix, key.LastFour),
		"created_at": key.CreatedAt,
	})
}

// List returns a project's keys in masked form.
func (h *APIKeyHandler) List(c *gin.Context) {
	var rows []models.APIKey
	errFind := h.db.WithContext(c.Request.Context()).
		Where("project_id = ?", c.Param("id")).
		Order("created_at DESC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list api keys failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, key := range rows {
		out = append(out, gin.H{
			"id":           key.ID,
			"project_id":   key.ProjectID,
			"name":         key.Name,
			"masked_key":   security.MaskAPIKey(key.KeyPrefix, key.LastFour),
			"revoked":      key.RevokedAt != nil,
			"last_used_at": key.LastUsedAt,
			"created_at":   key.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": out})
}

// Revoke soft-deletes a key. Revocation takes effect on the next lookup.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	var key models.APIKey
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND revoked_at IS NULL", c.Param("id")).
		First(&key).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "api key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke api key failed"})
		return
	}

	now := time.Now().UTC()
	errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&key).
		Update("revoked_at", &now).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke api key failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": key.ID})
}
