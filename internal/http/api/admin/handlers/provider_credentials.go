package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/models"
	"github.com/cencori/gateway/internal/security"
	"github.com/cencori/gateway/internal/vault"
)

// ProviderCredentialHandler manages encrypted upstream credentials. Plaintext
// keys cross this boundary exactly once, inbound, and are sealed before any
// row is written.
type ProviderCredentialHandler struct {
	db    *gorm.DB
	vault *vault.Vault
}

// NewProviderCredentialHandler constructs a ProviderCredentialHandler.
func NewProviderCredentialHandler(db *gorm.DB, v *vault.Vault) *ProviderCredentialHandler {
	return &ProviderCredentialHandler{db: db, vault: v}
}

// upsertCredentialRequest defines the request body for credential upserts.
type upsertCredentialRequest struct {
	Provider     string  `json:"provider"`
	APIKey       string  `json:"api_key"`
	DefaultModel *string `json:"default_model"`
	IsActive     *bool   `json:"is_active"`
}

// Upsert stores or replaces the credential for a (project, provider) pair.
func (h *ProviderCredentialHandler) Upsert(c *gin.Context) {
	var body upsertCredentialRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	providerName := strings.ToLower(strings.TrimSpace(body.Provider))
	apiKey := strings.TrimSpace(body.APIKey)
	if providerName == "" || apiKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing provider or api_key"})
		return
	}

	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&project).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}

	encrypted, errEncrypt := h.vault.Encrypt(apiKey, project.ID)
	if errEncrypt != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encrypt credential failed"})
		return
	}

	var credential models.ProviderCredential
	errLookup := h.db.WithContext(c.Request.Context()).
		Where("project_id = ? AND provider = ?", project.ID, providerName).
		First(&credential).Error
	switch {
	case errLookup == nil:
	case errors.Is(errLookup, gorm.ErrRecordNotFound):
		credential = models.ProviderCredential{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			Provider:  providerName,
			IsActive:  true,
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert credential failed"})
		return
	}

	credential.EncryptedKey = encrypted
	credential.KeyHint = security.LastFour(apiKey)
	if body.DefaultModel != nil {
		credential.DefaultModel = strings.TrimSpace(*body.DefaultModel)
	}
	if body.IsActive != nil {
		credential.IsActive = *body.IsActive
	}

	if errSave := h.db.WithContext(c.Request.Context()).Save(&credential).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert credential failed"})
		return
	}
	c.JSON(http.StatusOK, credentialResponse(credential))
}

// List returns a project's credentials. Ciphertext and plaintext never
// appear in the response; the hint is the only key material exposed.
func (h *ProviderCredentialHandler) List(c *gin.Context) {
	var rows []models.ProviderCredential
	errFind := h.db.WithContext(c.Request.Context()).
		Where("project_id = ?", c.Param("id")).
		Order("provider ASC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list credentials failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, credential := range rows {
		out = append(out, credentialResponse(credential))
	}
	c.JSON(http.StatusOK, gin.H{"credentials": out})
}

// Delete removes the credential for a (project, provider) pair.
func (h *ProviderCredentialHandler) Delete(c *gin.Context) {
	providerName := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	result := h.db.WithContext(c.Request.Context()).
		Where("project_id = ? AND provider = ?", c.Param("id"), providerName).
		Delete(&models.ProviderCredential{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete credential failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": providerName})
}

func credentialResponse(credential models.ProviderCredential) gin.H {
	return gin.H{
		"id":            credential.ID,
		"project_id":    credential.ProjectID,
		"provider":      credential.Provider,
		"key_hint":      credential.KeyHint,
		"is_active":     credential.IsActive,
		"default_model": credential.DefaultModel,
		"created_at":    credential.CreatedAt,
		"updated_at":    credential.UpdatedAt,
	}
}
