package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	dbutil "github.com/cencori/gateway/internal/db"
	"github.com/cencori/gateway/internal/models"
)

// ProjectHandler manages tenancy unit endpoints.
type ProjectHandler struct {
	db *gorm.DB
}

// NewProjectHandler constructs a ProjectHandler.
func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{db: db}
}

// createProjectRequest defines the request body for project creation.
type createProjectRequest struct {
	OrganizationID     string `json:"organization_id"`
	Name               string `json:"name"`
	DefaultProvider    string `json:"default_provider"`
	DefaultModel       string `json:"default_model"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
}

// updateProjectRequest defines the request body for project updates. Pointer
// fields distinguish "leave unchanged" from "set to zero value".
type updateProjectRequest struct {
	Name               *string `json:"name"`
	DefaultProvider    *string `json:"default_provider"`
	DefaultModel       *string `json:"default_model"`
	RateLimitPerMinute *int    `json:"rate_limit_per_minute"`
}

// Create registers a new project under an organization.
func (h *ProjectHandler) Create(c *gin.Context) {
	var body createProjectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	orgID := strings.TrimSpace(body.OrganizationID)
	if name == "" || orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name or organization_id"})
		return
	}

	var org models.Organization
	if errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", orgID).First(&org).Error; errFind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization not found"})
		return
	}

	project := models.Project{
		ID:                 uuid.NewString(),
		OrganizationID:     org.ID,
		Name:               name,
		DefaultProvider:    strings.TrimSpace(body.DefaultProvider),
		DefaultModel:       strings.TrimSpace(body.DefaultModel),
		RateLimitPerMinute: body.RateLimitPerMinute,
	}
	if project.RateLimitPerMinute <= 0 {
		project.RateLimitPerMinute = 60
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&project).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create project failed"})
		return
	}
	c.JSON(http.StatusCreated, projectResponse(project))
}

// List returns projects with optional organization and search filters.
func (h *ProjectHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Project{})
	if orgQ := strings.TrimSpace(c.Query("organization_id")); orgQ != "" {
		q = q.Where("organization_id = ?", orgQ)
	}
	if searchQ := strings.TrimSpace(c.Query("search")); searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.Project
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list projects failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, project := range rows {
		out = append(out, projectResponse(project))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

// Get returns a single project.
func (h *ProjectHandler) Get(c *gin.Context) {
	project, ok := h.find(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, projectResponse(project))
}

// Update applies partial changes to a project.
func (h *ProjectHandler) Update(c *gin.Context) {
	project, ok := h.find(c)
	if !ok {
		return
	}

	var body updateProjectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
			return
		}
		project.Name = name
	}
	if body.DefaultProvider != nil {
		project.DefaultProvider = strings.TrimSpace(*body.DefaultProvider)
	}
	if body.DefaultModel != nil {
		project.DefaultModel = strings.TrimSpace(*body.DefaultModel)
	}
	if body.RateLimitPerMinute != nil {
		if *body.RateLimitPerMinute < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate limit"})
			return
		}
		project.RateLimitPerMinute = *body.RateLimitPerMinute
	}

	if errSave := h.db.WithContext(c.Request.Context()).Save(&project).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update project failed"})
		return
	}
	c.JSON(http.StatusOK, projectResponse(project))
}

// Delete removes a project.
func (h *ProjectHandler) Delete(c *gin.Context) {
	project, ok := h.find(c)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&project).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete project failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": project.ID})
}

func (h *ProjectHandler) find(c *gin.Context) (models.Project, bool) {
	var project models.Project
	errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&project).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "get project failed"})
		}
		return models.Project{}, false
	}
	return project, true
}

func projectResponse(project models.Project) gin.H {
	return gin.H{
		"id":                    project.ID,
		"organization_id":       project.OrganizationID,
		"name":                  project.Name,
		"default_provider":      project.DefaultProvider,
		"default_model":         project.DefaultModel,
		"rate_limit_per_minute": project.RateLimitPerMinute,
		"created_at":            project.CreatedAt,
	}
}
