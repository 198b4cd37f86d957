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

// OrganizationHandler manages billing tenant endpoints.
type OrganizationHandler struct {
	db *gorm.DB
}

// NewOrganizationHandler constructs an OrganizationHandler.
func NewOrganizationHandler(db *gorm.DB) *OrganizationHandler {
	return &OrganizationHandler{db: db}
}

// createOrganizationRequest defines the request body for organization creation.
type createOrganizationRequest struct {
	Name                string `json:"name"`
	Slug                string `json:"slug"`
	SubscriptionTier    string `json:"subscription_tier"`
	MonthlyRequestLimit int64  `json:"monthly_request_limit"`
}

// Create registers a new organization.
func (h *OrganizationHandler) Create(c *gin.Context) {
	var body createOrganizationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	if name == "" || slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name or slug"})
		return
	}

	var existing int64
	h.db.WithContext(c.Request.Context()).Model(&models.Organization{}).Where("slug = ?", slug).Count(&existing)
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "slug already in use"})
		return
	}

	org := models.Organization{
		ID:   uuid.NewString(),
		Name: name,
		Slug: slug,
	}
	if tier := strings.TrimSpace(body.SubscriptionTier); tier != "" {
		org.SubscriptionTier = tier
	} else {
		org.SubscriptionTier = "free"
	}
	if body.MonthlyRequestLimit > 0 {
		org.MonthlyRequestLimit = body.MonthlyRequestLimit
	} else {
		org.MonthlyRequestLimit = 1000
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&org).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create organization failed"})
		return
	}
	c.JSON(http.StatusCreated, organizationResponse(org))
}

// List returns organizations with an optional name/slug search.
func (h *OrganizationHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Organization{})
	if searchQ := strings.TrimSpace(c.Query("search")); searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "name")+" OR "+dbutil.CaseInsensitiveLikeExpr(h.db, "slug"),
			pattern,
			pattern,
		)
	}

	var rows []models.Organization
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list organizations failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, org := range rows {
		out = append(out, organizationResponse(org))
	}
	c.JSON(http.StatusOK, gin.H{"organizations": out})
}

// Get returns a single organization.
func (h *OrganizationHandler) Get(c *gin.Context) {
	var org models.Organization
	errFind := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&org).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get organization failed"})
		return
	}
	c.JSON(http.StatusOK, organizationResponse(org))
}

func organizationResponse(org models.Organization) gin.H {
	return gin.H{
		"id":                    org.ID,
		"name":                  org.Name,
		"slug":                  org.Slug,
		"subscription_tier":     org.SubscriptionTier,
		"monthly_requests_used": org.MonthlyRequestsUsed,
		"monthly_request_limit": org.MonthlyRequestLimit,
		"created_at":            org.CreatedAt,
	}
}
