package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/config"
	handlers "github.com/cencori/gateway/internal/http/api/admin/handlers"
	"github.com/cencori/gateway/internal/models"
	"github.com/cencori/gateway/internal/security"
	"github.com/cencori/gateway/internal/vault"
)

// RegisterAdminRoutes registers management routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, v *vault.Vault) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	orgHandler := handlers.NewOrganizationHandler(db)
	authed.POST("/organizations", orgHandler.Create)
	authed.GET("/organizations", orgHandler.List)
	authed.GET("/organizations/:id", orgHandler.Get)

	projectHandler := handlers.NewProjectHandler(db)
	authed.POST("/projects", projectHandler.Create)
	authed.GET("/projects", projectHandler.List)
	authed.GET("/projects/:id", projectHandler.Get)
	authed.PUT("/projects/:id", projectHandler.Update)
	authed.DELETE("/projects/:id", projectHandler.Delete)

	apiKeyHandler := handlers.NewAPIKeyHandler(db)
	authed.POST("/projects/:id/api-keys", apiKeyHandler.Create)
	authed.GET("/projects/:id/api-keys", apiKeyHandler.List)
	authed.DELETE("/api-keys/:id", apiKeyHandler.Revoke)

	credentialHandler := handlers.NewProviderCredentialHandler(db, v)
	authed.PUT("/projects/:id/provider-credentials", credentialHandler.Upsert)
	authed.GET("/projects/:id/provider-credentials", credentialHandler.List)
	authed.DELETE("/projects/:id/provider-credentials/:provider", credentialHandler.Delete)

	webhookHandler := handlers.NewWebhookHandler(db)
	authed.POST("/projects/:id/webhooks", webhookHandler.Create)
	authed.GET("/projects/:id/webhooks", webhookHandler.List)
	authed.PUT("/webhooks/:id", webhookHandler.Update)
	authed.DELETE("/webhooks/:id", webhookHandler.Delete)

	usageHandler := handlers.NewUsageHandler(db)
	authed.GET("/usage", usageHandler.List)
}

// adminAuthMiddleware validates admin JWTs and loads admin context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
